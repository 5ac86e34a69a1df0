package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mouleshgs/onboardX/config"
	"github.com/mouleshgs/onboardX/model"
)

const (
	testCourseURL    = "https://learn.example.com/onboarding"
	testDashboardURL = "https://dash.example.com"
)

func newTestProvisioner(r *Registry, n *Notifier) *Provisioner {
	return NewProvisioner(r, n, testCourseURL, testDashboardURL, 30*24*time.Hour)
}

func signedContract(id string) *model.Contract {
	c := newTestContract(id, "vendor@acme.com", "dist@partner.com", time.Now())
	c.Status = model.StatusSigned
	now := time.Now().UTC()
	c.SignedAt = &now
	return c
}

func TestEnsureAccessPendingForbidden(t *testing.T) {
	r := NewRegistry()
	if err := r.Create(newTestContract("c1", "v@x.com", "d@y.com", time.Now())); err != nil {
		t.Fatal(err)
	}

	p := newTestProvisioner(r, nil)
	_, err := p.EnsureAccess(context.Background(), "c1")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("EnsureAccess() error = %v, want ErrForbidden", err)
	}

	c, _ := r.Get("c1")
	if c.Access != nil {
		t.Error("pending contract acquired a grant")
	}
}

func TestEnsureAccessCreatesGrantOnce(t *testing.T) {
	r := NewRegistry()
	if err := r.Create(signedContract("c1")); err != nil {
		t.Fatal(err)
	}

	p := newTestProvisioner(r, nil)
	grant, err := p.EnsureAccess(context.Background(), "c1")
	if err != nil {
		t.Fatalf("EnsureAccess() error = %v", err)
	}

	if !grant.Unlocked {
		t.Error("grant not unlocked")
	}
	if grant.Progress != 30 {
		t.Errorf("progress = %d, want 30 right after signing", grant.Progress)
	}
	if !strings.HasPrefix(grant.Credentials.Username, "dist_") {
		t.Errorf("username = %q, want dist_ prefix", grant.Credentials.Username)
	}
	if len(grant.Credentials.Password) != 24 || len(grant.Credentials.Token) != 48 {
		t.Errorf("credential lengths = %d/%d, want 24/48 hex chars",
			len(grant.Credentials.Password), len(grant.Credentials.Token))
	}
	if !grant.ExpiresAt.After(grant.GeneratedAt) {
		t.Error("expiry not after generation time")
	}

	if len(grant.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(grant.Tools))
	}
	if grant.Tools[0].Name != toolCourse || grant.Tools[0].URL != testCourseURL {
		t.Errorf("first tool = %+v, want unlocked course", grant.Tools[0])
	}
	if grant.Tools[1].Name != toolDashboard || !grant.Tools[1].Locked || grant.Tools[1].URL != "" {
		t.Errorf("second tool = %+v, want locked dashboard without URL", grant.Tools[1])
	}

	// Repeated calls return the same credentials.
	again, err := p.EnsureAccess(context.Background(), "c1")
	if err != nil {
		t.Fatalf("EnsureAccess() second call error = %v", err)
	}
	if again.Credentials != grant.Credentials {
		t.Error("credentials rotated between calls")
	}
	if !again.GeneratedAt.Equal(grant.GeneratedAt) {
		t.Error("GeneratedAt changed between calls")
	}
}

func TestEnsureAccessConcurrentSingleGrant(t *testing.T) {
	r := NewRegistry()
	if err := r.Create(signedContract("c1")); err != nil {
		t.Fatal(err)
	}
	p := newTestProvisioner(r, nil)

	const workers = 8
	grants := make([]*model.AccessGrant, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := p.EnsureAccess(context.Background(), "c1")
			if err != nil {
				t.Errorf("EnsureAccess() error = %v", err)
				return
			}
			grants[i] = g
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if grants[i] == nil || grants[0] == nil {
			t.Fatal("missing grant")
		}
		if grants[i].Credentials != grants[0].Credentials {
			t.Fatal("concurrent callers observed different credentials")
		}
	}
}

func TestRefreshUnlocksDashboardAtFullProgress(t *testing.T) {
	r := NewRegistry()
	c := signedContract("c1")
	if err := r.Create(c); err != nil {
		t.Fatal(err)
	}
	p := newTestProvisioner(r, nil)

	if _, err := p.EnsureAccess(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	// One event is not enough.
	updated, err := r.Update("c1", func(c *model.Contract) error {
		c.Events.SlackVisited = true
		p.Refresh(c)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Access.Progress != 40 {
		t.Errorf("progress = %d, want 40", updated.Access.Progress)
	}
	if !updated.Access.Tools[1].Locked {
		t.Error("dashboard unlocked before full progress")
	}

	// Both events unlock the dashboard and fill in its URL.
	updated, err = r.Update("c1", func(c *model.Contract) error {
		c.Events.NotionCompleted = true
		p.Refresh(c)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Access.Progress != 100 {
		t.Errorf("progress = %d, want 100", updated.Access.Progress)
	}
	dash := updated.Access.Tools[1]
	if dash.Locked || dash.URL != testDashboardURL {
		t.Errorf("dashboard = %+v, want unlocked with URL", dash)
	}
}

func TestEnsureAccessNotifiesWebhook(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received <- body
	}))
	defer srv.Close()

	r := NewRegistry()
	if err := r.Create(signedContract("c1")); err != nil {
		t.Fatal(err)
	}
	notifier := NewNotifier(&config.NotifyConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})
	p := newTestProvisioner(r, notifier)

	if _, err := p.EnsureAccess(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	select {
	case body := <-received:
		if body["event"] != "access_granted" || body["contract_id"] != "c1" {
			t.Errorf("webhook body = %v", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestEnsureAccessRecordsNotifyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRegistry()
	if err := r.Create(signedContract("c1")); err != nil {
		t.Fatal(err)
	}
	notifier := NewNotifier(&config.NotifyConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})
	p := newTestProvisioner(r, notifier)

	grant, err := p.EnsureAccess(context.Background(), "c1")
	if err != nil {
		t.Fatalf("EnsureAccess() error = %v, notify failure must not surface", err)
	}
	if grant == nil || !grant.Unlocked {
		t.Fatal("grant missing despite notify failure")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		c, _ := r.Get("c1")
		if c.Access.NotifyFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("NotifyFailed never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
