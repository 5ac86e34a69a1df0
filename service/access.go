package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mouleshgs/onboardX/model"
	"github.com/mouleshgs/onboardX/pkg/logger"
)

// Tool names in grant order. The onboarding course always comes first.
const (
	toolCourse    = "Onboarding Course"
	toolDashboard = "Distributor Dashboard"
)

// Provisioner materializes the one-time credential set and tool list
// for a signed contract. Credentials are generated exactly once from
// crypto/rand, never from identity data, and never rotated; progress
// is recomputed from scratch on every read.
type Provisioner struct {
	registry     *Registry
	notifier     *Notifier
	courseURL    string
	dashboardURL string
	expiry       time.Duration
}

func NewProvisioner(registry *Registry, notifier *Notifier, courseURL, dashboardURL string, expiry time.Duration) *Provisioner {
	return &Provisioner{
		registry:     registry,
		notifier:     notifier,
		courseURL:    courseURL,
		dashboardURL: dashboardURL,
		expiry:       expiry,
	}
}

// EnsureAccess returns the contract's access grant, creating it on the
// first call after signing. A pending contract yields ErrForbidden so
// callers can gate the UI on it. Existing grants come back unchanged
// except for a fresh progress recompute.
func (p *Provisioner) EnsureAccess(ctx context.Context, contractID string) (*model.AccessGrant, error) {
	created := false
	updated, err := p.registry.Update(contractID, func(c *model.Contract) error {
		if c.Status != model.StatusSigned {
			return ErrForbidden
		}
		if c.Access == nil {
			grant, err := p.newGrant()
			if err != nil {
				return err
			}
			c.Access = grant
			created = true
		}
		p.Refresh(c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		// Side effects run after the grant committed; their outcome is
		// recorded on the grant, never raised to the caller.
		go p.notifyGrantCreated(updated)
	}

	return updated.Access, nil
}

// Refresh recomputes the cached progress and unlocks the dashboard
// tool once the distributor reaches full progress. The URL, once set,
// is never taken back. Must be called with the contract's registry
// lock held (i.e. inside a registry Update).
func (p *Provisioner) Refresh(c *model.Contract) {
	if c.Access == nil {
		return
	}
	c.Access.Progress = Progress(c.Status, c.Events)
	if c.Access.Progress >= 100 {
		for i := range c.Access.Tools {
			if c.Access.Tools[i].Name == toolDashboard && c.Access.Tools[i].Locked {
				c.Access.Tools[i].URL = p.dashboardURL
				c.Access.Tools[i].Locked = false
			}
		}
	}
}

func (p *Provisioner) newGrant() (*model.AccessGrant, error) {
	creds, err := generateCredentials()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &model.AccessGrant{
		Unlocked:    true,
		GeneratedAt: now,
		ExpiresAt:   now.Add(p.expiry), // advisory, not enforced
		Credentials: creds,
		Tools: []model.Tool{
			{Name: toolCourse, URL: p.courseURL},
			// The dashboard stays locked until progress hits 100; the
			// URL is minted server side at that point rather than
			// trusting the client to withhold it.
			{Name: toolDashboard, Locked: true},
		},
	}, nil
}

func (p *Provisioner) notifyGrantCreated(c *model.Contract) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.notifier.Send(ctx, "access_granted", map[string]any{
		"contract_id": c.ID,
		"email":       c.AssignedToEmail,
	})
	if err == nil || errors.Is(err, ErrUnavailable) {
		return
	}

	logger.Warn(ctx, "grant notification failed", "contract_id", c.ID, "error", err)
	if _, uerr := p.registry.Update(c.ID, func(c *model.Contract) error {
		if c.Access != nil {
			c.Access.NotifyFailed = true
		}
		return nil
	}); uerr != nil {
		logger.Warn(ctx, "recording notification outcome failed", "contract_id", c.ID, "error", uerr)
	}
}

// generateCredentials draws fixed amounts of entropy from crypto/rand:
// 4 bytes for the username suffix, 12 for the password, 24 for the
// token.
func generateCredentials() (model.Credentials, error) {
	username, err := randomHex(4)
	if err != nil {
		return model.Credentials{}, err
	}
	password, err := randomHex(12)
	if err != nil {
		return model.Credentials{}, err
	}
	token, err := randomHex(24)
	if err != nil {
		return model.Credentials{}, err
	}
	return model.Credentials{
		Username: "dist_" + username,
		Password: password,
		Token:    token,
	}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
