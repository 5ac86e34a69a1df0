package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mouleshgs/onboardX/model"
	"github.com/mouleshgs/onboardX/pkg/logger"
)

// Resolver turns an opaque locator into bytes by walking an ordered
// list of strategies, first success wins. Intermediate failures are
// swallowed and logged; only when every applicable strategy is
// exhausted does the caller see an error. A missing local file is the
// one NotFound case, everything else degrades to UpstreamError.
type Resolver struct {
	backend    ObjectBackend
	local      *LocalStore
	httpClient *http.Client

	strategies []resolveStrategy
}

type resolveStrategy struct {
	name    string
	applies func(loc model.Locator) bool
	fetch   func(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error)
}

func NewResolver(backend ObjectBackend, local *LocalStore, timeout time.Duration) *Resolver {
	r := &Resolver{
		backend:    backend,
		local:      local,
		httpClient: &http.Client{Timeout: timeout},
	}

	// Resolution order per the lifecycle contract: shared link, link
	// metadata + fresh link, object download, fresh link for the same
	// object, generic URL, local file.
	r.strategies = []resolveStrategy{
		{
			name:    "shared-link",
			applies: func(loc model.Locator) bool { return loc.Kind == model.LocatorLink },
			fetch: func(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error) {
				return r.fetchURL(ctx, loc.Ref)
			},
		},
		{
			name:    "link-metadata",
			applies: func(loc model.Locator) bool { return loc.Kind == model.LocatorLink && backend != nil },
			fetch: func(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error) {
				key, ok := r.backend.KeyFromLink(loc.Ref)
				if !ok {
					return nil, BlobInfo{}, fmt.Errorf("no object key in link")
				}
				if _, err := r.backend.Stat(ctx, key); err != nil {
					return nil, BlobInfo{}, err
				}
				return r.fetchFreshLink(ctx, key)
			},
		},
		{
			name:    "object-download",
			applies: func(loc model.Locator) bool { return loc.Kind == model.LocatorObject && backend != nil },
			fetch: func(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error) {
				return r.backend.Get(ctx, loc.Ref)
			},
		},
		{
			name:    "object-fresh-link",
			applies: func(loc model.Locator) bool { return loc.Kind == model.LocatorObject && backend != nil },
			fetch: func(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error) {
				return r.fetchFreshLink(ctx, loc.Ref)
			},
		},
		{
			name:    "url",
			applies: func(loc model.Locator) bool { return loc.Kind == model.LocatorURL },
			fetch: func(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error) {
				return r.fetchURL(ctx, loc.Ref)
			},
		},
		{
			name:    "local",
			applies: func(loc model.Locator) bool { return loc.Kind == model.LocatorLocal && local != nil },
			fetch: func(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error) {
				data, err := r.local.Read(loc.Ref)
				if err != nil {
					return nil, BlobInfo{}, err
				}
				return data, BlobInfo{ContentType: "application/pdf", Size: int64(len(data))}, nil
			},
		},
	}

	return r
}

// Resolve fetches the bytes a locator refers to. It never returns
// empty bytes as success.
func (r *Resolver) Resolve(ctx context.Context, loc model.Locator) ([]byte, BlobInfo, error) {
	if loc.IsZero() {
		return nil, BlobInfo{}, ErrNotFound
	}

	var attempts []error
	applied := false
	for _, st := range r.strategies {
		if !st.applies(loc) {
			continue
		}
		applied = true

		data, info, err := st.fetch(ctx, loc)
		if err == nil && len(data) > 0 {
			return data, info, nil
		}
		if err == nil {
			err = fmt.Errorf("empty response")
		}
		if errors.Is(err, ErrNotFound) && st.name == "local" {
			// Local is the final strategy; a missing file is a real 404,
			// not an upstream outage.
			return nil, BlobInfo{}, ErrNotFound
		}
		logger.Warn(ctx, "blob resolution strategy failed",
			"strategy", st.name,
			"locator_kind", loc.Kind,
			"error", err,
		)
		attempts = append(attempts, fmt.Errorf("%s: %w", st.name, err))
	}

	if !applied {
		return nil, BlobInfo{}, &UpstreamError{Op: "resolve", Err: fmt.Errorf("no strategy for locator kind %q", loc.Kind)}
	}
	return nil, BlobInfo{}, &UpstreamError{Op: "resolve", Err: errors.Join(attempts...)}
}

// fetchFreshLink mints a short-lived download URL for key and streams it.
func (r *Resolver) fetchFreshLink(ctx context.Context, key string) ([]byte, BlobInfo, error) {
	link, err := r.backend.ShareLink(ctx, key)
	if err != nil {
		return nil, BlobInfo{}, err
	}
	return r.fetchURL(ctx, link)
}

func (r *Resolver) fetchURL(ctx context.Context, rawURL string) ([]byte, BlobInfo, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, BlobInfo{}, fmt.Errorf("not an absolute URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, BlobInfo{}, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, BlobInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, BlobInfo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, BlobInfo{}, err
	}

	info := BlobInfo{
		ContentType:  resp.Header.Get("Content-Type"),
		Size:         int64(len(data)),
		Disposition:  resp.Header.Get("Content-Disposition"),
		AcceptRanges: resp.Header.Get("Accept-Ranges"),
	}
	return data, info, nil
}
