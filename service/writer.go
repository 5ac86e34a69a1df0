package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mouleshgs/onboardX/model"
	"github.com/mouleshgs/onboardX/pkg/logger"
)

// Writer persists blobs with backend fallback: the cloud store is the
// primary, the local directory the secondary. Writes are idempotent
// under the same name (both backends overwrite), so callers may retry.
type Writer struct {
	backend ObjectBackend
	local   *LocalStore
	timeout time.Duration
}

func NewWriter(backend ObjectBackend, local *LocalStore, timeout time.Duration) *Writer {
	return &Writer{backend: backend, local: local, timeout: timeout}
}

// Write stores data under name and returns a locator tagged with the
// backend that actually holds the bytes. After a successful cloud
// write it additionally tries to mint a shareable link; link failure
// degrades the locator to the raw object key, never the write itself.
func (w *Writer) Write(ctx context.Context, name string, data []byte, contentType string) (model.Locator, error) {
	if w.backend != nil {
		putCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.backend.Put(putCtx, name, data, contentType)
		cancel()
		if err == nil {
			linkCtx, cancel := context.WithTimeout(ctx, w.timeout)
			link, err := w.backend.ShareLink(linkCtx, name)
			cancel()
			if err != nil {
				logger.Warn(ctx, "share link creation failed, falling back to object key",
					"name", name,
					"error", err,
				)
				return model.Locator{Kind: model.LocatorObject, Ref: name}, nil
			}
			return model.Locator{Kind: model.LocatorLink, Ref: link}, nil
		}
		logger.Warn(ctx, "primary blob write failed, falling back to local storage",
			"name", name,
			"error", err,
		)
	}

	if w.local == nil {
		return model.Locator{}, &UpstreamError{Op: "write", Err: fmt.Errorf("no storage backend available")}
	}
	if err := w.local.Write(name, data); err != nil {
		return model.Locator{}, &UpstreamError{Op: "write", Err: err}
	}
	return model.Locator{Kind: model.LocatorLocal, Ref: name}, nil
}
