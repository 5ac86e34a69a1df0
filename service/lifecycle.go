package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mouleshgs/onboardX/model"
	"github.com/mouleshgs/onboardX/pkg/logger"
)

// Lifecycle orchestrates the contract state machine: upload creates a
// pending record, sign performs resolve -> mutate -> persist -> commit,
// and event postings feed the progress recompute. All network I/O runs
// outside the per-contract lock; only the transition itself holds it.
type Lifecycle struct {
	registry *Registry
	resolver *Resolver
	signer   *Signer
	writer   *Writer
	access   *Provisioner
}

func NewLifecycle(registry *Registry, resolver *Resolver, signer *Signer, writer *Writer, access *Provisioner) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		resolver: resolver,
		signer:   signer,
		writer:   writer,
		access:   access,
	}
}

// Upload persists the original bytes and creates the pending record.
func (l *Lifecycle) Upload(ctx context.Context, vendorID, vendorEmail, assigneeEmail, originalName string, data []byte, contentType string) (*model.Contract, error) {
	id := uuid.New().String()

	loc, err := l.writer.Write(ctx, fmt.Sprintf("contracts/%s/%s", id, originalName), data, contentType)
	if err != nil {
		return nil, err
	}

	contract := &model.Contract{
		ID:              id,
		VendorID:        vendorID,
		VendorEmail:     vendorEmail,
		AssignedToEmail: assigneeEmail,
		OriginalName:    originalName,
		Locator:         loc,
		Status:          model.StatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := l.registry.Create(contract); err != nil {
		return nil, err
	}

	logger.Info(ctx, "contract uploaded",
		"contract_id", id,
		"assigned_to", assigneeEmail,
		"backend", loc.Kind,
	)
	return contract, nil
}

// Sign runs the full signing flow. Exactly one of two concurrent calls
// commits the pending -> signed transition; the loser gets ErrConflict.
// If signing succeeds but persisting the signed bytes fails, the
// contract stays pending and the error propagates, never a partial
// commit.
func (l *Lifecycle) Sign(ctx context.Context, contractID, signerName, signatureDataURL string) (*model.Contract, error) {
	c, err := l.registry.Get(contractID)
	if err != nil {
		return nil, err
	}
	if c.Status == model.StatusSigned {
		return nil, ErrConflict
	}

	original, _, err := l.resolver.Resolve(ctx, c.Locator)
	if err != nil {
		return nil, err
	}

	signed, rec, err := l.signer.Sign(ctx, original, signerName, signatureDataURL)
	if err != nil {
		return nil, err
	}

	outName := fmt.Sprintf("%s-signed-%d.pdf", contractID, time.Now().UnixMilli())
	loc, err := l.writer.Write(ctx, outName, signed, "application/pdf")
	if err != nil {
		return nil, err
	}
	rec.Locator = loc

	updated, err := l.registry.Update(contractID, func(c *model.Contract) error {
		if c.Status != model.StatusPending {
			return ErrConflict
		}
		c.Status = model.StatusSigned
		signedAt := rec.SignedAt
		c.SignedAt = &signedAt
		c.Signature = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "contract signed",
		"contract_id", contractID,
		"signer", signerName,
		"sha256", rec.Sha256,
		"backend", loc.Kind,
	)

	// First transition: materialize the access grant straight away so
	// the sign response can include it.
	if _, err := l.access.EnsureAccess(ctx, contractID); err != nil {
		logger.Warn(ctx, "access provisioning after signing failed", "contract_id", contractID, "error", err)
		return updated, nil
	}
	return l.registry.Get(contractID)
}

// PostEvent flips an engagement flag (idempotently, false -> true only)
// and refreshes the cached progress on any existing grant.
func (l *Lifecycle) PostEvent(ctx context.Context, contractID, event string) (*model.Contract, error) {
	if event != model.EventSlackVisited && event != model.EventNotionCompleted {
		return nil, fmt.Errorf("unknown event %q", event)
	}

	return l.registry.Update(contractID, func(c *model.Contract) error {
		switch event {
		case model.EventSlackVisited:
			c.Events.SlackVisited = true
		case model.EventNotionCompleted:
			c.Events.NotionCompleted = true
		}
		l.access.Refresh(c)
		return nil
	})
}

// NudgeMessage builds the default nudge text from the contract's
// current lifecycle state.
func NudgeMessage(c *model.Contract) string {
	if c.Status == model.StatusPending {
		return fmt.Sprintf("Reminder: the contract %q is awaiting your signature.", c.OriginalName)
	}
	progress := Progress(c.Status, c.Events)
	if progress >= 100 {
		return fmt.Sprintf("Congratulations, onboarding for %q is complete.", c.OriginalName)
	}
	return fmt.Sprintf("You're at %d%% of onboarding for %q - keep going.", progress, c.OriginalName)
}
