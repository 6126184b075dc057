// Package status flips the "email sent" flag on records.
//
// The flag is a human attestation: the mail is sent from an external client
// the dashboard cannot observe. Every interactive toggle therefore goes
// through a Confirmer, with a stronger warning when demoting to unsent.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/docstore"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// ErrNoConfirmer is returned by Toggle and ToggleBulk when the coordinator
// was built without a Confirmer.
var ErrNoConfirmer = errors.New("status toggle requires a confirmer")

// sentAtLayout matches the ISO strings already stored by the web dashboard.
const sentAtLayout = "2006-01-02T15:04:05.000Z07:00"

// PersistenceError reports a failed status write. For bulk writes, Failed
// may be a subset of IDs when the store committed part of the set.
type PersistenceError struct {
	Kind   string
	Sent   bool
	IDs    []string
	Failed []string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("set %s sent=%t for %d record(s) (%d failed): %v", e.Kind, e.Sent, len(e.IDs), len(e.Failed), e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Invalidator drops a cached dataset. *cache.Store satisfies it.
type Invalidator interface {
	Invalidate(key string) error
}

// Coordinator persists status changes and invalidates the owning dataset's
// cache entry after each write.
type Coordinator struct {
	store   docstore.Store
	cache   Invalidator
	confirm Confirmer
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfirmer sets the confirmation gate used by Toggle and ToggleBulk.
func WithConfirmer(c Confirmer) Option {
	return func(co *Coordinator) {
		co.confirm = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(co *Coordinator) {
		co.logger = logger
	}
}

// WithClock overrides the time source for the sent-at field.
func WithClock(now func() time.Time) Option {
	return func(co *Coordinator) {
		co.now = now
	}
}

// New creates a Coordinator.
func New(store docstore.Store, cache Invalidator, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		cache:  cache,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) fields(kind record.Kind, sent bool) map[string]any {
	var at any
	if sent {
		at = c.now().UTC().Format(sentAtLayout)
	}
	return map[string]any{
		kind.SentField:   sent,
		kind.SentAtField: at,
	}
}

// SetSent writes one record's flag and invalidates its dataset.
func (c *Coordinator) SetSent(ctx context.Context, kind record.Kind, id string, sent bool) error {
	if err := c.store.Update(ctx, kind.Collection, id, c.fields(kind, sent)); err != nil {
		return &PersistenceError{Kind: kind.Name, Sent: sent, IDs: []string{id}, Failed: []string{id}, Err: err}
	}
	c.invalidate(kind)
	c.logger.Info("email status updated", "kind", kind.Name, "id", id, "sent", sent)
	return nil
}

// SetSentBulk writes the flag for every id in one logical batch. Any
// failure is reported for the whole call.
func (c *Coordinator) SetSentBulk(ctx context.Context, kind record.Kind, ids []string, sent bool) error {
	if len(ids) == 0 {
		return nil
	}
	err := c.store.BatchUpdate(ctx, kind.Collection, ids, c.fields(kind, sent))
	if err != nil {
		failed := ids
		var partial *docstore.PartialError
		if errors.As(err, &partial) {
			failed = partial.Failed
			// Part of the set changed, so the cached copy is stale.
			c.invalidate(kind)
		}
		c.logger.Warn("bulk status update failed", "kind", kind.Name, "ids", len(ids), "failed", len(failed), "error", err)
		return &PersistenceError{Kind: kind.Name, Sent: sent, IDs: ids, Failed: failed, Err: err}
	}
	c.invalidate(kind)
	c.logger.Info("email status updated", "kind", kind.Name, "ids", docstore.Summary(ids), "count", len(ids), "sent", sent)
	return nil
}

// Toggle asks for confirmation, then calls SetSent. It returns false with a
// nil error when the confirmation is declined.
func (c *Coordinator) Toggle(ctx context.Context, kind record.Kind, target record.Record, sent bool) (bool, error) {
	ok, err := c.ask(ctx, PromptFor(kind, target.Name(), 1, sent))
	if err != nil || !ok {
		return false, err
	}
	return true, c.SetSent(ctx, kind, target.ID, sent)
}

// ToggleBulk asks once for the whole selection, then calls SetSentBulk.
func (c *Coordinator) ToggleBulk(ctx context.Context, kind record.Kind, ids []string, sent bool) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	ok, err := c.ask(ctx, PromptFor(kind, "", len(ids), sent))
	if err != nil || !ok {
		return false, err
	}
	return true, c.SetSentBulk(ctx, kind, ids, sent)
}

func (c *Coordinator) ask(ctx context.Context, p Prompt) (bool, error) {
	if c.confirm == nil {
		return false, ErrNoConfirmer
	}
	ok, err := c.confirm.Confirm(ctx, p)
	if err != nil {
		return false, fmt.Errorf("confirm status change: %w", err)
	}
	if !ok {
		c.logger.Debug("status change declined", "count", p.Count, "sent", p.Sent)
	}
	return ok, nil
}

func (c *Coordinator) invalidate(kind record.Kind) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(kind.CacheKey); err != nil {
		c.logger.Warn("invalidate after status change", "key", kind.CacheKey, "error", err)
	}
}
