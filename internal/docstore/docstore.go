// Package docstore reads and writes records in the remote document store.
package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// Store is the remote document store: collections of loosely typed records
// addressed by store-assigned ids.
type Store interface {
	// List returns every document in collection.
	List(ctx context.Context, collection string) ([]record.Record, error)
	// Query returns documents whose field equals value.
	Query(ctx context.Context, collection, field string, value any) ([]record.Record, error)
	// Update sets fields on one existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// BatchUpdate sets the same fields on several existing documents.
	BatchUpdate(ctx context.Context, collection string, ids []string, fields map[string]any) error
}

// NotFoundError indicates a missing document or collection path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// APIError is a non-retryable error response from the store.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("store error (%d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("store error (%d): %s", e.StatusCode, e.Message)
}

// PartialError reports a batch update that failed after some writes were
// committed.
type PartialError struct {
	Committed []string
	Failed    []string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("batch update: %d committed, %d failed: %v", len(e.Committed), len(e.Failed), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Summary lists ids briefly for logs and error messages.
func Summary(ids []string) string {
	const limit = 5
	if len(ids) <= limit {
		return strings.Join(ids, ",")
	}
	return fmt.Sprintf("%s,... (%d total)", strings.Join(ids[:limit], ","), len(ids))
}
