package dispatch

import (
	"errors"
	"fmt"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// ErrInvalidRange is returned by SelectRange for out-of-bounds selections.
var ErrInvalidRange = errors.New("invalid recipient range")

// Recipient is one addressee of a dispatch job.
type Recipient struct {
	ID    string
	Email string
	Name  string
}

// RecipientsFrom converts records to recipients, skipping records without a
// usable email address. Order is preserved.
func RecipientsFrom(records []record.Record) []Recipient {
	out := make([]Recipient, 0, len(records))
	for _, r := range records {
		if !r.HasValidEmail() {
			continue
		}
		out = append(out, Recipient{ID: r.ID, Email: r.Email(), Name: r.Name()})
	}
	return out
}

// SelectRange returns recipients start..end, 1-based and inclusive.
func SelectRange(recipients []Recipient, start, end int) ([]Recipient, error) {
	if start < 1 || end > len(recipients) || start > end {
		return nil, fmt.Errorf("%w: %d-%d of %d", ErrInvalidRange, start, end, len(recipients))
	}
	return recipients[start-1 : end : end], nil
}

func emails(rs []Recipient) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Email
	}
	return out
}

func ids(rs []Recipient) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
