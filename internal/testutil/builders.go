package testutil

import (
	"fmt"
	"time"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// RecordBuilder provides a fluent API for constructing records in tests.
type RecordBuilder struct {
	r record.Record
}

// NewRecord creates a builder with no fields set.
func NewRecord(id string) *RecordBuilder {
	return &RecordBuilder{r: record.New(id, nil)}
}

func (b *RecordBuilder) With(field string, v any) *RecordBuilder {
	b.r.Fields[field] = v
	return b
}

func (b *RecordBuilder) WithName(name string) *RecordBuilder { return b.With("name", name) }

func (b *RecordBuilder) WithEmail(email string) *RecordBuilder { return b.With("email", email) }

func (b *RecordBuilder) WithPhone(phone string) *RecordBuilder { return b.With("phone", phone) }

func (b *RecordBuilder) WithCollege(college string) *RecordBuilder {
	return b.With("college", college)
}

// WithRegisteredAt stores t as an RFC 3339 string, the shape the web
// dashboard writes.
func (b *RecordBuilder) WithRegisteredAt(t time.Time) *RecordBuilder {
	return b.With("registeredAt", t.UTC().Format(time.RFC3339))
}

// WithSent sets the kind's sent flag.
func (b *RecordBuilder) WithSent(kind record.Kind, sent bool) *RecordBuilder {
	return b.With(kind.SentField, sent)
}

func (b *RecordBuilder) Build() record.Record {
	return b.r.Clone()
}

// Base is the registration time of the first canned record. Later records
// are one hour older each.
var Base = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

// Users returns n user records u1..un, newest first.
func Users(n int) []record.Record {
	return canned("u", "User", n, nil)
}

// Registrations returns n registration records r1..rn for event "gsoc",
// newest first.
func Registrations(n int) []record.Record {
	return canned("r", "Attendee", n, map[string]any{"eventId": "gsoc"})
}

func canned(prefix, label string, n int, extra map[string]any) []record.Record {
	out := make([]record.Record, 0, n)
	for i := 1; i <= n; i++ {
		b := NewRecord(fmt.Sprintf("%s%d", prefix, i)).
			WithName(fmt.Sprintf("%s %d", label, i)).
			WithEmail(fmt.Sprintf("%s%d@example.com", prefix, i)).
			WithPhone(fmt.Sprintf("+91 90000 %05d", i)).
			WithCollege("VIT").
			WithRegisteredAt(Base.Add(-time.Duration(i-1) * time.Hour))
		for k, v := range extra {
			b.With(k, v)
		}
		out = append(out, b.Build())
	}
	return out
}
