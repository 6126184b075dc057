// Package record defines the loosely typed documents read from the remote
// store and the dataset kinds the dashboard manages.
package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is shown in place of empty fields. It is never stored.
const NotAvailable = "N/A"

// Record is a single document: a store-assigned ID and a free-form field set.
type Record struct {
	ID     string
	Fields map[string]any
}

// New creates a record with the given fields.
func New(id string, fields map[string]any) Record {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Record{ID: id, Fields: fields}
}

// MarshalJSON flattens the record into {"id": ..., field: value, ...}.
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["id"] = r.ID
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if flat == nil {
		return fmt.Errorf("record: expected object")
	}
	id, _ := flat["id"].(string)
	delete(flat, "id")
	r.ID = id
	r.Fields = flat
	return nil
}

// Get returns a raw field value.
func (r Record) Get(field string) any {
	return r.Fields[field]
}

// Text returns a field rendered as plain text, or "" when absent.
func (r Record) Text(field string) string {
	return Text(r.Fields[field])
}

func (r Record) Name() string  { return r.Text("name") }
func (r Record) Email() string { return strings.TrimSpace(r.Text("email")) }
func (r Record) Phone() string { return r.Text("phone") }

// College returns the college, falling back to the older university field.
func (r Record) College() string {
	if c := r.Text("college"); c != "" {
		return c
	}
	return r.Text("university")
}

// HasValidEmail reports whether the record's address can receive mail.
func (r Record) HasValidEmail() bool {
	return ValidEmail(r.Email())
}

// ValidEmail rejects empty, placeholder, and @-less addresses.
func ValidEmail(email string) bool {
	return email != "" && email != NotAvailable && strings.Contains(email, "@")
}

// Sent reports the kind's "email sent" flag.
func (r Record) Sent(k Kind) bool {
	b, _ := r.Fields[k.SentField].(bool)
	return b
}

// SentAt returns when the flag was last set, if recorded.
func (r Record) SentAt(k Kind) (time.Time, bool) {
	return ParseTime(r.Fields[k.SentAtField])
}

// Clone returns a copy whose field map can be modified independently.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Fields: fields}
}

// FieldNames returns the record's field names, sorted.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Display substitutes NotAvailable for an empty string.
func Display(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

// Text renders a decoded field value as a string.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case json.Number:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
