package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRecord_JSONIsFlat(t *testing.T) {
	r := New("u1", map[string]any{
		"name":      "Alice",
		"createdAt": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal flat: %v", err)
	}
	want := map[string]any{"id": "u1", "name": "Alice", "createdAt": "2024-01-02T03:04:05Z"}
	if diff := cmp.Diff(want, flat); diff != "" {
		t.Errorf("flat JSON mismatch (-want +got):\n%s", diff)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal record: %v", err)
	}
	if back.ID != "u1" {
		t.Errorf("ID = %q, want u1", back.ID)
	}
	if _, ok := back.Fields["id"]; ok {
		t.Error("id should not remain in Fields")
	}
	// Cached dates come back as strings and still resolve.
	if got := ResolveTime(back); !got.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("ResolveTime after round trip = %v", got)
	}
}

func TestRecord_Accessors(t *testing.T) {
	r := New("r1", map[string]any{
		"name":             "Bob",
		"email":            " bob@example.com ",
		"phone":            float64(9876543210),
		"university":       "MIT",
		"seminarEmailSent": true,
	})
	if got := r.Email(); got != "bob@example.com" {
		t.Errorf("Email = %q", got)
	}
	if got := r.Phone(); got != "9876543210" {
		t.Errorf("Phone = %q, want 9876543210", got)
	}
	if got := r.College(); got != "MIT" {
		t.Errorf("College = %q, want university fallback MIT", got)
	}
	if !r.Sent(Registrations) {
		t.Error("Sent(Registrations) = false, want true")
	}
	if r.Sent(Users) {
		t.Error("Sent(Users) = true, want false")
	}
	if got := Display(New("x", nil).Name()); got != NotAvailable {
		t.Errorf("Display(empty) = %q, want %q", got, NotAvailable)
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a@b.com", true},
		{"", false},
		{"N/A", false},
		{"no-at-sign", false},
	}
	for _, tt := range tests {
		if got := ValidEmail(tt.in); got != tt.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	r := New("u1", map[string]any{
		"name":    "Ärzte Müller",
		"email":   "Mueller@Example.com",
		"phone":   "+91 98765",
		"college": "IIT Bombay",
	})
	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"müller", true},
		{"MÜLLER", true},
		{"example.COM", true},
		{"98765", true},
		{"bombay", true},
		{"  iit ", true},
		{"delhi", false},
	}
	for _, tt := range tests {
		if got := Match(r, tt.query); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestKindByName(t *testing.T) {
	k, err := KindByName("registrations")
	if err != nil {
		t.Fatalf("KindByName: %v", err)
	}
	if k.Collection != "event_registrations" || k.SentField != "seminarEmailSent" {
		t.Errorf("registrations kind = %+v", k)
	}
	if _, err := KindByName("events"); err == nil {
		t.Error("KindByName(events) should fail")
	}
}
