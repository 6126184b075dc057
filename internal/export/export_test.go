package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/testutil"
)

var registeredAt = time.Date(2025, 10, 20, 8, 30, 0, 0, time.UTC)

func sample() []record.Record {
	return []record.Record{
		testutil.NewRecord("r1").
			WithName(`Ada "The Countess" Lovelace`).
			WithEmail("ada@example.com").
			With("registeredAt", registeredAt).
			With("seminarEmailSent", true).
			With("seminarEmailSentAt", nil).
			Build(),
		testutil.NewRecord("r2").
			WithName("Grace, Hopper").
			With("registeredAt", map[string]any{"seconds": float64(registeredAt.Unix()), "nanoseconds": float64(0)}).
			With("extra", "ignored in csv").
			Build(),
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sample()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "id,email,name,registeredAt,seminarEmailSent,seminarEmailSentAt\n" +
		`"r1","ada@example.com","Ada ""The Countess"" Lovelace","2025-10-20T08:30:00Z","true",""` + "\n" +
		`"r2","","Grace, Hopper","2025-10-20T08:30:00Z","",""`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sample()[:1]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, buf.String())
	}
	want := []map[string]any{{
		"id":                 "r1",
		"name":               `Ada "The Countess" Lovelace`,
		"email":              "ada@example.com",
		"registeredAt":       "2025-10-20T08:30:00Z",
		"seminarEmailSent":   true,
		"seminarEmailSentAt": nil,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  {\n    \"email\"")) {
		t.Errorf("expected two-space indentation:\n%s", buf.String())
	}
}

func TestYAML_IDFirst(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatYAML, sample()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("- id: r1\n")) {
		t.Errorf("yaml should start with the first id:\n%s", buf.String())
	}

	var got []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[1]["registeredAt"] != "2025-10-20T08:30:00Z" {
		t.Errorf("timestamp map not normalized: %v", got[1]["registeredAt"])
	}
	if got[0]["seminarEmailSent"] != true {
		t.Errorf("bool lost: %v", got[0]["seminarEmailSent"])
	}
}

func TestWrite_NoData(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatJSON, FormatYAML} {
		if err := Write(&bytes.Buffer{}, f, nil); !errors.Is(err, ErrNoData) {
			t.Errorf("%s: err = %v, want ErrNoData", f, err)
		}
	}
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registrations.csv")
	if err := ToFile(path, FormatCSV, sample()[:1]); err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	testutil.AssertContainsAll(t, string(testutil.ReadFile(t, path)), `"r1"`, "seminarEmailSentAt")

	empty := filepath.Join(t.TempDir(), "empty.csv")
	if err := ToFile(empty, FormatCSV, nil); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
	testutil.MustNotExist(t, empty)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"out.csv", FormatCSV, true},
		{"out.JSON", FormatJSON, true},
		{"out.yml", FormatYAML, true},
		{"out.xlsx", "", false},
		{"out", "", false},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestNormalize_LeavesOrdinaryMaps(t *testing.T) {
	in := map[string]any{"seconds": float64(5), "label": "lap"}
	got := normalize(in)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("map with extra keys was rewritten (-want +got):\n%s", diff)
	}
}
