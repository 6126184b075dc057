package record

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestResolveTime_Priority(t *testing.T) {
	r := New("r1", map[string]any{
		"registeredAt": "2024-01-01T00:00:00Z",
		"createdAt":    "2023-01-01T00:00:00Z",
	})
	got := ResolveTime(r)
	want := mustTime(t, "2024-01-01T00:00:00Z")
	if !got.Equal(want) {
		t.Errorf("ResolveTime = %v, want %v (registeredAt wins over createdAt)", got, want)
	}
}

func TestResolveTime_Order(t *testing.T) {
	reg := "2024-03-01T10:00:00Z"
	ts := mustTime(t, "2024-02-01T10:00:00Z")
	created := "2024-01-01T10:00:00Z"

	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"all three", map[string]any{"registeredAt": reg, "timestamp": ts, "createdAt": created}, reg},
		{"timestamp over createdAt", map[string]any{"timestamp": ts, "createdAt": created}, "2024-02-01T10:00:00Z"},
		{"createdAt only", map[string]any{"createdAt": created}, created},
		{"empty registeredAt skipped", map[string]any{"registeredAt": "", "createdAt": created}, created},
		{"unparseable registeredAt skipped", map[string]any{"registeredAt": "soon", "timestamp": ts}, "2024-02-01T10:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTime(New("x", tt.fields))
			if want := mustTime(t, tt.want); !got.Equal(want) {
				t.Errorf("ResolveTime = %v, want %v", got, want)
			}
		})
	}
}

func TestResolveTime_FallbackIsStable(t *testing.T) {
	r := New("x", map[string]any{"name": "no dates"})
	if _, ok := Resolve(r); ok {
		t.Fatal("Resolve should report no usable time")
	}
	first := ResolveTime(r)
	time.Sleep(2 * time.Millisecond)
	second := ResolveTime(r)
	if !first.Equal(second) {
		t.Errorf("fallback changed between calls: %v then %v", first, second)
	}
}

func TestParseTime_Shapes(t *testing.T) {
	want := mustTime(t, "2024-05-06T07:08:09Z")
	tests := []struct {
		name string
		in   any
	}{
		{"native", want},
		{"iso", "2024-05-06T07:08:09Z"},
		{"iso millis", "2024-05-06T07:08:09.000Z"},
		{"iso offset", "2024-05-06T09:08:09+02:00"},
		{"epoch millis float", float64(want.UnixMilli())},
		{"epoch millis int64", want.UnixMilli()},
		{"serialized timestamp", map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)}},
		{"admin sdk timestamp", map[string]any{"_seconds": float64(want.Unix()), "_nanoseconds": float64(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			if !ok {
				t.Fatalf("ParseTime(%v) reported no time", tt.in)
			}
			if !got.Equal(want) {
				t.Errorf("ParseTime(%v) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestParseTime_DateOnlyIsUTC(t *testing.T) {
	got, ok := ParseTime("2024-05-06")
	if !ok {
		t.Fatal("date-only string not parsed")
	}
	if want := mustTime(t, "2024-05-06T00:00:00Z"); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseTime_Absent(t *testing.T) {
	for _, in := range []any{nil, "", "   ", float64(0), time.Time{}, true, map[string]any{"foo": 1.0}} {
		if got, ok := ParseTime(in); ok {
			t.Errorf("ParseTime(%#v) = %v, want absent", in, got)
		}
	}
}

func TestSortByTime_NewestFirstStable(t *testing.T) {
	records := []Record{
		New("old", map[string]any{"createdAt": "2023-01-01T00:00:00Z"}),
		New("new", map[string]any{"registeredAt": "2024-06-01T00:00:00Z"}),
		New("tieA", map[string]any{"timestamp": "2024-01-01T00:00:00Z"}),
		New("tieB", map[string]any{"timestamp": "2024-01-01T00:00:00Z"}),
	}
	SortByTime(records)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	want := []string{"new", "tieA", "tieB", "old"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}
