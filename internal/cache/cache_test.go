package cache

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// flakyBackend wraps a MemoryBackend and fails the first failPuts writes with
// ErrQuotaExceeded.
type flakyBackend struct {
	*MemoryBackend

	mu       sync.Mutex
	failPuts int
	puts     int
	clears   int
	deletes  []string
}

func newFlakyBackend(failPuts int) *flakyBackend {
	return &flakyBackend{MemoryBackend: NewMemoryBackend(0), failPuts: failPuts}
}

func (f *flakyBackend) Put(key string, value []byte) error {
	f.mu.Lock()
	f.puts++
	fail := f.puts <= f.failPuts
	f.mu.Unlock()
	if fail {
		return ErrQuotaExceeded
	}
	return f.MemoryBackend.Put(key, value)
}

func (f *flakyBackend) Clear() error {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
	return f.MemoryBackend.Clear()
}

func (f *flakyBackend) Delete(key string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, key)
	f.mu.Unlock()
	return f.MemoryBackend.Delete(key)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(b Backend) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)}
	return New(b, WithClock(clock.Now)), clock
}

func TestStore_SetThenGet(t *testing.T) {
	s, _ := newTestStore(NewMemoryBackend(0))

	if !s.Set("k", []int{1, 2, 3}) {
		t.Fatal("Set returned false")
	}
	var got []int
	if !s.Get("k", &got) {
		t.Fatal("Get reported miss after Set")
	}
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(NewMemoryBackend(0))
	var got []int
	if s.Get("absent", &got) {
		t.Error("Get on empty store should miss")
	}
}

func TestStore_NeverExpires(t *testing.T) {
	s, clock := newTestStore(NewMemoryBackend(0))
	s.Set(KeyUsers, []string{"u1"})

	for _, d := range []time.Duration{time.Hour, 24 * time.Hour, 365 * 24 * time.Hour} {
		clock.Advance(d)
		var got []string
		if !s.Get(KeyUsers, &got) {
			t.Fatalf("entry missing after %v", d)
		}
		if len(got) != 1 || got[0] != "u1" {
			t.Errorf("after %v got %v, want [u1]", d, got)
		}
	}
}

func TestStore_OverwriteIsWholesale(t *testing.T) {
	s, _ := newTestStore(NewMemoryBackend(0))
	s.Set("k", map[string]int{"a": 1, "b": 2})
	s.Set("k", map[string]int{"c": 3})

	var got map[string]int
	s.Get("k", &got)
	if diff := cmp.Diff(map[string]int{"c": 3}, got); diff != "" {
		t.Errorf("overwrite merged entries (-want +got):\n%s", diff)
	}
}

func TestStore_QuotaExceededEvictsAndRetries(t *testing.T) {
	b := newFlakyBackend(1)
	s, _ := newTestStore(b)

	// Something else is cached before the failing write.
	if err := b.MemoryBackend.Put("other", []byte(`{"data":[0]}`)); err != nil {
		t.Fatal(err)
	}

	if !s.Set("k", []int{1, 2, 3}) {
		t.Fatal("Set should succeed on retry")
	}
	if b.clears != 1 {
		t.Errorf("clears = %d, want 1", b.clears)
	}
	if b.puts != 2 {
		t.Errorf("puts = %d, want 2", b.puts)
	}

	var got []int
	if !s.Get("k", &got) {
		t.Fatal("value not retrievable after retry")
	}
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if _, ok, _ := b.MemoryBackend.Get("other"); ok {
		t.Error("eviction should have removed unrelated keys")
	}
}

func TestStore_QuotaExceededTwiceDropsWrite(t *testing.T) {
	b := newFlakyBackend(2)
	s, _ := newTestStore(b)

	if s.Set("k", []int{1}) {
		t.Error("Set should report false when retry fails")
	}
	if b.clears != 1 {
		t.Errorf("clears = %d, want exactly 1", b.clears)
	}
	if b.puts != 2 {
		t.Errorf("puts = %d, want 2 (one retry only)", b.puts)
	}
	var got []int
	if s.Get("k", &got) {
		t.Error("dropped write should not be readable")
	}
}

func TestStore_CorruptEntrySelfHeals(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not_json", "{{{"},
		{"null_data", `{"data":null,"storedAt":"2025-01-01T00:00:00Z"}`},
		{"missing_data", `{"storedAt":"2025-01-01T00:00:00Z"}`},
		{"wrong_shape", `{"data":"text","storedAt":"2025-01-01T00:00:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFlakyBackend(0)
			if err := b.MemoryBackend.Put("k", []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}
			s, _ := newTestStore(b)

			var got []int
			if s.Get("k", &got) {
				t.Fatal("corrupt entry should read as a miss")
			}
			if len(b.deletes) != 1 || b.deletes[0] != "k" {
				t.Errorf("deletes = %v, want [k]", b.deletes)
			}
			if b.Len() != 0 {
				t.Errorf("backend still holds %d entries", b.Len())
			}
		})
	}
}

func TestStore_InvalidateAndInvalidateAll(t *testing.T) {
	s, _ := newTestStore(NewMemoryBackend(0))
	for _, k := range Keys {
		s.Set(k, []int{1})
	}

	if err := s.Invalidate(KeyUsers); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	var got []int
	if s.Get(KeyUsers, &got) {
		t.Error("invalidated key still present")
	}
	if !s.Get(KeyRegistrations, &got) {
		t.Error("Invalidate removed an unrelated key")
	}

	if err := s.InvalidateAll(); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	for _, k := range Keys {
		if s.Get(k, &got) {
			t.Errorf("%s present after InvalidateAll", k)
		}
	}
}

func TestStore_Age(t *testing.T) {
	s, clock := newTestStore(NewMemoryBackend(0))
	if _, ok := s.Age("k"); ok {
		t.Error("Age of a missing key should report false")
	}

	s.Set("k", []int{1})
	clock.Advance(90 * time.Minute)

	age, ok := s.Age("k")
	if !ok {
		t.Fatal("Age reported missing entry")
	}
	if age != 90*time.Minute {
		t.Errorf("age = %v, want 90m", age)
	}
}

func TestMemoryBackend_Quota(t *testing.T) {
	b := NewMemoryBackend(10)
	if err := b.Put("a", []byte("12345")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := b.Put("b", []byte("12345")); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("second put err = %v, want ErrQuotaExceeded", err)
	}
	// Replacing an existing key only counts the difference.
	if err := b.Put("a", []byte("123456789")); err != nil {
		t.Errorf("replace within quota: %v", err)
	}
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), 0)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	s, _ := newTestStore(b)
	s.Set(KeyUsers, []map[string]string{{"id": "u1", "name": "Alice"}})

	var got []map[string]string
	if !s.Get(KeyUsers, &got) {
		t.Fatal("Get missed after Set")
	}
	want := []map[string]string{{"id": "u1", "name": "Alice"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	if err := s.InvalidateAll(); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if s.Get(KeyUsers, &got) {
		t.Error("entry survived InvalidateAll")
	}
}

func TestSQLiteBackend_QuotaMapsToErrQuotaExceeded(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), 16*1024)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	big := []byte(strings.Repeat("x", 256*1024))
	err = b.Put("big", big)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Put err = %v, want ErrQuotaExceeded", err)
	}

	if err := b.Put("small", []byte("ok")); err != nil {
		t.Errorf("small put after full: %v", err)
	}
}
