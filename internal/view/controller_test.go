package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/cache"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

type fetchCounter struct {
	calls int
	items []record.Record
	err   error
}

func (f *fetchCounter) fetch(ctx context.Context) ([]record.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func makeRecords(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		name := fmt.Sprintf("user%03d", i)
		if i%3 == 0 {
			name = fmt.Sprintf("alice%03d", i)
		}
		out[i] = record.New(fmt.Sprintf("u%03d", i), map[string]any{"name": name})
	}
	return out
}

func ids(items []record.Record) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.ID
	}
	return out
}

func newController(t *testing.T, store *cache.Store, f *fetchCounter, opts ...Option) *Controller[record.Record] {
	t.Helper()
	c, err := New(store, cache.KeyUsers, f.fetch, record.Match, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLoadInitial_CacheHitSkipsFetch(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	seeded := []record.Record{record.New("u1", map[string]any{"name": "Alice"})}
	if !store.Set(cache.KeyUsers, seeded) {
		t.Fatal("seed cache")
	}
	f := &fetchCounter{}
	c := newController(t, store, f)

	fromCache, err := c.LoadInitial(context.Background())
	if err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	if !fromCache {
		t.Error("fromCache = false, want true")
	}
	if f.calls != 0 {
		t.Errorf("fetch calls = %d, want 0", f.calls)
	}
	if diff := cmp.Diff(seeded, c.All()); diff != "" {
		t.Errorf("All mismatch (-want +got):\n%s", diff)
	}
	if c.CurrentPage() != 1 {
		t.Errorf("CurrentPage = %d, want 1", c.CurrentPage())
	}
}

func TestLoadInitial_MissFetchesAndCaches(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	f := &fetchCounter{items: makeRecords(3)}
	c := newController(t, store, f)

	fromCache, err := c.LoadInitial(context.Background())
	if err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	if fromCache {
		t.Error("fromCache = true on empty cache")
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}

	var cached []record.Record
	if !store.Get(cache.KeyUsers, &cached) {
		t.Fatal("fetched data was not cached")
	}
	if diff := cmp.Diff(ids(f.items), ids(cached)); diff != "" {
		t.Errorf("cached ids mismatch (-want +got):\n%s", diff)
	}

	// A second controller over the same cache does not fetch.
	f2 := &fetchCounter{}
	c2 := newController(t, store, f2)
	if fromCache, _ := c2.LoadInitial(context.Background()); !fromCache || f2.calls != 0 {
		t.Errorf("second load: fromCache=%v calls=%d, want true/0", fromCache, f2.calls)
	}
}

func TestLoadInitial_EmptyCachedPayloadFetches(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	store.Set(cache.KeyUsers, []record.Record{})
	f := &fetchCounter{items: makeRecords(2)}
	c := newController(t, store, f)

	fromCache, err := c.LoadInitial(context.Background())
	if err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	if fromCache || f.calls != 1 {
		t.Errorf("fromCache=%v calls=%d, want false/1", fromCache, f.calls)
	}
}

func TestLoadInitial_FetchErrorPropagates(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	boom := errors.New("store unreachable")
	f := &fetchCounter{err: boom}
	c := newController(t, store, f)

	_, err := c.LoadInitial(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (no retry)", f.calls)
	}
	var cached []record.Record
	if store.Get(cache.KeyUsers, &cached) {
		t.Error("failed fetch should not populate the cache")
	}
}

func TestPagination_CoversFilteredSetInOrder(t *testing.T) {
	for _, n := range []int{0, 1, 49, 50, 51, 120, 151} {
		for _, query := range []string{"", "alice", "user", "nobody"} {
			t.Run(fmt.Sprintf("n=%d/q=%s", n, query), func(t *testing.T) {
				store := cache.New(cache.NewMemoryBackend(0))
				f := &fetchCounter{items: makeRecords(n)}
				c := newController(t, store, f)
				if _, err := c.LoadInitial(context.Background()); err != nil {
					t.Fatal(err)
				}

				first := c.Filter(query)
				got := ids(first.Items)
				for {
					page, ok := c.LoadMore()
					if !ok {
						break
					}
					if !page.Append {
						t.Error("LoadMore page should be in append mode")
					}
					got = append(got, ids(page.Items)...)
				}

				var want []string
				for _, r := range f.items {
					if record.Match(r, query) {
						want = append(want, r.ID)
					}
				}
				if len(got) != len(want) {
					t.Fatalf("covered %d items, want %d", len(got), len(want))
				}
				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("item %d = %s, want %s", i, got[i], want[i])
					}
				}
				if c.Remaining() != 0 {
					t.Errorf("Remaining = %d after exhausting pages", c.Remaining())
				}
				if diff := cmp.Diff(want, ids(c.Visible()), cmpNilEmpty); diff != "" {
					t.Errorf("Visible mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

var cmpNilEmpty = cmp.Comparer(func(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
})

func TestLoadMore_NoOpAtEnd(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	c := newController(t, store, &fetchCounter{items: makeRecords(60)})
	if _, err := c.LoadInitial(context.Background()); err != nil {
		t.Fatal(err)
	}

	if c.Remaining() != 10 {
		t.Errorf("Remaining = %d, want 10", c.Remaining())
	}
	page, ok := c.LoadMore()
	if !ok || page.Number != 2 || len(page.Items) != 10 {
		t.Fatalf("LoadMore = (page %d, %d items, %v), want (2, 10, true)", page.Number, len(page.Items), ok)
	}
	for i := 0; i < 3; i++ {
		if _, ok := c.LoadMore(); ok {
			t.Error("LoadMore past the end should report false")
		}
		if c.CurrentPage() != 2 {
			t.Errorf("CurrentPage = %d, want 2", c.CurrentPage())
		}
	}
}

func TestFilter_ResetsToPageOne(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	c := newController(t, store, &fetchCounter{items: makeRecords(200)})
	if _, err := c.LoadInitial(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.LoadMore()
	c.LoadMore()
	if c.CurrentPage() != 3 {
		t.Fatalf("CurrentPage = %d, want 3", c.CurrentPage())
	}

	page := c.Filter("ALICE")
	if page.Number != 1 || c.CurrentPage() != 1 {
		t.Errorf("page after filter = %d, want 1", page.Number)
	}
	if page.Append {
		t.Error("filter should replace, not append")
	}
	if page.Total != 67 {
		t.Errorf("Total = %d, want 67", page.Total)
	}

	// Clearing the filter restores the full set.
	if got := c.Filter("").Total; got != 200 {
		t.Errorf("Total after clearing filter = %d, want 200", got)
	}
}

func TestFilter_SurvivesReload(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	f := &fetchCounter{items: makeRecords(30)}
	c := newController(t, store, f)
	if _, err := c.LoadInitial(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Filter("alice")

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if f.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 after refresh", f.calls)
	}
	if got := c.TotalCount(); got != 10 {
		t.Errorf("TotalCount after refresh = %d, want 10 (filter reapplied)", got)
	}
}

func TestRenderPage_Clamps(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	c := newController(t, store, &fetchCounter{items: makeRecords(25)}, WithPageSize(10))
	if _, err := c.LoadInitial(context.Background()); err != nil {
		t.Fatal(err)
	}

	if p := c.RenderPage(0, false); p.Number != 1 || len(p.Items) != 10 {
		t.Errorf("RenderPage(0) = page %d with %d items", p.Number, len(p.Items))
	}
	if p := c.RenderPage(99, false); p.Number != 3 || len(p.Items) != 5 {
		t.Errorf("RenderPage(99) = page %d with %d items", p.Number, len(p.Items))
	}

	c.Clear()
	if p := c.RenderPage(1, false); p.Number != 1 || len(p.Items) != 0 || p.Total != 0 {
		t.Errorf("RenderPage on empty = %+v", p)
	}
}

func TestNew_RejectsNonPositivePageSize(t *testing.T) {
	store := cache.New(cache.NewMemoryBackend(0))
	f := &fetchCounter{}
	for _, n := range []int{0, -5} {
		_, err := New(store, cache.KeyUsers, f.fetch, record.Match, WithPageSize(n))
		if !errors.Is(err, ErrInvalidPageSize) {
			t.Errorf("New(pageSize=%d) err = %v, want ErrInvalidPageSize", n, err)
		}
	}
}
