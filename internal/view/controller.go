// Package view pages and filters a cached dataset for display.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// PageSize is the default number of items per page.
const PageSize = 50

// ErrInvalidPageSize is returned by New for a page size below 1.
var ErrInvalidPageSize = errors.New("page size must be positive")

// Cache is the subset of cache.Store the controller needs.
type Cache interface {
	Get(key string, v any) bool
	Set(key string, v any) bool
	Invalidate(key string) error
}

// FetchFunc loads the full dataset from its source of truth.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// MatchFunc reports whether item matches a filter query.
type MatchFunc[T any] func(item T, query string) bool

// Page is one window of the filtered dataset.
type Page[T any] struct {
	Number int
	Items  []T
	// Append is set when Items extend the previously rendered window
	// instead of replacing it.
	Append    bool
	Total     int
	Remaining int
}

type options struct {
	pageSize int
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*options)

// WithPageSize sets the fixed page size.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Controller owns the pagination state of one view: the full dataset, the
// filtered subset derived from it, and the current page. The filtered subset
// is always recomputed from the full dataset, never patched.
type Controller[T any] struct {
	cache    Cache
	key      string
	fetch    FetchFunc[T]
	match    MatchFunc[T]
	pageSize int
	logger   *slog.Logger

	mu       sync.Mutex
	all      []T
	filtered []T
	query    string
	page     int
}

// New creates a controller over the dataset stored under key.
func New[T any](c Cache, key string, fetch FetchFunc[T], match MatchFunc[T], opts ...Option) (*Controller[T], error) {
	o := options{pageSize: PageSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pageSize <= 0 {
		return nil, fmt.Errorf("new view %s: %w", key, ErrInvalidPageSize)
	}
	return &Controller[T]{
		cache:    c,
		key:      key,
		fetch:    fetch,
		match:    match,
		pageSize: o.pageSize,
		logger:   o.logger,
		page:     1,
	}, nil
}

// LoadInitial adopts the cached dataset, or fetches and caches it on a miss,
// then resets to page 1. fromCache is for diagnostics only. Fetch errors are
// returned unchanged and leave the current state untouched.
func (c *Controller[T]) LoadInitial(ctx context.Context) (fromCache bool, err error) {
	var cached []T
	if c.cache.Get(c.key, &cached) && len(cached) > 0 {
		c.logger.Debug("view loaded from cache", "key", c.key, "items", len(cached))
		c.adopt(cached)
		return true, nil
	}

	items, err := c.fetch(ctx)
	if err != nil {
		return false, err
	}
	if !c.cache.Set(c.key, items) {
		c.logger.Debug("view cache write skipped", "key", c.key)
	}
	c.logger.Debug("view loaded from source", "key", c.key, "items", len(items))
	c.adopt(items)
	return false, nil
}

// Refresh drops the cached dataset and loads it again from the source.
func (c *Controller[T]) Refresh(ctx context.Context) error {
	if err := c.cache.Invalidate(c.key); err != nil {
		c.logger.Warn("invalidate before refresh", "key", c.key, "error", err)
	}
	_, err := c.LoadInitial(ctx)
	return err
}

func (c *Controller[T]) adopt(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = items
	c.filtered = c.applyFilter()
	c.page = 1
}

// applyFilter must be called with mu held.
func (c *Controller[T]) applyFilter() []T {
	if c.query == "" || c.match == nil {
		out := make([]T, len(c.all))
		copy(out, c.all)
		return out
	}
	var out []T
	for _, item := range c.all {
		if c.match(item, c.query) {
			out = append(out, item)
		}
	}
	return out
}

// Filter sets the query, recomputes the filtered subset, and returns page 1.
func (c *Controller[T]) Filter(query string) Page[T] {
	c.mu.Lock()
	c.query = query
	c.filtered = c.applyFilter()
	c.mu.Unlock()
	return c.RenderPage(1, false)
}

// RenderPage makes n the current page and returns its items. n is clamped
// to the valid range. With appendMode the caller adds the items below what
// it already shows.
func (c *Controller[T]) RenderPage(n int, appendMode bool) Page[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pages := c.totalPages(); n > pages {
		n = pages
	}
	if n < 1 {
		n = 1
	}
	c.page = n

	start := (n - 1) * c.pageSize
	end := start + c.pageSize
	if start > len(c.filtered) {
		start = len(c.filtered)
	}
	if end > len(c.filtered) {
		end = len(c.filtered)
	}
	items := make([]T, end-start)
	copy(items, c.filtered[start:end])

	return Page[T]{
		Number:    n,
		Items:     items,
		Append:    appendMode,
		Total:     len(c.filtered),
		Remaining: c.remaining(),
	}
}

// LoadMore advances to the next page. At the last page it does nothing and
// returns false.
func (c *Controller[T]) LoadMore() (Page[T], bool) {
	c.mu.Lock()
	more := c.page < c.totalPages()
	next := c.page + 1
	c.mu.Unlock()
	if !more {
		return Page[T]{}, false
	}
	return c.RenderPage(next, true), true
}

// HasMore reports whether pages remain after the current one.
func (c *Controller[T]) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page < c.totalPages()
}

// Remaining returns how many filtered items lie past the current page.
func (c *Controller[T]) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining()
}

func (c *Controller[T]) remaining() int {
	r := len(c.filtered) - c.page*c.pageSize
	if r < 0 {
		return 0
	}
	return r
}

func (c *Controller[T]) totalPages() int {
	return (len(c.filtered) + c.pageSize - 1) / c.pageSize
}

// TotalPages returns the page count of the filtered subset.
func (c *Controller[T]) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPages()
}

// CurrentPage returns the 1-based current page.
func (c *Controller[T]) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// PageSize returns the fixed page size.
func (c *Controller[T]) PageSize() int {
	return c.pageSize
}

// Query returns the active filter.
func (c *Controller[T]) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Visible returns every item rendered so far: pages 1 through the current
// one of the filtered subset.
func (c *Controller[T]) Visible() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	end := c.page * c.pageSize
	if end > len(c.filtered) {
		end = len(c.filtered)
	}
	out := make([]T, end)
	copy(out, c.filtered[:end])
	return out
}

// Filtered returns a copy of the filtered subset.
func (c *Controller[T]) Filtered() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.filtered))
	copy(out, c.filtered)
	return out
}

// All returns a copy of the full dataset.
func (c *Controller[T]) All() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.all))
	copy(out, c.all)
	return out
}

// TotalCount returns the number of filtered items.
func (c *Controller[T]) TotalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filtered)
}

// Clear drops the dataset and resets the filter and page.
func (c *Controller[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = nil
	c.filtered = nil
	c.query = ""
	c.page = 1
}
