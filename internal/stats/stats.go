// Package stats computes the dashboard's overview and per-event figures.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/cache"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/docstore"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

const (
	// NotSpecified labels registrations without a college.
	NotSpecified = "Not specified"
	recentLimit  = 5
	averageDays  = 7
)

// Overview is the dashboard summary. It is cached as a whole.
type Overview struct {
	TotalUsers         int             `json:"totalUsers"`
	TotalRegistrations int             `json:"totalRegistrations"`
	RegistrationsToday int             `json:"todayRegistrations"`
	NewUsersToday      int             `json:"newUsersToday"`
	TopCollege         string          `json:"topCollege"`
	AvgPerDay          int             `json:"avgPerDay"`
	Recent             []record.Record `json:"recentRegs"`
	ComputedAt         time.Time       `json:"computedAt"`
}

// DayCount is the number of registrations on one calendar day.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// EventStats summarizes the registrations for one event.
type EventStats struct {
	EventID  string         `json:"eventId"`
	Total    int            `json:"totalRegistrations"`
	Today    int            `json:"todayRegistrations"`
	Colleges map[string]int `json:"colleges"`
	Daily    []DayCount     `json:"dailyRegistrations"`
}

// Cache stores computed overviews. *cache.Store satisfies it.
type Cache interface {
	Get(key string, v any) bool
	Set(key string, v any) bool
	Invalidate(key string) error
}

// Service loads records and computes statistics.
type Service struct {
	store  docstore.Store
	cache  Cache
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source. Day bounds use the returned
// time's location.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service. cache may be nil.
func New(store docstore.Store, c Cache, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cache:  c,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overview returns the cached overview, or computes and caches a fresh one.
func (s *Service) Overview(ctx context.Context) (Overview, bool, error) {
	if s.cache != nil {
		var o Overview
		if s.cache.Get(cache.KeyOverview, &o) {
			s.logger.Debug("overview from cache", "computed_at", o.ComputedAt)
			return o, true, nil
		}
	}
	o, err := s.compute(ctx)
	return o, false, err
}

// Refresh drops the cached overview and recomputes it.
func (s *Service) Refresh(ctx context.Context) (Overview, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(cache.KeyOverview); err != nil {
			s.logger.Warn("invalidate overview", "error", err)
		}
	}
	return s.compute(ctx)
}

func (s *Service) compute(ctx context.Context) (Overview, error) {
	var users, regs []record.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.store.List(gctx, record.Users.Collection)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		regs, err = s.store.List(gctx, record.Registrations.Collection)
		if err != nil {
			return fmt.Errorf("list registrations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	o := ComputeOverview(users, regs, s.now())
	if s.cache != nil {
		s.cache.Set(cache.KeyOverview, o)
	}
	s.logger.Info("overview computed", "users", o.TotalUsers, "registrations", o.TotalRegistrations)
	return o, nil
}

// Event computes statistics for registrations whose eventId equals id.
// Event statistics are not cached.
func (s *Service) Event(ctx context.Context, eventID string) (EventStats, error) {
	regs, err := s.store.Query(ctx, record.Registrations.Collection, "eventId", eventID)
	if err != nil {
		return EventStats{}, fmt.Errorf("query registrations for %s: %w", eventID, err)
	}
	return ComputeEvent(eventID, regs, s.now()), nil
}

// dayBounds returns the start of now's day and of the following day, in
// now's location.
func dayBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

func within(r record.Record, from, to time.Time) bool {
	t, ok := record.Resolve(r)
	return ok && !t.Before(from) && t.Before(to)
}

func collegeOf(r record.Record) string {
	if c := r.College(); c != "" {
		return c
	}
	return NotSpecified
}

// ComputeOverview derives the overview from full user and registration sets.
func ComputeOverview(users, regs []record.Record, now time.Time) Overview {
	start, end := dayBounds(now)
	weekStart := start.AddDate(0, 0, -(averageDays - 1))

	o := Overview{
		TotalUsers:         len(users),
		TotalRegistrations: len(regs),
		TopCollege:         record.NotAvailable,
		ComputedAt:         now,
	}

	colleges := make(map[string]int)
	lastWeek := 0
	for _, r := range regs {
		if within(r, start, end) {
			o.RegistrationsToday++
		}
		if within(r, weekStart, end) {
			lastWeek++
		}
		colleges[collegeOf(r)]++
	}
	for _, u := range users {
		if within(u, start, end) {
			o.NewUsersToday++
		}
	}

	if top := topKey(colleges); top != "" {
		o.TopCollege = top
	}
	o.AvgPerDay = int(math.Round(float64(lastWeek) / averageDays))

	recent := make([]record.Record, len(regs))
	copy(recent, regs)
	record.SortByTime(recent)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	o.Recent = recent
	return o
}

// topKey returns the key with the highest count, breaking ties by name.
func topKey(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

// ComputeEvent derives per-event statistics. Daily buckets use UTC dates.
func ComputeEvent(eventID string, regs []record.Record, now time.Time) EventStats {
	start, end := dayBounds(now)
	es := EventStats{
		EventID:  eventID,
		Total:    len(regs),
		Colleges: make(map[string]int),
	}

	daily := make(map[string]int)
	for _, r := range regs {
		if within(r, start, end) {
			es.Today++
		}
		es.Colleges[collegeOf(r)]++
		daily[record.ResolveTime(r).UTC().Format(time.DateOnly)]++
	}

	es.Daily = make([]DayCount, 0, len(daily))
	for d, n := range daily {
		es.Daily = append(es.Daily, DayCount{Date: d, Count: n})
	}
	sort.Slice(es.Daily, func(i, j int) bool { return es.Daily[i].Date < es.Daily[j].Date })
	return es
}

// CollegeCount is one row of SortedColleges.
type CollegeCount struct {
	College string
	Count   int
}

// SortedColleges returns college counts ordered by count, then name.
func (es EventStats) SortedColleges() []CollegeCount {
	out := make([]CollegeCount, 0, len(es.Colleges))
	for c, n := range es.Colleges {
		out = append(out, CollegeCount{College: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].College < out[j].College
	})
	return out
}
