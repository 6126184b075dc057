package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/auth"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/cache"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/docstore"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/stats"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/status"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/view"
)

// backend bundles the document store and the local cache used by data
// commands.
type backend struct {
	store  docstore.Store
	cache  *cache.Store
	closer io.Closer
}

// Close releases the cache database, if one was opened.
func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// openBackend resolves the store and cache for this run.
// Resolution order:
//  1. --offline → demo data with an in-memory cache
//  2. otherwise → Firestore as the signed-in admin, SQLite cache
//     (in memory when [cache].disabled is set)
func openBackend(ctx context.Context) (*backend, error) {
	if offline {
		return &backend{
			store: demoStore(),
			cache: cache.New(cache.NewMemoryBackend(int(cfg.Cache.QuotaBytes)), cache.WithLogger(logger)),
		}, nil
	}

	mgr, err := newAuthManager()
	if err != nil {
		return nil, err
	}
	ts, err := mgr.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	store, err := docstore.NewFirestore(cfg.Firestore.ProjectID, ts,
		docstore.WithDatabase(cfg.Firestore.Database),
		docstore.WithRateLimit(cfg.Firestore.RateLimitQPS),
		docstore.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	c, closer, err := openCache()
	if err != nil {
		return nil, err
	}
	return &backend{store: store, cache: c, closer: closer}, nil
}

// openCache opens the local dataset cache. It does not need a session, so
// cache maintenance works while signed out.
func openCache() (*cache.Store, io.Closer, error) {
	if cfg.Cache.Disabled {
		return cache.New(cache.NewMemoryBackend(int(cfg.Cache.QuotaBytes)), cache.WithLogger(logger)), nil, nil
	}
	b, err := cache.OpenSQLite(cfg.CachePath(), cfg.Cache.QuotaBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return cache.New(b, cache.WithLogger(logger)), b, nil
}

// newAuthManager creates the admin sign-in manager from the configuration.
func newAuthManager() (*auth.Manager, error) {
	if err := cfg.RequireRemote(); err != nil {
		return nil, wrapConfigError(err)
	}
	mgr, err := auth.NewManager(cfg.OAuth.ClientSecrets, cfg.Admin.Email, cfg.TokenPath(), cfg.SessionPath(),
		auth.WithLogger(logger))
	if err != nil {
		return nil, wrapConfigError(err)
	}
	return mgr, nil
}

// newController builds the paged view of one dataset.
func (b *backend) newController(kind record.Kind) (*view.Controller[record.Record], error) {
	fetch := func(ctx context.Context) ([]record.Record, error) {
		records, err := b.store.List(ctx, kind.Collection)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind.Collection, err)
		}
		record.SortByTime(records)
		return records, nil
	}
	return view.New(b.cache, kind.CacheKey, fetch, record.Match,
		view.WithPageSize(cfg.View.PageSize), view.WithLogger(logger))
}

// loadRecords returns the dataset, from the cache unless refresh is set,
// narrowed by query.
func (b *backend) loadRecords(ctx context.Context, kind record.Kind, query string, refresh bool) (*view.Controller[record.Record], error) {
	ctrl, err := b.newController(kind)
	if err != nil {
		return nil, err
	}
	if refresh {
		err = ctrl.Refresh(ctx)
	} else {
		var fromCache bool
		fromCache, err = ctrl.LoadInitial(ctx)
		logger.Debug("dataset loaded", "dataset", kind.Name, "from_cache", fromCache)
	}
	if err != nil {
		return nil, err
	}
	if query != "" {
		ctrl.Filter(query)
	}
	return ctrl, nil
}

// newCoordinator creates the status coordinator with the prompt style for
// this run.
func (b *backend) newCoordinator() *status.Coordinator {
	return status.New(b.store, b.cache,
		status.WithConfirmer(newConfirmer()),
		status.WithLogger(logger))
}

// newStats creates the dashboard statistics service.
func (b *backend) newStats() *stats.Service {
	return stats.New(b.store, b.cache, stats.WithLogger(logger))
}
