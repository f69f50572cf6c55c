package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"popdash/internal/logging"
	"popdash/internal/metrics"
	"popdash/internal/models"
)

// LoadFunc produces a fresh dataset.
type LoadFunc func(ctx context.Context) (*models.Dataset, error)

// FileLoader returns a LoadFunc reading the CSV snapshot at path.
func FileLoader(path string) LoadFunc {
	return func(ctx context.Context) (*models.Dataset, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return LoadCSV(path)
	}
}

// Cache holds the loaded dataset for the lifetime of the application.
// The first Get loads it; concurrent callers wait for that one load.
// Failed loads are not cached, so the next Get retries.
type Cache struct {
	load LoadFunc

	mu      sync.RWMutex
	ds      *models.Dataset
	lastErr error
	loaded  time.Time

	group singleflight.Group
}

// NewCache creates an empty cache around load.
func NewCache(load LoadFunc) *Cache {
	return &Cache{load: load}
}

// Get returns the cached dataset, loading it on first use.
func (c *Cache) Get(ctx context.Context) (*models.Dataset, error) {
	if ds := c.Peek(); ds != nil {
		return ds, nil
	}

	ch := c.group.DoChan("dataset", func() (interface{}, error) {
		if ds := c.Peek(); ds != nil {
			return ds, nil
		}
		return c.fill(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Dataset), nil
	}
}

func (c *Cache) fill(ctx context.Context) (*models.Dataset, error) {
	start := time.Now()
	ds, err := c.load(ctx)

	rows := 0
	if ds != nil {
		rows = ds.Len()
	}
	metrics.RecordDatasetLoad(time.Since(start), rows, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		l := logging.With().Str("component", "cache").Logger()
		l.Error().Err(err).Msg("dataset load failed")
		return nil, err
	}
	c.ds, c.lastErr, c.loaded = ds, nil, time.Now()
	return ds, nil
}

// Peek returns the dataset if it is loaded, without triggering a load.
func (c *Cache) Peek() *models.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ds
}

// LastError returns the error of the most recent failed load, cleared on success.
func (c *Cache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LoadedAt reports when the current dataset was loaded.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Invalidate drops the cached dataset; the next Get reloads it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ds = nil
	c.loaded = time.Time{}
}

// Reload invalidates and loads again. On failure the cache stays empty.
func (c *Cache) Reload(ctx context.Context) (*models.Dataset, error) {
	c.Invalidate()
	l := logging.With().Str("component", "cache").Logger()
	l.Info().Msg("dataset reload requested")
	return c.Get(ctx)
}
