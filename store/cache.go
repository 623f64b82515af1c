package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/kevinaaaquil/bookdash/models"
	"golang.org/x/sync/singleflight"
)

// Loader fetches the authoritative collection.
type Loader func(ctx context.Context) ([]models.Book, error)

// Cache holds the last fetched collection. It is populated on first use,
// invalidated after every successful mutation and cleared on teardown. The
// slice is only ever replaced as a whole.
type Cache struct {
	load  Loader
	group singleflight.Group

	mu        sync.RWMutex
	books     []models.Book
	fresh     bool
	gen       uint64
	cleared   uint64
	fetchedAt time.Time
}

func NewCache(load Loader) *Cache {
	return &Cache{load: load}
}

// Books returns the cached collection, loading it when the cache is empty or
// stale. Concurrent callers share one load; it runs detached from any single
// caller's cancellation and each caller stops waiting when its own ctx ends.
func (c *Cache) Books(ctx context.Context) ([]models.Book, error) {
	c.mu.RLock()
	if c.fresh {
		books := clone(c.books)
		c.mu.RUnlock()
		return books, nil
	}
	gen, cleared := c.gen, c.cleared
	c.mu.RUnlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		books, err := c.load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// A Clear that raced this load wins outright. An invalidation keeps
		// the data but leaves the cache stale.
		if c.cleared == cleared {
			c.books = books
			c.fetchedAt = time.Now()
			c.fresh = c.gen == gen
		}
		c.mu.Unlock()
		return books, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]models.Book)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate marks the collection stale so the next read refetches it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fresh = false
	c.gen++
	c.mu.Unlock()
}

// Refresh invalidates and reloads immediately.
func (c *Cache) Refresh(ctx context.Context) ([]models.Book, error) {
	c.Invalidate()
	return c.Books(ctx)
}

// Find looks a record up in the cached collection, loading it if needed.
func (c *Cache) Find(ctx context.Context, id string) (models.Book, bool, error) {
	books, err := c.Books(ctx)
	if err != nil {
		return models.Book{}, false, err
	}
	id = models.CanonicalID(id)
	for _, b := range books {
		if b.ID == id {
			return b, true, nil
		}
	}
	return models.Book{}, false, nil
}

// FetchedAt reports when the cached collection was last loaded; zero when
// nothing is cached.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Clear drops the cached collection.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.books = nil
	c.fresh = false
	c.gen++
	c.cleared++
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func clone(books []models.Book) []models.Book {
	if books == nil {
		return nil
	}
	out := make([]models.Book, len(books))
	copy(out, books)
	return out
}
