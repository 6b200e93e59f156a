package schema

import (
	"context"
	"sync"

	"github.com/mind-engage/emoscreen/internal/cfgstore"
	"github.com/mind-engage/emoscreen/internal/db"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

// LoadFunc produces a fresh Registry.
type LoadFunc func(ctx context.Context) (*Registry, error)

// StoreLoader reads the persisted configuration and builds a Registry.
func StoreLoader(q db.Execer, catalog workbook.Catalog) LoadFunc {
	return func(ctx context.Context) (*Registry, error) {
		ds, err := cfgstore.Read(ctx, q, catalog)
		if err != nil {
			return nil, err
		}
		return Build(ds), nil
	}
}

// Cache holds one Registry, loaded on first use and shared read-only by
// concurrent evaluations until Invalidate is called.
type Cache struct {
	mu   sync.RWMutex
	load LoadFunc
	reg  *Registry
}

func NewCache(load LoadFunc) *Cache {
	return &Cache{load: load}
}

// Static returns a cache that always serves reg.
func Static(reg *Registry) *Cache {
	return &Cache{reg: reg, load: func(context.Context) (*Registry, error) { return reg, nil }}
}

func (c *Cache) Get(ctx context.Context) (*Registry, error) {
	c.mu.RLock()
	reg := c.reg
	c.mu.RUnlock()
	if reg != nil {
		return reg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg != nil {
		return c.reg, nil
	}
	reg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.reg = reg
	return reg, nil
}

// Invalidate drops the cached Registry; the next Get reloads it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.reg = nil
	c.mu.Unlock()
}
