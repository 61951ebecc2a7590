package profile

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore memoises department lookups in front of another [Store].
// Department rows change rarely compared with login volume; student and
// lecturer lookups always reach the underlying store. Misses, empty head
// lookups and errors are not cached, so a newly assigned head is seen on the
// next lookup. Reassigning an existing head needs [CachedStore.Purge].
type CachedStore struct {
	Store

	byID   *expirable.LRU[int64, Department]
	byHead *expirable.LRU[int64, []Department]
}

// NewCachedStore wraps store with two expiring LRU caches of the given size.
func NewCachedStore(store Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 256
	}
	return &CachedStore{
		Store:  store,
		byID:   expirable.NewLRU[int64, Department](size, nil, ttl),
		byHead: expirable.NewLRU[int64, []Department](size, nil, ttl),
	}
}

// DepartmentByID implements [Store].
func (c *CachedStore) DepartmentByID(ctx context.Context, id int64) (Department, error) {
	if d, ok := c.byID.Get(id); ok {
		return d, nil
	}
	d, err := c.Store.DepartmentByID(ctx, id)
	if err != nil {
		return Department{}, err
	}
	c.byID.Add(id, d)
	return d, nil
}

// DepartmentsByHeadRef implements [Store].
func (c *CachedStore) DepartmentsByHeadRef(ctx context.Context, ref int64) ([]Department, error) {
	if ds, ok := c.byHead.Get(ref); ok {
		return append([]Department(nil), ds...), nil
	}
	ds, err := c.Store.DepartmentsByHeadRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return ds, nil
	}
	c.byHead.Add(ref, append([]Department(nil), ds...))
	return ds, nil
}

// Purge drops every cached department, e.g. after an administrator edits
// headship assignments.
func (c *CachedStore) Purge() {
	c.byID.Purge()
	c.byHead.Purge()
}
