package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"go-shop-admin/internal/model"
)

// Invalidator drops cached authorization data after a role or permission write.
type Invalidator interface {
	Invalidate()
}

// CachedAccessStore is a read-through cache in front of an AccessStore.
// Misses are not cached. Entries expire after ttl so writes made by other
// processes become visible without an explicit Invalidate.
type CachedAccessStore struct {
	next        AccessStore
	roles       *expirable.LRU[string, model.Role]
	permissions *expirable.LRU[string, model.Permission]

	// generation changes on every Invalidate. A load that started under an
	// older generation is returned to its caller but never cached.
	mu         sync.Mutex
	generation uint64
}

func NewCachedAccessStore(next AccessStore, size int, ttl time.Duration) *CachedAccessStore {
	return &CachedAccessStore{
		next:        next,
		roles:       expirable.NewLRU[string, model.Role](size, nil, ttl),
		permissions: expirable.NewLRU[string, model.Permission](size, nil, ttl),
	}
}

func (c *CachedAccessStore) FindRoleByID(ctx context.Context, id string) (model.Role, error) {
	if role, ok := c.roles.Get(id); ok {
		return role, nil
	}

	gen := c.currentGeneration()
	role, err := c.next.FindRoleByID(ctx, id)
	if err != nil {
		return model.Role{}, err
	}

	c.mu.Lock()
	if gen == c.generation {
		c.roles.Add(id, role)
	}
	c.mu.Unlock()
	return role, nil
}

func (c *CachedAccessStore) FindPermissionByKey(ctx context.Context, key string) (model.Permission, error) {
	if permission, ok := c.permissions.Get(key); ok {
		return permission, nil
	}

	gen := c.currentGeneration()
	permission, err := c.next.FindPermissionByKey(ctx, key)
	if err != nil {
		return model.Permission{}, err
	}

	c.mu.Lock()
	if gen == c.generation {
		c.permissions.Add(key, permission)
	}
	c.mu.Unlock()
	return permission, nil
}

func (c *CachedAccessStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.roles.Purge()
	c.permissions.Purge()
}

func (c *CachedAccessStore) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}
