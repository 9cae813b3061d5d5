package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

func TestResolverGrantsAssignedCapabilities(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.roles.Create(ctx, "root", model.RoleRequest{Name: "clerk", Permissions: []string{"order:create", "order:get"}})
	require.NoError(t, err)

	assert.True(t, f.resolver.HasPermission(ctx, role.ID, "order:create"))
	assert.True(t, f.resolver.HasPermission(ctx, role.ID, "ORDER:Get"))
	assert.False(t, f.resolver.HasPermission(ctx, role.ID, "order:delete"))
}

func TestResolverMultiCapabilityIsAllOf(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.roles.Create(ctx, "root", model.RoleRequest{Name: "clerk", Permissions: []string{"order:create"}})
	require.NoError(t, err)

	assert.True(t, f.resolver.HasAllPermissions(ctx, role.ID, []string{"order:create"}))
	assert.False(t, f.resolver.HasAllPermissions(ctx, role.ID, []string{"order:create", "order:get"}))

	err = f.resolver.Check(ctx, role.ID, "order:create", "order:get")
	apiErr := requireCode(t, err, apierror.CodeForbidden)
	assert.Equal(t, "insufficient permissions", apiErr.Message)
	assert.Equal(t, "order:get", apiErr.Details)
}

func TestResolverDeniesMissingOrDeletedRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.store.FindRoleByName(ctx, AdminRoleName)
	require.NoError(t, err)
	require.True(t, f.resolver.HasPermission(ctx, admin.ID, "user:read"))

	_, err = f.roles.SoftDelete(ctx, "root", admin.ID)
	require.NoError(t, err)

	err = f.resolver.Check(ctx, admin.ID, "user:read")
	apiErr := requireCode(t, err, apierror.CodeForbidden)
	assert.Equal(t, "role not found", apiErr.Message)

	assert.False(t, f.resolver.HasPermission(ctx, "no-such-role", "user:read"))
	assert.False(t, f.resolver.HasPermission(ctx, "", "user:read"))
}

func TestResolverDeniesInactiveRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	inactive := false
	role, err := f.roles.Create(ctx, "root", model.RoleRequest{Name: "paused", Permissions: []string{"user:read"}, IsActive: &inactive})
	require.NoError(t, err)

	assert.False(t, f.resolver.HasPermission(ctx, role.ID, "user:read"))
}

func TestResolverDeniesUnknownCapability(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.store.FindRoleByName(ctx, AdminRoleName)
	require.NoError(t, err)

	for _, capability := range []string{"product:launch", "not-a-key", "order:create:extra"} {
		err := f.resolver.Check(ctx, admin.ID, capability)
		apiErr := requireCode(t, err, apierror.CodeForbidden)
		assert.Equal(t, "some actions are invalid or not found", apiErr.Message, capability)
	}

	requireCode(t, f.resolver.Check(ctx, admin.ID), apierror.CodeForbidden)
}

func TestResolverDeniesInactivePermission(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.store.FindRoleByName(ctx, AdminRoleName)
	require.NoError(t, err)

	inactive := false
	_, err = f.perms.Update(ctx, "root", f.permissionID(t, "audit:read"), model.PermissionRequest{IsActive: &inactive})
	require.NoError(t, err)

	assert.False(t, f.resolver.HasPermission(ctx, admin.ID, "audit:read"))
}

func TestWildcardIsSnapshotAtWriteTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	catalog, err := f.store.ListPermissions(ctx)
	require.NoError(t, err)

	role, err := f.roles.Create(ctx, "root", model.RoleRequest{Name: "everything", Permissions: []string{"*"}})
	require.NoError(t, err)
	assert.Len(t, role.PermissionIDs, len(catalog))

	for _, p := range catalog {
		assert.True(t, f.resolver.HasPermission(ctx, role.ID, p.Key), p.Key)
	}

	_, err = f.perms.Create(ctx, "root", model.PermissionRequest{Name: "Launch product", Module: "product", Action: "launch"})
	require.NoError(t, err)
	assert.False(t, f.resolver.HasPermission(ctx, role.ID, "product:launch"), "later permissions are not granted retroactively")

	_, err = f.roles.Update(ctx, "root", role.ID, model.RoleRequest{Permissions: []string{"*"}})
	require.NoError(t, err)
	assert.True(t, f.resolver.HasPermission(ctx, role.ID, "product:launch"), "re-saving re-expands the wildcard")
}

type failingAccessStore struct{}

func (failingAccessStore) FindRoleByID(context.Context, string) (model.Role, error) {
	return model.Role{}, errors.New("connection refused")
}

func (failingAccessStore) FindPermissionByKey(context.Context, string) (model.Permission, error) {
	return model.Permission{}, errors.New("connection refused")
}

func TestResolverWrapsStoreFaults(t *testing.T) {
	t.Parallel()

	err := NewPermissionResolver(failingAccessStore{}).Check(context.Background(), "r-1", "user:read")
	require.Error(t, err)

	var apiErr *apierror.APIError
	assert.False(t, errors.As(err, &apiErr), "store faults are not reported as denials")
}

func TestCachedAccessStoreInvalidate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	cache := NewCachedAccessStore(f.store, 64, time.Minute)
	resolver := NewPermissionResolver(cache)
	roles := NewRoleService(f.store, f.store, cache, nil)

	role, err := roles.Create(ctx, "root", model.RoleRequest{Name: "clerk", Permissions: []string{"user:read"}})
	require.NoError(t, err)
	require.False(t, resolver.HasPermission(ctx, role.ID, "order:create"))

	_, err = roles.Update(ctx, "root", role.ID, model.RoleRequest{Permissions: []string{"user:read", "order:create"}})
	require.NoError(t, err)
	assert.True(t, resolver.HasPermission(ctx, role.ID, "order:create"), "writes through the service purge the cache")

	role.PermissionIDs = nil
	require.NoError(t, f.store.UpdateRole(ctx, role))
	assert.True(t, resolver.HasPermission(ctx, role.ID, "order:create"), "out-of-band writes wait for the ttl")

	cache.Invalidate()
	assert.False(t, resolver.HasPermission(ctx, role.ID, "order:create"))
}

// pausingAccessStore holds one FindRoleByID after it has loaded the role.
type pausingAccessStore struct {
	AccessStore
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *pausingAccessStore) FindRoleByID(ctx context.Context, id string) (model.Role, error) {
	role, err := s.AccessStore.FindRoleByID(ctx, id)
	s.once.Do(func() {
		close(s.loaded)
		<-s.release
	})
	return role, err
}

func TestCachedAccessStoreDropsLoadsRacingInvalidate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.roles.Create(ctx, "root", model.RoleRequest{Name: "clerk", Permissions: []string{"order:create"}})
	require.NoError(t, err)

	slow := &pausingAccessStore{AccessStore: f.store, loaded: make(chan struct{}), release: make(chan struct{})}
	cache := NewCachedAccessStore(slow, 64, time.Minute)
	resolver := NewPermissionResolver(cache)
	roles := NewRoleService(f.store, f.store, cache, nil)

	done := make(chan bool)
	go func() { done <- resolver.HasPermission(ctx, role.ID, "order:create") }()

	<-slow.loaded
	_, err = roles.Update(ctx, "root", role.ID, model.RoleRequest{Permissions: []string{"order:get"}})
	require.NoError(t, err)
	close(slow.release)

	assert.True(t, <-done, "the in-flight check answers from the state it loaded")
	assert.False(t, resolver.HasPermission(ctx, role.ID, "order:create"))
	assert.True(t, resolver.HasPermission(ctx, role.ID, "order:get"))
}
