package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/model"
)

func TestUserUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()

	require.NoError(t, store.CreateUser(ctx, model.User{ID: "u1", Email: "a@x.com", Handle: "alice"}))
	require.ErrorIs(t, store.CreateUser(ctx, model.User{ID: "u2", Email: "A@X.com", Handle: "bob"}), model.ErrDuplicate)
	require.ErrorIs(t, store.CreateUser(ctx, model.User{ID: "u3", Email: "b@x.com", Handle: "ALICE"}), model.ErrDuplicate)

	found, err := store.FindUserByHandle(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)

	_, err = store.FindUserByEmail(ctx, "missing@x.com")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestUpdateUserKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateUser(ctx, model.User{ID: "u1", Email: "a@x.com", Handle: "alice"}))
	require.NoError(t, store.SetRefreshToken(ctx, "u1", "rt-1"))

	require.NoError(t, store.UpdateUser(ctx, model.User{ID: "u1", Email: "a@x.com", Handle: "alice", FullName: "Alice"}))

	found, err := store.FindUserByRefreshToken(ctx, "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.FullName)
}

func TestRotateRefreshTokenIsCompareAndSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateUser(ctx, model.User{ID: "u1", Email: "a@x.com", Handle: "alice"}))
	require.NoError(t, store.SetRefreshToken(ctx, "u1", "old"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.RotateRefreshToken(ctx, "u1", "old", "new") == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	require.ErrorIs(t, store.RotateRefreshToken(ctx, "u1", "old", "newer"), model.ErrTokenNotFound)
}

func TestClearRefreshToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateUser(ctx, model.User{ID: "u1", Email: "a@x.com", Handle: "alice"}))
	require.NoError(t, store.SetRefreshToken(ctx, "u1", "rt"))

	require.NoError(t, store.ClearRefreshToken(ctx, "rt"))
	require.ErrorIs(t, store.ClearRefreshToken(ctx, "rt"), model.ErrTokenNotFound)
	require.ErrorIs(t, store.ClearRefreshToken(ctx, ""), model.ErrTokenNotFound)

	_, err := store.FindUserByRefreshToken(ctx, "rt")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestRoleNameUniqueAmongLiveRoles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateRole(ctx, model.Role{ID: "r1", Name: "staff", IsDeleted: true}))
	require.NoError(t, store.CreateRole(ctx, model.Role{ID: "r2", Name: "Staff"}))
	require.ErrorIs(t, store.CreateRole(ctx, model.Role{ID: "r3", Name: "STAFF"}), model.ErrDuplicate)

	found, err := store.FindRoleByName(ctx, "staff")
	require.NoError(t, err)
	assert.Equal(t, "r2", found.ID)
}

func TestFindRoleReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateRole(ctx, model.Role{ID: "r1", Name: "staff", PermissionIDs: []string{"p1"}}))

	role, err := store.FindRoleByID(ctx, "r1")
	require.NoError(t, err)
	role.PermissionIDs[0] = "tampered"

	again, err := store.FindRoleByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, again.PermissionIDs)
}

func TestDeletePermissionStripsRoles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreatePermission(ctx, model.Permission{ID: "p1", Module: "order", Action: "create", Key: "order:create"}))
	require.NoError(t, store.CreatePermission(ctx, model.Permission{ID: "p2", Module: "order", Action: "get", Key: "order:get"}))
	require.NoError(t, store.CreateRole(ctx, model.Role{ID: "r1", Name: "staff", PermissionIDs: []string{"p1", "p2"}}))

	require.NoError(t, store.DeletePermission(ctx, "p1"))

	role, err := store.FindRoleByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, role.PermissionIDs)

	_, err = store.FindPermissionByKey(ctx, "order:create")
	require.ErrorIs(t, err, model.ErrPermissionNotFound)
}

func TestDeleteRoleDetachesUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateRole(ctx, model.Role{ID: "r1", Name: "staff"}))
	require.NoError(t, store.CreateUser(ctx, model.User{ID: "u1", Email: "a@x.com", Handle: "alice", RoleID: "r1"}))

	require.NoError(t, store.DeleteRole(ctx, "r1"))

	user, err := store.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.RoleID)
}

func TestAuditQueryFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, action := range []string{"user.logged_in", "user.login_failed", "user.logged_in", "role.updated"} {
		require.NoError(t, store.Log(ctx, model.AuditEntry{
			Action:     action,
			OccurredAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano),
			Actor:      model.AuditActor{UserID: "u1"},
			Status:     "success",
			Resource:   "user:u1",
		}))
	}

	items, meta, err := store.Query(ctx, model.AuditQuery{Action: "user.logged_in", Limit: 1, Page: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, meta.Total)
	assert.Equal(t, 2, meta.TotalPages)
	assert.Equal(t, base.Add(2*time.Minute).Format(time.RFC3339Nano), items[0].OccurredAt)

	items, _, err = store.Query(ctx, model.AuditQuery{From: base.Add(3 * time.Minute).Format(time.RFC3339)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "role.updated", items[0].Action)
}

func TestOrdersByUserNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateOrder(ctx, model.Order{ID: "o1", UserID: "u1"}))
	require.NoError(t, store.CreateOrder(ctx, model.Order{ID: "o2", UserID: "u2"}))
	require.NoError(t, store.CreateOrder(ctx, model.Order{ID: "o3", UserID: "u1"}))

	orders, err := store.ListOrdersByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o3", orders[0].ID)
	assert.Equal(t, "o1", orders[1].ID)
}
