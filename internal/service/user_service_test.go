package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/event"
	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

func TestUserAdministration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(f.store, f.store, nil, 4)

	_, err := users.Create(ctx, "root", model.CreateUserRequest{FullName: "Bob", Email: "b@x.com", Password: "p@ss1234", Role: "nope"})
	requireCode(t, err, apierror.CodeInvalidInput)

	bob, err := users.Create(ctx, "root", model.CreateUserRequest{FullName: "Bob", Email: "b@x.com", Password: "p@ss1234", Role: "customer"})
	require.NoError(t, err)
	assert.Equal(t, "b", bob.Handle)
	assert.Equal(t, "root", bob.CreatedBy)
	assert.True(t, bob.Verified)

	_, err = users.Create(ctx, "root", model.CreateUserRequest{FullName: "Bob 2", Email: "b@x.com", Password: "p@ss1234", Role: "customer"})
	requireCode(t, err, apierror.CodeConflict)

	admin, err := f.store.FindRoleByName(ctx, AdminRoleName)
	require.NoError(t, err)
	password := "an0ther-pass"
	updated, err := users.Update(ctx, "root", bob.ID, model.UpdateUserRequest{Role: &admin.ID, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, updated.RoleID)

	_, err = f.auth.Login(ctx, "b@x.com", password)
	require.NoError(t, err)

	_, err = users.Get(ctx, "missing")
	requireCode(t, err, apierror.CodeNotFound)
}

func TestUserPasswordUpdateRevokesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(f.store, f.store, nil, 4)
	f.register(t, "alice", "a@x.com")

	session, err := f.auth.Login(ctx, "a@x.com", "p@ss1234")
	require.NoError(t, err)

	name := "Alice"
	_, err = users.Update(ctx, "root", session.User.ID, model.UpdateUserRequest{FullName: &name})
	require.NoError(t, err)
	refreshed, err := f.auth.Refresh(ctx, session.Tokens.RefreshToken)
	require.NoError(t, err, "profile edits keep the session")

	password := "n3w-password"
	_, err = users.Update(ctx, "root", session.User.ID, model.UpdateUserRequest{Password: &password})
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, refreshed.Tokens.RefreshToken)
	requireCode(t, err, apierror.CodeNotFound)
}

func TestUserStatusRevokesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(f.store, f.store, nil, 4)
	f.register(t, "alice", "a@x.com")

	session, err := f.auth.Login(ctx, "a@x.com", "p@ss1234")
	require.NoError(t, err)

	_, err = users.SetStatus(ctx, "root", session.User.ID, nil)
	requireCode(t, err, apierror.CodeInvalidInput)

	inactive := false
	user, err := users.SetStatus(ctx, "root", session.User.ID, &inactive)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	_, err = f.auth.Refresh(ctx, session.Tokens.RefreshToken)
	requireCode(t, err, apierror.CodeNotFound)

	_, err = f.auth.PrincipalByID(ctx, user.ID)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestUserSoftAndHardDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(f.store, f.store, nil, 4)
	alice := f.register(t, "alice", "a@x.com")

	deleted, err := users.SoftDelete(ctx, "root", alice.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, "root", deleted.DeletedBy)

	_, err = f.auth.Login(ctx, "a@x.com", "p@ss1234")
	requireCode(t, err, apierror.CodeInvalidCredentials)

	_, err = users.SoftDelete(ctx, "root", alice.ID)
	requireCode(t, err, apierror.CodeNotFound)

	require.NoError(t, users.Delete(ctx, "root", alice.ID))
	requireCode(t, users.Delete(ctx, "root", alice.ID), apierror.CodeNotFound)
}

func TestOrderCreateComputesTotals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orders := NewOrderService(f.store, nil)

	_, err := orders.Create(ctx, "u-1", model.CreateOrderRequest{})
	requireCode(t, err, apierror.CodeInvalidInput)

	_, err = orders.Create(ctx, "u-1", model.CreateOrderRequest{Items: []model.OrderItem{{ProductID: "p-1", Quantity: 0, UnitPrice: 1}}})
	requireCode(t, err, apierror.CodeInvalidInput)

	order, err := orders.Create(ctx, "u-1", model.CreateOrderRequest{Items: []model.OrderItem{
		{ProductID: "p-1", Quantity: 2, UnitPrice: 10},
		{ProductID: "p-2", Quantity: 1, UnitPrice: 5.5},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, order.TotalQuantity)
	assert.InDelta(t, 25.5, order.TotalPrice, 0.0001)
	assert.Equal(t, model.OrderStatusPending, order.Status)

	listed, err := orders.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, order.ID, listed[0].ID)
}

func TestAuditRecorderStoresEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.register(t, "alice", "a@x.com")
	audit := NewAuditService(f.store, f.store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := event.NewBus()
	done := make(chan struct{})
	go func() {
		audit.Run(ctx, bus)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(event.New(event.TypeUserLoggedIn, alice.ID, "user:"+alice.ID))
		items, _, err := audit.Query(ctx, model.AuditQuery{Action: string(event.TypeUserLoggedIn)})
		return err == nil && len(items) > 0
	}, time.Second, 10*time.Millisecond)

	items, meta, err := audit.Query(ctx, model.AuditQuery{ActorID: alice.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, meta.Limit)
	assert.Equal(t, "alice", items[0].Actor.Handle)
	assert.Equal(t, alice.RoleID, items[0].Actor.Role)

	cancel()
	<-done
}

func TestAuditQueryValidatesRange(t *testing.T) {
	t.Parallel()
	audit := NewAuditService(newFixture(t).store, nil)
	ctx := context.Background()

	_, _, err := audit.Query(ctx, model.AuditQuery{From: "yesterday"})
	requireCode(t, err, apierror.CodeInvalidInput)

	_, _, err = audit.Query(ctx, model.AuditQuery{From: "2026-03-02", To: "2026-03-01"})
	requireCode(t, err, apierror.CodeInvalidInput)

	_, meta, err := audit.Query(ctx, model.AuditQuery{From: "2026-03-01", Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 200, meta.Limit)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	cfg := BootstrapConfig{DefaultRole: "customer", AdminEmail: "root@x.com", AdminPassword: "r00t-password", AdminHandle: "root", BcryptCost: 4}

	require.NoError(t, Bootstrap(ctx, f.store, f.store, f.store, cfg))
	require.NoError(t, Bootstrap(ctx, f.store, f.store, f.store, cfg))

	roles, err := f.store.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	permissions, err := f.store.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, permissions, len(BuiltinPermissions))

	session, err := f.auth.Login(ctx, "root", "r00t-password")
	require.NoError(t, err)
	for _, p := range BuiltinPermissions {
		key := model.PermissionKey(p.Module, p.Action)
		assert.True(t, f.resolver.HasPermission(ctx, session.User.RoleID, key), key)
	}
}

func TestBootstrapReexpandsAdminRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.perms.Create(ctx, "root", model.PermissionRequest{Name: "Launch", Module: "product", Action: "launch"})
	require.NoError(t, err)

	admin, err := f.store.FindRoleByName(ctx, AdminRoleName)
	require.NoError(t, err)
	require.NotContains(t, admin.PermissionIDs, p.ID)

	require.NoError(t, Bootstrap(ctx, f.store, f.store, f.store, BootstrapConfig{BcryptCost: 4}))

	admin, err = f.store.FindRoleByName(ctx, AdminRoleName)
	require.NoError(t, err)
	assert.Contains(t, admin.PermissionIDs, p.ID)
}
