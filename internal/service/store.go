package service

import (
	"context"

	"go-shop-admin/internal/model"
)

// UserStore persists principals. Lookups return model.ErrUserNotFound when no
// row matches and writes return model.ErrDuplicate on an email or handle
// collision. UpdateUser never touches the refresh token.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	UpdateUser(ctx context.Context, u model.User) error
	DeleteUser(ctx context.Context, id string) error
	FindUserByID(ctx context.Context, id string) (model.User, error)
	FindUserByEmail(ctx context.Context, email string) (model.User, error)
	FindUserByHandle(ctx context.Context, handle string) (model.User, error)
	FindUserByRefreshToken(ctx context.Context, token string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	SetRefreshToken(ctx context.Context, userID string, token string) error
	// RotateRefreshToken replaces oldToken with newToken only if oldToken is
	// still the current value, and returns model.ErrTokenNotFound otherwise.
	RotateRefreshToken(ctx context.Context, userID string, oldToken string, newToken string) error
	ClearRefreshToken(ctx context.Context, token string) error
}

type RoleStore interface {
	CreateRole(ctx context.Context, r model.Role) error
	UpdateRole(ctx context.Context, r model.Role) error
	DeleteRole(ctx context.Context, id string) error
	FindRoleByID(ctx context.Context, id string) (model.Role, error)
	FindRoleByName(ctx context.Context, name string) (model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
}

type PermissionStore interface {
	CreatePermission(ctx context.Context, p model.Permission) error
	UpdatePermission(ctx context.Context, p model.Permission) error
	DeletePermission(ctx context.Context, id string) error
	FindPermissionByID(ctx context.Context, id string) (model.Permission, error)
	FindPermissionByKey(ctx context.Context, key string) (model.Permission, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o model.Order) error
	ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
}

// AccessStore is the read side the permission check needs.
type AccessStore interface {
	FindRoleByID(ctx context.Context, id string) (model.Role, error)
	FindPermissionByKey(ctx context.Context, key string) (model.Permission, error)
}

type accessStore struct {
	RoleStore
	PermissionStore
}

// NewAccessStore joins separate role and permission stores into an AccessStore.
func NewAccessStore(roles RoleStore, permissions PermissionStore) AccessStore {
	return accessStore{RoleStore: roles, PermissionStore: permissions}
}
