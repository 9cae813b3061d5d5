package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"go-shop-admin/internal/model"
)

const AdminRoleName = "admin"

// BuiltinPermissions is the capability catalog every deployment starts with.
var BuiltinPermissions = []struct{ Module, Action string }{
	{"user", "read"}, {"user", "create"}, {"user", "update"}, {"user", "delete"},
	{"role", "read"}, {"role", "create"}, {"role", "update"}, {"role", "delete"},
	{"permission", "read"}, {"permission", "create"}, {"permission", "update"}, {"permission", "delete"},
	{"order", "create"}, {"order", "get"}, {"order", "update"}, {"order", "delete"},
	{"audit", "read"},
}

type BootstrapConfig struct {
	DefaultRole   string
	AdminEmail    string
	AdminPassword string
	AdminHandle   string
	BcryptCost    int
}

// Bootstrap makes a fresh store usable: it seeds the builtin catalog, the
// admin role, the default role and, when configured, the first admin
// principal. Running it again is harmless. The admin role is re-expanded
// from "*" on every run so it picks up catalog additions made since.
func Bootstrap(ctx context.Context, users UserStore, roles RoleStore, permissions PermissionStore, cfg BootstrapConfig) error {
	now := time.Now().UTC()

	for _, p := range BuiltinPermissions {
		key := model.PermissionKey(p.Module, p.Action)
		_, err := permissions.FindPermissionByKey(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrPermissionNotFound) {
			return fmt.Errorf("bootstrap: find permission %s: %w", key, err)
		}

		err = permissions.CreatePermission(ctx, model.Permission{
			ID:        uuid.NewString(),
			Name:      p.Action + " " + p.Module,
			Module:    p.Module,
			Action:    p.Action,
			Key:       key,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil && !errors.Is(err, model.ErrDuplicate) {
			return fmt.Errorf("bootstrap: create permission %s: %w", key, err)
		}
	}

	all, err := ExpandPermissions(ctx, permissions, []string{model.WildcardPermission})
	if err != nil {
		return fmt.Errorf("bootstrap: expand catalog: %w", err)
	}

	admin, err := ensureRole(ctx, roles, AdminRoleName, "Full access", all, now)
	if err != nil {
		return err
	}
	if !slices.Equal(admin.PermissionIDs, all) {
		admin.PermissionIDs = all
		admin.UpdatedAt = now
		if err := roles.UpdateRole(ctx, admin); err != nil {
			return fmt.Errorf("bootstrap: update admin role: %w", err)
		}
	}

	if cfg.DefaultRole != "" && cfg.DefaultRole != AdminRoleName {
		if _, err := ensureRole(ctx, roles, cfg.DefaultRole, "Assigned to new principals", []string{}, now); err != nil {
			return err
		}
	}

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err = users.FindUserByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return fmt.Errorf("bootstrap: find admin: %w", err)
	}

	hash, err := hashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}

	handle := cfg.AdminHandle
	if handle == "" {
		handle = handleFromEmail(cfg.AdminEmail)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Handle:       handle,
		Email:        cfg.AdminEmail,
		FullName:     "Administrator",
		PasswordHash: hash,
		RoleID:       admin.ID,
		Verified:     true,
		Provider:     model.ProviderLocal,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.CreatedBy = user.ID
	user.UpdatedBy = user.ID

	if err := users.CreateUser(ctx, user); err != nil && !errors.Is(err, model.ErrDuplicate) {
		return fmt.Errorf("bootstrap: create admin: %w", err)
	}

	slog.Info("bootstrap admin created", "email", user.Email, "handle", user.Handle)
	return nil
}

func ensureRole(ctx context.Context, roles RoleStore, name string, description string, permissionIDs []string, now time.Time) (model.Role, error) {
	role, err := roles.FindRoleByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, model.ErrRoleNotFound) {
		return model.Role{}, fmt.Errorf("bootstrap: find role %s: %w", name, err)
	}

	role = model.Role{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   description,
		PermissionIDs: permissionIDs,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := roles.CreateRole(ctx, role); err != nil {
		return model.Role{}, fmt.Errorf("bootstrap: create role %s: %w", name, err)
	}

	slog.Info("bootstrap role created", "role", name, "permissions", len(permissionIDs))
	return role, nil
}
