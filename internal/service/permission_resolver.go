package service

import (
	"context"
	"errors"
	"fmt"

	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

// PermissionResolver decides whether a role grants a set of capabilities.
// A multi-capability check passes only if every capability is granted.
type PermissionResolver struct {
	store AccessStore
}

func NewPermissionResolver(store AccessStore) *PermissionResolver {
	return &PermissionResolver{store: store}
}

// Check returns nil when the role grants every capability, a FORBIDDEN
// APIError on denial, or a wrapped store error.
func (r *PermissionResolver) Check(ctx context.Context, roleID string, capabilities ...string) error {
	if roleID == "" {
		return apierror.Forbidden("role not found", "")
	}

	role, err := r.store.FindRoleByID(ctx, roleID)
	if errors.Is(err, model.ErrRoleNotFound) {
		return apierror.Forbidden("role not found", "")
	}
	if err != nil {
		return fmt.Errorf("load role %s: %w", roleID, err)
	}
	if role.IsDeleted || !role.IsActive {
		return apierror.Forbidden("role not found", "")
	}

	if len(capabilities) == 0 {
		return apierror.Forbidden("no permission requested", "")
	}

	for _, capability := range capabilities {
		module, action, ok := model.ParsePermissionKey(capability)
		if !ok {
			return apierror.Forbidden("some actions are invalid or not found", capability)
		}

		permission, err := r.store.FindPermissionByKey(ctx, model.PermissionKey(module, action))
		if errors.Is(err, model.ErrPermissionNotFound) {
			return apierror.Forbidden("some actions are invalid or not found", capability)
		}
		if err != nil {
			return fmt.Errorf("load permission %s: %w", capability, err)
		}

		if !permission.IsActive || !role.Grants(permission.ID) {
			return apierror.Forbidden("insufficient permissions", capability)
		}
	}

	return nil
}

// HasPermission is the boolean form of Check for a single capability.
func (r *PermissionResolver) HasPermission(ctx context.Context, roleID string, capability string) bool {
	return r.Check(ctx, roleID, capability) == nil
}

func (r *PermissionResolver) HasAllPermissions(ctx context.Context, roleID string, capabilities []string) bool {
	return r.Check(ctx, roleID, capabilities...) == nil
}
