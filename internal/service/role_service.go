package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-shop-admin/internal/event"
	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

type RoleService struct {
	roles       RoleStore
	permissions PermissionStore
	cache       Invalidator
	bus         event.Bus
	now         func() time.Time
}

// NewRoleService wires role administration. cache may be nil.
func NewRoleService(roles RoleStore, permissions PermissionStore, cache Invalidator, bus event.Bus) *RoleService {
	return &RoleService{roles: roles, permissions: permissions, cache: cache, bus: bus, now: time.Now}
}

func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (s *RoleService) Get(ctx context.Context, id string) (model.Role, error) {
	role, err := s.roles.FindRoleByID(ctx, id)
	if errors.Is(err, model.ErrRoleNotFound) {
		return model.Role{}, apierror.NotFound("role not found", id)
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

func (s *RoleService) Create(ctx context.Context, actorID string, req model.RoleRequest) (model.Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Role{}, apierror.InvalidInput("name is required", "name")
	}
	if len(req.Permissions) == 0 {
		return model.Role{}, apierror.InvalidInput("permissions are required", "permissions")
	}

	if _, err := s.roles.FindRoleByName(ctx, name); err == nil {
		return model.Role{}, apierror.Conflict("role already exists", name)
	} else if !errors.Is(err, model.ErrRoleNotFound) {
		return model.Role{}, fmt.Errorf("check role name: %w", err)
	}

	permissionIDs, err := ExpandPermissions(ctx, s.permissions, req.Permissions)
	if err != nil {
		return model.Role{}, err
	}

	now := s.now().UTC()
	role := model.Role{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		PermissionIDs: permissionIDs,
		IsActive:      req.IsActive == nil || *req.IsActive,
		CreatedBy:     actorID,
		UpdatedBy:     actorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.roles.CreateRole(ctx, role); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.Role{}, apierror.Conflict("role already exists", name)
		}
		return model.Role{}, fmt.Errorf("create role: %w", err)
	}

	s.changed(event.New(event.TypeRoleCreated, actorID, "role:"+role.ID).WithPayload(role))
	return role, nil
}

// Update replaces the fields present in req. A permission list containing
// "*" is re-expanded against the catalog as it is now.
func (s *RoleService) Update(ctx context.Context, actorID string, id string, req model.RoleRequest) (model.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return model.Role{}, err
	}
	if role.IsDeleted {
		return model.Role{}, apierror.NotFound("role not found", id)
	}
	before := role

	if name := strings.TrimSpace(req.Name); name != "" && !strings.EqualFold(name, role.Name) {
		if existing, err := s.roles.FindRoleByName(ctx, name); err == nil && existing.ID != role.ID {
			return model.Role{}, apierror.Conflict("role already exists", name)
		} else if err != nil && !errors.Is(err, model.ErrRoleNotFound) {
			return model.Role{}, fmt.Errorf("check role name: %w", err)
		}
		role.Name = name
	}
	if req.Description != "" {
		role.Description = strings.TrimSpace(req.Description)
	}
	if req.Permissions != nil {
		permissionIDs, err := ExpandPermissions(ctx, s.permissions, req.Permissions)
		if err != nil {
			return model.Role{}, err
		}
		role.PermissionIDs = permissionIDs
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}

	role.UpdatedBy = actorID
	role.UpdatedAt = s.now().UTC()

	if err := s.roles.UpdateRole(ctx, role); err != nil {
		switch {
		case errors.Is(err, model.ErrDuplicate):
			return model.Role{}, apierror.Conflict("role already exists", role.Name)
		case errors.Is(err, model.ErrRoleNotFound):
			return model.Role{}, apierror.NotFound("role not found", id)
		}
		return model.Role{}, fmt.Errorf("update role: %w", err)
	}

	s.changed(event.New(event.TypeRoleUpdated, actorID, "role:"+role.ID).WithPayload(map[string]any{"before": before, "after": role}))
	return role, nil
}

// SoftDelete flags the role as deleted. Principals holding it lose every
// capability until they are reassigned.
func (s *RoleService) SoftDelete(ctx context.Context, actorID string, id string) (model.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return model.Role{}, err
	}
	if role.IsDeleted {
		return model.Role{}, apierror.NotFound("role not found", id)
	}

	now := s.now().UTC()
	role.IsDeleted = true
	role.DeletedBy = actorID
	role.DeletedAt = &now
	role.UpdatedBy = actorID
	role.UpdatedAt = now

	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return model.Role{}, fmt.Errorf("soft delete role: %w", err)
	}

	s.changed(event.New(event.TypeRoleDeleted, actorID, "role:"+role.ID).WithPayload(map[string]any{"soft": true}))
	return role, nil
}

func (s *RoleService) Delete(ctx context.Context, actorID string, id string) error {
	err := s.roles.DeleteRole(ctx, id)
	if errors.Is(err, model.ErrRoleNotFound) {
		return apierror.NotFound("role not found", id)
	}
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}

	s.changed(event.New(event.TypeRoleDeleted, actorID, "role:"+id).WithPayload(map[string]any{"soft": false}))
	return nil
}

func (s *RoleService) changed(e event.Event) {
	if s.cache != nil {
		s.cache.Invalidate()
	}
	publish(s.bus, e)
}

// ExpandPermissions resolves a requested permission list to permission ids.
// Entries may be ids or "module:action" keys. The wildcard "*" is replaced by
// every active permission that exists at call time; permissions created later
// are not granted retroactively.
func ExpandPermissions(ctx context.Context, permissions PermissionStore, requested []string) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(requested))
	add := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, raw := range requested {
		if strings.TrimSpace(raw) == model.WildcardPermission {
			catalog, err := permissions.ListPermissions(ctx)
			if err != nil {
				return nil, fmt.Errorf("list permission catalog: %w", err)
			}
			for _, p := range catalog {
				if p.IsActive && !p.IsDeleted {
					add(p.ID)
				}
			}
		}
	}

	for _, raw := range requested {
		ref := strings.TrimSpace(raw)
		if ref == model.WildcardPermission {
			continue
		}
		if ref == "" {
			return nil, apierror.InvalidInput("permission reference cannot be empty", "permissions")
		}

		var (
			permission model.Permission
			err        error
		)
		if module, action, ok := model.ParsePermissionKey(ref); ok {
			permission, err = permissions.FindPermissionByKey(ctx, model.PermissionKey(module, action))
		} else {
			permission, err = permissions.FindPermissionByID(ctx, ref)
		}
		if errors.Is(err, model.ErrPermissionNotFound) || (err == nil && permission.IsDeleted) {
			return nil, apierror.InvalidInput("some permissions are invalid or not found", ref)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve permission %s: %w", ref, err)
		}

		add(permission.ID)
	}

	return out, nil
}
