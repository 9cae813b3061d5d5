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

type PermissionService struct {
	permissions PermissionStore
	cache       Invalidator
	bus         event.Bus
	now         func() time.Time
}

// NewPermissionService wires permission administration. cache may be nil.
func NewPermissionService(permissions PermissionStore, cache Invalidator, bus event.Bus) *PermissionService {
	return &PermissionService{permissions: permissions, cache: cache, bus: bus, now: time.Now}
}

func (s *PermissionService) List(ctx context.Context) ([]model.Permission, error) {
	permissions, err := s.permissions.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return permissions, nil
}

func (s *PermissionService) Get(ctx context.Context, id string) (model.Permission, error) {
	permission, err := s.permissions.FindPermissionByID(ctx, id)
	if errors.Is(err, model.ErrPermissionNotFound) {
		return model.Permission{}, apierror.NotFound("permission not found", id)
	}
	if err != nil {
		return model.Permission{}, fmt.Errorf("get permission: %w", err)
	}
	return permission, nil
}

func (s *PermissionService) Create(ctx context.Context, actorID string, req model.PermissionRequest) (model.Permission, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Permission{}, apierror.InvalidInput("name is required", "name")
	}

	module, action, err := parseModuleAction(req.Module, req.Action)
	if err != nil {
		return model.Permission{}, err
	}
	key := model.PermissionKey(module, action)

	if err := s.ensureKeyFree(ctx, key, ""); err != nil {
		return model.Permission{}, err
	}

	now := s.now().UTC()
	permission := model.Permission{
		ID:          uuid.NewString(),
		Name:        name,
		Module:      module,
		Action:      action,
		Key:         key,
		Description: strings.TrimSpace(req.Description),
		IsActive:    req.IsActive == nil || *req.IsActive,
		CreatedBy:   actorID,
		UpdatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.permissions.CreatePermission(ctx, permission); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.Permission{}, apierror.Conflict("permission already exists", key)
		}
		return model.Permission{}, fmt.Errorf("create permission: %w", err)
	}

	s.changed(event.New(event.TypePermissionCreated, actorID, "permission:"+permission.ID).WithPayload(permission))
	return permission, nil
}

func (s *PermissionService) Update(ctx context.Context, actorID string, id string, req model.PermissionRequest) (model.Permission, error) {
	permission, err := s.Get(ctx, id)
	if err != nil {
		return model.Permission{}, err
	}
	if permission.IsDeleted {
		return model.Permission{}, apierror.NotFound("permission not found", id)
	}
	before := permission

	if name := strings.TrimSpace(req.Name); name != "" {
		permission.Name = name
	}
	if req.Description != "" {
		permission.Description = strings.TrimSpace(req.Description)
	}
	if req.IsActive != nil {
		permission.IsActive = *req.IsActive
	}

	if strings.TrimSpace(req.Module) != "" || strings.TrimSpace(req.Action) != "" {
		module, action := permission.Module, permission.Action
		if strings.TrimSpace(req.Module) != "" {
			module = req.Module
		}
		if strings.TrimSpace(req.Action) != "" {
			action = req.Action
		}

		module, action, err = parseModuleAction(module, action)
		if err != nil {
			return model.Permission{}, err
		}

		key := model.PermissionKey(module, action)
		if key != permission.Key {
			if err := s.ensureKeyFree(ctx, key, permission.ID); err != nil {
				return model.Permission{}, err
			}
		}
		permission.Module, permission.Action, permission.Key = module, action, key
	}

	permission.UpdatedBy = actorID
	permission.UpdatedAt = s.now().UTC()

	if err := s.permissions.UpdatePermission(ctx, permission); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.Permission{}, apierror.Conflict("permission already exists", permission.Key)
		}
		return model.Permission{}, fmt.Errorf("update permission: %w", err)
	}

	s.changed(event.New(event.TypePermissionUpdated, actorID, "permission:"+permission.ID).WithPayload(map[string]any{"before": before, "after": permission}))
	return permission, nil
}

func (s *PermissionService) SoftDelete(ctx context.Context, actorID string, id string) (model.Permission, error) {
	permission, err := s.Get(ctx, id)
	if err != nil {
		return model.Permission{}, err
	}
	if permission.IsDeleted {
		return model.Permission{}, apierror.NotFound("permission not found", id)
	}

	now := s.now().UTC()
	permission.IsDeleted = true
	permission.DeletedBy = actorID
	permission.DeletedAt = &now
	permission.UpdatedBy = actorID
	permission.UpdatedAt = now

	if err := s.permissions.UpdatePermission(ctx, permission); err != nil {
		return model.Permission{}, fmt.Errorf("soft delete permission: %w", err)
	}

	s.changed(event.New(event.TypePermissionDeleted, actorID, "permission:"+permission.ID).WithPayload(map[string]any{"soft": true}))
	return permission, nil
}

func (s *PermissionService) Delete(ctx context.Context, actorID string, id string) error {
	err := s.permissions.DeletePermission(ctx, id)
	if errors.Is(err, model.ErrPermissionNotFound) {
		return apierror.NotFound("permission not found", id)
	}
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}

	s.changed(event.New(event.TypePermissionDeleted, actorID, "permission:"+id).WithPayload(map[string]any{"soft": false}))
	return nil
}

func (s *PermissionService) ensureKeyFree(ctx context.Context, key string, selfID string) error {
	existing, err := s.permissions.FindPermissionByKey(ctx, key)
	if errors.Is(err, model.ErrPermissionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check permission key: %w", err)
	}
	if existing.ID != selfID {
		return apierror.Conflict("permission already exists", key)
	}
	return nil
}

func (s *PermissionService) changed(e event.Event) {
	if s.cache != nil {
		s.cache.Invalidate()
	}
	publish(s.bus, e)
}

func parseModuleAction(rawModule string, rawAction string) (string, string, error) {
	module := strings.ToLower(strings.TrimSpace(rawModule))
	action := strings.ToLower(strings.TrimSpace(rawAction))

	if module == "" {
		return "", "", apierror.InvalidInput("module is required", "module")
	}
	if action == "" {
		return "", "", apierror.InvalidInput("action is required", "action")
	}

	// Actions submitted as "module:action" are accepted as long as the module matches.
	if prefix, rest, ok := strings.Cut(action, ":"); ok {
		if prefix != module {
			return "", "", apierror.InvalidInput("action does not belong to module", "action")
		}
		action = rest
	}
	if action == "" {
		return "", "", apierror.InvalidInput("action is required", "action")
	}
	if module == model.WildcardPermission || action == model.WildcardPermission || strings.ContainsAny(module+action, ": ") {
		return "", "", apierror.InvalidInput("module and action may not contain ':', ' ' or be '*'", "")
	}

	return module, action, nil
}
