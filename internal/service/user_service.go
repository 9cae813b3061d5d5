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

// UserService is the administrative view of principals.
type UserService struct {
	users      UserStore
	roles      RoleStore
	bus        event.Bus
	bcryptCost int
	now        func() time.Time
}

func NewUserService(users UserStore, roles RoleStore, bus event.Bus, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = 10
	}
	return &UserService{users: users, roles: roles, bus: bus, bcryptCost: bcryptCost, now: time.Now}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (model.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.NotFound("user not found", id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, actorID string, req model.CreateUserRequest) (model.User, error) {
	if strings.TrimSpace(req.FullName) == "" {
		return model.User{}, apierror.InvalidInput("fullname is required", "fullname")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return model.User{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return model.User{}, err
	}
	roleID, err := s.roleID(ctx, req.Role)
	if err != nil {
		return model.User{}, err
	}

	handle := strings.TrimSpace(req.Handle)
	if handle == "" {
		handle = handleFromEmail(email)
	}
	if handle, err = normalizeHandle(handle); err != nil {
		return model.User{}, err
	}

	hash, err := hashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Handle:       handle,
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		PasswordHash: hash,
		RoleID:       roleID,
		Verified:     true,
		Provider:     model.ProviderLocal,
		IsActive:     true,
		CreatedBy:    actorID,
		UpdatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.User{}, apierror.Conflict("email or handle already registered", email)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserCreated, actorID, "user:"+user.ID).WithPayload(user))
	return user, nil
}

func (s *UserService) Update(ctx context.Context, actorID string, id string, req model.UpdateUserRequest) (model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if user.IsDeleted {
		return model.User{}, apierror.NotFound("user not found", id)
	}
	before := user

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Handle != nil {
		if user.Handle, err = normalizeHandle(*req.Handle); err != nil {
			return model.User{}, err
		}
	}
	if req.Email != nil {
		if user.Email, err = normalizeEmail(*req.Email); err != nil {
			return model.User{}, err
		}
	}
	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return model.User{}, err
		}
		if user.PasswordHash, err = hashPassword(*req.Password, s.bcryptCost); err != nil {
			return model.User{}, err
		}
	}
	if req.Role != nil {
		if user.RoleID, err = s.roleID(ctx, *req.Role); err != nil {
			return model.User{}, err
		}
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
	}
	if req.Avatar != nil {
		user.Avatar = strings.TrimSpace(*req.Avatar)
	}

	user.UpdatedBy = actorID
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.User{}, apierror.Conflict("email or handle already registered", user.Email)
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	if req.Password != nil {
		if err := s.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
			return model.User{}, fmt.Errorf("update user: revoke session: %w", err)
		}
	}

	publish(s.bus, event.New(event.TypeUserUpdated, actorID, "user:"+user.ID).WithPayload(map[string]any{"before": before, "after": user}))
	return user, nil
}

// SetStatus activates or deactivates a principal. Deactivation also revokes
// its refresh token.
func (s *UserService) SetStatus(ctx context.Context, actorID string, id string, active *bool) (model.User, error) {
	if active == nil {
		return model.User{}, apierror.InvalidInput("isActive is required", "isActive")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	user.IsActive = *active
	user.UpdatedBy = actorID
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("set user status: %w", err)
	}
	if !user.IsActive {
		if err := s.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
			return model.User{}, fmt.Errorf("set user status: revoke session: %w", err)
		}
	}

	publish(s.bus, event.New(event.TypeUserStatusChanged, actorID, "user:"+user.ID).WithPayload(map[string]any{"isActive": user.IsActive}))
	return user, nil
}

func (s *UserService) SoftDelete(ctx context.Context, actorID string, id string) (model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if user.IsDeleted {
		return model.User{}, apierror.NotFound("user not found", id)
	}

	now := s.now().UTC()
	user.IsDeleted = true
	user.DeletedBy = actorID
	user.DeletedAt = &now
	user.UpdatedBy = actorID
	user.UpdatedAt = now

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("soft delete user: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
		return model.User{}, fmt.Errorf("soft delete user: revoke session: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserDeleted, actorID, "user:"+user.ID).WithPayload(map[string]any{"soft": true}))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actorID string, id string) error {
	err := s.users.DeleteUser(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.NotFound("user not found", id)
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserDeleted, actorID, "user:"+id).WithPayload(map[string]any{"soft": false}))
	return nil
}

// roleID accepts a role id or a role name.
func (s *UserService) roleID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", apierror.InvalidInput("role is required", "role")
	}

	role, err := s.roles.FindRoleByID(ctx, ref)
	if errors.Is(err, model.ErrRoleNotFound) {
		role, err = s.roles.FindRoleByName(ctx, ref)
	}
	if errors.Is(err, model.ErrRoleNotFound) || (err == nil && role.IsDeleted) {
		return "", apierror.InvalidInput("role not found", ref)
	}
	if err != nil {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	return role.ID, nil
}
