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

// FederatedService turns profiles returned by an external identity provider
// into local principals and starts a session for them.
type FederatedService struct {
	users       UserStore
	roles       RoleStore
	tokens      *TokenService
	bus         event.Bus
	defaultRole string
	now         func() time.Time
}

func NewFederatedService(users UserStore, roles RoleStore, tokens *TokenService, bus event.Bus, defaultRole string) *FederatedService {
	return &FederatedService{
		users:       users,
		roles:       roles,
		tokens:      tokens,
		bus:         bus,
		defaultRole: defaultRole,
		now:         time.Now,
	}
}

// Login attaches the profile to the principal owning its email, creating one
// on first sight. Email is the join key: a local account registered earlier
// with the same address is reused, never duplicated.
func (s *FederatedService) Login(ctx context.Context, profile model.FederatedProfile) (LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return LoginResult{}, apierror.InvalidInput("identity provider did not return an email", "email")
	}
	profile.Email = email

	user, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		user, err = s.attach(ctx, user, profile)
	case errors.Is(err, model.ErrUserNotFound):
		user, err = s.create(ctx, profile)
	}
	if err != nil {
		publish(s.bus, event.New(event.TypeUserLoginFailed, "", "user:"+email).
			WithPayload(map[string]any{"provider": profile.Provider}).
			Failed(err.Error()))
		return LoginResult{}, err
	}

	tokens, err := startSession(ctx, s.users, s.tokens, user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("federated login: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserLoggedIn, user.ID, "user:"+user.ID).WithPayload(map[string]any{"provider": profile.Provider}))
	return LoginResult{User: user, Tokens: tokens}, nil
}

func (s *FederatedService) attach(ctx context.Context, user model.User, profile model.FederatedProfile) (model.User, error) {
	if !user.Usable() {
		return model.User{}, apierror.Unauthorized("account is disabled")
	}

	changed, claimed := false, false
	if user.ProviderID == "" && user.Provider == profile.Provider {
		user.ProviderID = profile.ProviderID
		changed = true
	}
	// A provider that vouches for the address confirms a pending local account.
	// The pending password was never proven to belong to the address owner, so
	// it is dropped and the owner sets one through the reset flow.
	if !user.Verified && profile.EmailVerified {
		user.Verified = true
		user.PasswordHash = ""
		user.ClearVerificationCode()
		changed, claimed = true, true
	}
	if !changed {
		return user, nil
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("federated login: update user: %w", err)
	}
	if claimed {
		if err := s.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
			return model.User{}, fmt.Errorf("federated login: revoke session: %w", err)
		}
	}
	return user, nil
}

func (s *FederatedService) create(ctx context.Context, profile model.FederatedProfile) (model.User, error) {
	handle, err := s.freeHandle(ctx, handleFromEmail(profile.Email))
	if err != nil {
		return model.User{}, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:         uuid.NewString(),
		Handle:     handle,
		Email:      profile.Email,
		FullName:   strings.TrimSpace(profile.DisplayName),
		RoleID:     resolveDefaultRole(ctx, s.roles, s.defaultRole),
		Verified:   true,
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	user.CreatedBy = user.ID
	user.UpdatedBy = user.ID

	err = s.users.CreateUser(ctx, user)
	if errors.Is(err, model.ErrDuplicate) {
		// Lost a race with another login for the same email.
		existing, findErr := s.users.FindUserByEmail(ctx, profile.Email)
		if findErr != nil {
			return model.User{}, fmt.Errorf("federated login: reload user: %w", findErr)
		}
		return s.attach(ctx, existing, profile)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("federated login: create user: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserRegistered, user.ID, "user:"+user.ID).WithPayload(map[string]any{"provider": profile.Provider}))
	return user, nil
}

func (s *FederatedService) freeHandle(ctx context.Context, base string) (string, error) {
	candidate := base
	for range 5 {
		_, err := s.users.FindUserByHandle(ctx, candidate)
		if errors.Is(err, model.ErrUserNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("federated login: check handle: %w", err)
		}
		candidate = base + "-" + uuid.NewString()[:6]
	}
	return "", apierror.AuthConflict("could not derive a free handle", base)
}
