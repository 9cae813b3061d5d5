package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-shop-admin/internal/event"
	"go-shop-admin/internal/mail"
	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

const capabilityUserUpdate = "user:update"

type AuthConfig struct {
	BcryptCost  int
	CodeTTL     time.Duration
	DefaultRole string
}

type RegisterResult struct {
	User        model.User
	AccessToken string
}

type LoginResult struct {
	User   model.User
	Tokens model.TokenPair
}

// AuthService runs the local credential flows: registration, login, session
// rotation, email verification and password recovery.
type AuthService struct {
	users       UserStore
	roles       RoleStore
	tokens      *TokenService
	permissions *PermissionResolver
	mailer      mail.Mailer
	bus         event.Bus
	cfg         AuthConfig
	now         func() time.Time
	newCode     func() (string, error)
}

type AuthOption func(*AuthService)

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithCodeGenerator overrides the verification code source.
func WithCodeGenerator(newCode func() (string, error)) AuthOption {
	return func(s *AuthService) { s.newCode = newCode }
}

func NewAuthService(
	users UserStore,
	roles RoleStore,
	tokens *TokenService,
	permissions *PermissionResolver,
	mailer mail.Mailer,
	bus event.Bus,
	cfg AuthConfig,
	opts ...AuthOption,
) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if mailer == nil {
		mailer = mail.LogMailer{}
	}

	s := &AuthService{
		users:       users,
		roles:       roles,
		tokens:      tokens,
		permissions: permissions,
		mailer:      mailer,
		bus:         bus,
		cfg:         cfg,
		now:         time.Now,
		newCode:     generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (RegisterResult, error) {
	handle, err := normalizeHandle(req.Handle)
	if err != nil {
		return RegisterResult{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return RegisterResult{}, err
	}

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return RegisterResult{}, apierror.AuthConflict("email already registered", "email")
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return RegisterResult{}, fmt.Errorf("register: check email: %w", err)
	}
	if _, err := s.users.FindUserByHandle(ctx, handle); err == nil {
		return RegisterResult{}, apierror.AuthConflict("handle already taken", "handle")
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return RegisterResult{}, fmt.Errorf("register: check handle: %w", err)
	}

	hash, err := hashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return RegisterResult{}, err
	}
	code, err := s.newCode()
	if err != nil {
		return RegisterResult{}, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Handle:       handle,
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		RoleID:       s.defaultRoleID(ctx),
		Provider:     model.ProviderLocal,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.SetVerificationCode(code, now.Add(s.cfg.CodeTTL))
	// The account is its own creator.
	user.CreatedBy = user.ID
	user.UpdatedBy = user.ID

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return RegisterResult{}, apierror.AuthConflict("email or handle already registered", "")
		}
		return RegisterResult{}, fmt.Errorf("register: create user: %w", err)
	}

	s.sendCode(ctx, user, code, mail.PurposeVerifyEmail)

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return RegisterResult{}, err
	}

	publish(s.bus, event.New(event.TypeUserRegistered, user.ID, "user:"+user.ID))
	return RegisterResult{User: user, AccessToken: access}, nil
}

// Login accepts an email or a handle. Every failure produces the same
// INVALID_CREDENTIALS error so callers cannot tell which part was wrong.
func (s *AuthService) Login(ctx context.Context, identifier string, password string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, apierror.InvalidInput("identifier and password are required", "")
	}

	user, err := s.findByIdentifier(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) {
		return LoginResult{}, s.loginFailed(identifier)
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}

	if !user.Usable() || !passwordMatches(user.PasswordHash, password) {
		return LoginResult{}, s.loginFailed(identifier)
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserLoggedIn, user.ID, "user:"+user.ID).WithPayload(map[string]any{"provider": model.ProviderLocal}))
	return LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return apierror.InvalidInput("refreshToken is required", "refreshToken")
	}

	user, err := s.users.FindUserByRefreshToken(ctx, refreshToken)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	if err := s.users.ClearRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			return apierror.AuthNotFound("user not found")
		}
		return fmt.Errorf("logout: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserLoggedOut, user.ID, "user:"+user.ID))
	return nil
}

// Refresh rotates the session. The presented token stops working as soon as
// the rotation is stored; a concurrent second use of it fails with NOT_FOUND.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return LoginResult{}, apierror.InvalidInput("refreshToken is required", "refreshToken")
	}

	claims, err := s.tokens.Verify(refreshToken, model.TokenTypeRefresh)
	if err != nil {
		return LoginResult{}, apierror.AuthNotFound("user not found")
	}

	user, err := s.users.FindUserByRefreshToken(ctx, refreshToken)
	if errors.Is(err, model.ErrUserNotFound) {
		return LoginResult{}, apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("refresh: %w", err)
	}
	if user.ID != claims.UserID || !user.Usable() {
		return LoginResult{}, apierror.AuthNotFound("user not found")
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("refresh: %w", err)
	}

	if err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, tokens.RefreshToken); err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			return LoginResult{}, apierror.AuthNotFound("user not found")
		}
		return LoginResult{}, fmt.Errorf("refresh: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserTokenRefreshed, user.ID, "user:"+user.ID))
	return LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, email string, code string) (model.User, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && (user.Verified || user.IsDeleted)) {
		return model.User{}, apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("verify email: %w", err)
	}

	if !codeMatches(user, code, s.now()) {
		return model.User{}, apierror.InvalidCode("invalid verification code")
	}

	user.Verified = true
	user.ClearVerificationCode()
	user.UpdatedBy = user.ID
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("verify email: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserVerified, user.ID, "user:"+user.ID))
	return user, nil
}

// ResendVerification issues a new code to an unverified principal. The
// previous code stops validating.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && user.IsDeleted) {
		return apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}
	if user.Verified {
		return apierror.InvalidInput("email already verified", "email")
	}

	return s.issueCode(ctx, user, mail.PurposeVerifyEmail)
}

// RequestPasswordReset emails a fresh reset code. Unknown addresses fail
// with NOT_FOUND, which reveals whether an account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && user.IsDeleted) {
		return apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	if err := s.issueCode(ctx, user, mail.PurposeResetPassword); err != nil {
		return err
	}

	publish(s.bus, event.New(event.TypeUserResetRequested, user.ID, "user:"+user.ID))
	return nil
}

// VerifyResetCode checks a reset code without consuming it.
func (s *AuthService) VerifyResetCode(ctx context.Context, email string, code string) error {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && user.IsDeleted) {
		return apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("verify reset code: %w", err)
	}

	if !codeMatches(user, code, s.now()) {
		return apierror.InvalidCode("invalid verification code")
	}
	return nil
}

// ChangePassword sets a new password using an emailed code. The code is
// consumed and the current session is revoked.
func (s *AuthService) ChangePassword(ctx context.Context, email string, code string, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && user.IsDeleted) {
		return apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if !codeMatches(user, code, s.now()) {
		return apierror.InvalidCode("invalid verification code")
	}

	hash, err := hashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.ClearVerificationCode()
	user.UpdatedBy = user.ID
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
		return fmt.Errorf("change password: revoke session: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserPasswordChanged, user.ID, "user:"+user.ID).WithPayload(map[string]any{"method": "code"}))
	return nil
}

// ResetPassword overwrites a password for an authenticated actor. Actors may
// reset their own password; resetting someone else's needs user:update.
func (s *AuthService) ResetPassword(ctx context.Context, actor model.User, email string, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	target, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && target.IsDeleted) {
		return apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if target.ID != actor.ID {
		if err := s.permissions.Check(ctx, actor.RoleID, capabilityUserUpdate); err != nil {
			return err
		}
	}

	hash, err := hashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	target.PasswordHash = hash
	target.UpdatedBy = actor.ID
	target.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, target); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, target.ID, ""); err != nil {
		return fmt.Errorf("reset password: revoke session: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserPasswordChanged, actor.ID, "user:"+target.ID).WithPayload(map[string]any{"method": "reset"}))
	return nil
}

// PrincipalByID loads a principal that may still authenticate. Deleted and
// deactivated accounts are reported as model.ErrUserNotFound.
func (s *AuthService) PrincipalByID(ctx context.Context, id string) (model.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if !user.Usable() {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req model.ProfileUpdateRequest) (model.User, error) {
	user, err := s.PrincipalByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.AuthNotFound("user not found")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}

	if req.Handle != nil {
		handle, err := normalizeHandle(*req.Handle)
		if err != nil {
			return model.User{}, err
		}
		if !strings.EqualFold(handle, user.Handle) {
			if _, err := s.users.FindUserByHandle(ctx, handle); err == nil {
				return model.User{}, apierror.AuthConflict("handle already taken", "handle")
			} else if !errors.Is(err, model.ErrUserNotFound) {
				return model.User{}, fmt.Errorf("update profile: %w", err)
			}
		}
		user.Handle = handle
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
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

	user.UpdatedBy = user.ID
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.User{}, apierror.AuthConflict("handle already taken", "handle")
		}
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}

	publish(s.bus, event.New(event.TypeUserProfileUpdated, user.ID, "user:"+user.ID))
	return user, nil
}

func (s *AuthService) findByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(identifier))
	if err == nil || !errors.Is(err, model.ErrUserNotFound) {
		return user, err
	}
	return s.users.FindUserByHandle(ctx, identifier)
}

// startSession issues a token pair and makes its refresh token the only
// valid one for the principal.
func (s *AuthService) startSession(ctx context.Context, user model.User) (model.TokenPair, error) {
	return startSession(ctx, s.users, s.tokens, user)
}

func startSession(ctx context.Context, users UserStore, tokens *TokenService, user model.User) (model.TokenPair, error) {
	pair, err := tokens.IssuePair(user)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return model.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

func (s *AuthService) loginFailed(identifier string) error {
	publish(s.bus, event.New(event.TypeUserLoginFailed, "", "user:"+identifier).Failed("invalid credentials"))
	return apierror.InvalidCredentials()
}

func (s *AuthService) issueCode(ctx context.Context, user model.User, purpose mail.Purpose) error {
	code, err := s.newCode()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	user.SetVerificationCode(code, now.Add(s.cfg.CodeTTL))
	user.UpdatedAt = now

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	s.sendCode(ctx, user, code, purpose)
	return nil
}

// sendCode logs delivery failures instead of failing the flow; the caller can
// ask for a new code.
func (s *AuthService) sendCode(ctx context.Context, user model.User, code string, purpose mail.Purpose) {
	name := user.FullName
	if name == "" {
		name = user.Handle
	}

	msg, err := mail.VerificationMessage(user.Email, name, code, s.cfg.CodeTTL, purpose)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		slog.Warn("verification mail not sent", "user_id", user.ID, "purpose", purpose, "error", err)
	}
}

func (s *AuthService) defaultRoleID(ctx context.Context) string {
	return resolveDefaultRole(ctx, s.roles, s.cfg.DefaultRole)
}

func resolveDefaultRole(ctx context.Context, roles RoleStore, name string) string {
	if name == "" || roles == nil {
		return ""
	}

	role, err := roles.FindRoleByName(ctx, name)
	if err != nil {
		slog.Warn("default role unavailable; principal created without a role", "role", name, "error", err)
		return ""
	}
	return role.ID
}
