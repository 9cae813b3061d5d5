package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-shop-admin/internal/model"
)

type tokenClaims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Handle string `json:"handle"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 access and refresh tokens. It holds
// no mutable state and is safe for concurrent use.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
	newID      func() string
}

type TokenOption func(*TokenService)

func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) { s.issuer = issuer }
}

func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithTokenIDs overrides the jti generator.
func WithTokenIDs(newID func() string) TokenOption {
	return func(s *TokenService) { s.newID = newID }
}

func NewTokenService(secret string, accessTTL time.Duration, refreshTTL time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive")
	}

	s := &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) IssueAccessToken(user model.User) (string, error) {
	return s.issue(user, model.TokenTypeAccess, s.accessTTL)
}

// IssueRefreshToken signs a refresh token. Persisting it on the principal is
// the caller's job.
func (s *TokenService) IssueRefreshToken(user model.User) (string, error) {
	return s.issue(user, model.TokenTypeRefresh, s.refreshTTL)
}

func (s *TokenService) IssuePair(user model.User) (model.TokenPair, error) {
	access, err := s.IssueAccessToken(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := s.IssueRefreshToken(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *TokenService) issue(user model.User, tokenType string, ttl time.Duration) (string, error) {
	issuedAt := s.now().UTC()

	claims := tokenClaims{
		UserID: user.ID,
		Role:   user.RoleID,
		Email:  user.Email,
		Handle: user.Handle,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			ID:        s.newID(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// Verify checks signature, expiry and token type. The error is always one of
// model.ErrTokenExpired, model.ErrTokenSignature or model.ErrTokenMalformed.
func (s *TokenService) Verify(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, model.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", model.ErrTokenSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
		}
	}

	if claims.Type != expectedType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", model.ErrTokenMalformed, expectedType, claims.Type)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing principal id", model.ErrTokenMalformed)
	}

	out := &model.AuthClaims{
		UserID:  claims.UserID,
		Role:    claims.Role,
		Email:   claims.Email,
		Handle:  claims.Handle,
		Type:    claims.Type,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}
