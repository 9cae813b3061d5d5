package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-shop-admin/internal/metrics"
	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

type tokenVerifier interface {
	Verify(tokenString string, expectedType string) (*model.AuthClaims, error)
}

type principalLoader interface {
	PrincipalByID(ctx context.Context, id string) (model.User, error)
}

type permissionChecker interface {
	Check(ctx context.Context, roleID string, capabilities ...string) error
}

type contextKey string

const (
	authClaimsContextKey contextKey = "auth_claims"
	principalContextKey  contextKey = "principal"
)

// AuthMiddleware is the request gate: RequireAuth establishes who is calling
// and RequirePermissions decides whether they may proceed.
type AuthMiddleware struct {
	tokens      tokenVerifier
	principals  principalLoader
	permissions permissionChecker
}

func NewAuthMiddleware(tokens tokenVerifier, principals principalLoader, permissions permissionChecker) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, principals: principals, permissions: permissions}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			metrics.TokenFailures.WithLabelValues("missing").Inc()
			writeError(w, apierror.Unauthorized("missing or invalid authorization header"))
			return
		}

		claims, err := m.tokens.Verify(token, model.TokenTypeAccess)
		if errors.Is(err, model.ErrTokenExpired) {
			metrics.TokenFailures.WithLabelValues("expired").Inc()
			writeError(w, apierror.TokenExpired())
			return
		}
		if err != nil {
			metrics.TokenFailures.WithLabelValues("invalid").Inc()
			writeError(w, apierror.Unauthorized("invalid token"))
			return
		}

		principal, err := m.principals.PrincipalByID(r.Context(), claims.UserID)
		if errors.Is(err, model.ErrUserNotFound) {
			metrics.TokenFailures.WithLabelValues("unknown_principal").Inc()
			writeError(w, apierror.Unauthorized("user not found"))
			return
		}
		if err != nil {
			slog.Error("load principal", "request_id", RequestIDFromContext(r.Context()), "user_id", claims.UserID, "error", err)
			writeError(w, apierror.Internal())
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		ctx = ContextWithPrincipal(ctx, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermissions lets the request through only if the principal's current
// role grants every listed capability. It must run after RequireAuth.
func (m *AuthMiddleware) RequirePermissions(capabilities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, apierror.Unauthorized("authentication required"))
				return
			}

			err := m.permissions.Check(r.Context(), principal.RoleID, capabilities...)
			if err != nil {
				var apiErr *apierror.APIError
				if errors.As(err, &apiErr) {
					metrics.PermissionDenials.WithLabelValues(strings.Join(capabilities, ",")).Inc()
					writeError(w, apiErr)
					return
				}

				slog.Error("permission check", "request_id", RequestIDFromContext(r.Context()), "user_id", principal.ID, "role", principal.RoleID, "error", err)
				writeError(w, apierror.Internal())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

func PrincipalFromContext(ctx context.Context) (model.User, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.User)
	return principal, ok
}

func ContextWithPrincipal(ctx context.Context, principal model.User) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
