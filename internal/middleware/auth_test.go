package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/model"
	"go-shop-admin/internal/service"
	"go-shop-admin/pkg/apierror"
)

type principalStub struct {
	mock.Mock
}

func (p *principalStub) PrincipalByID(ctx context.Context, id string) (model.User, error) {
	args := p.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

type checkerStub struct {
	mock.Mock
}

func (c *checkerStub) Check(ctx context.Context, roleID string, capabilities ...string) error {
	args := c.Called(ctx, roleID, capabilities)
	return args.Error(0)
}

var alice = model.User{ID: "u-1", Handle: "alice", Email: "a@x.com", RoleID: "r-1", IsActive: true}

func newTokens(t *testing.T, now func() time.Time) *service.TokenService {
	t.Helper()

	tokens, err := service.NewTokenService("middleware-test-secret", time.Hour, 24*time.Hour, service.WithClock(now))
	require.NoError(t, err)
	return tokens
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/u-1", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthAttachesPrincipal(t *testing.T) {
	t.Parallel()

	tokens := newTokens(t, time.Now)
	principals := &principalStub{}
	principals.On("PrincipalByID", mock.Anything, "u-1").Return(alice, nil)

	var seen model.User
	var claims *model.AuthClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		claims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	token, err := tokens.IssueAccessToken(alice)
	require.NoError(t, err)

	gate := NewAuthMiddleware(tokens, principals, &checkerStub{})
	for _, header := range []string{"Bearer " + token, "bearer " + token} {
		rec := serve(gate.RequireAuth(next), header)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u-1", seen.ID)
		require.NotNil(t, claims)
		assert.Equal(t, "alice", claims.Handle)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	t.Parallel()

	past := func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, err := newTokens(t, past).IssueAccessToken(alice)
	require.NoError(t, err)

	tokens := newTokens(t, time.Now)
	refresh, err := tokens.IssueRefreshToken(alice)
	require.NoError(t, err)
	foreign, err := service.NewTokenService("some-other-signing-key", time.Hour, time.Hour)
	require.NoError(t, err)
	forged, err := foreign.IssueAccessToken(alice)
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		code    string
		message string
	}{
		{"missing header", "", apierror.CodeUnauthorized, "missing or invalid authorization header"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", apierror.CodeUnauthorized, "missing or invalid authorization header"},
		{"empty token", "Bearer   ", apierror.CodeUnauthorized, "missing or invalid authorization header"},
		{"expired", "Bearer " + expired, apierror.CodeTokenExpired, "token expired"},
		{"malformed", "Bearer not.a.jwt", apierror.CodeUnauthorized, "invalid token"},
		{"bad signature", "Bearer " + forged, apierror.CodeUnauthorized, "invalid token"},
		{"refresh token", "Bearer " + refresh, apierror.CodeUnauthorized, "invalid token"},
	}

	gate := NewAuthMiddleware(tokens, &principalStub{}, &checkerStub{})
	handler := gate.RequireAuth(okHandler())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(handler, tc.header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			body := decodeEnvelope(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestRequireAuthUnknownPrincipal(t *testing.T) {
	t.Parallel()

	tokens := newTokens(t, time.Now)
	token, err := tokens.IssueAccessToken(alice)
	require.NoError(t, err)

	principals := &principalStub{}
	principals.On("PrincipalByID", mock.Anything, "u-1").Return(model.User{}, model.ErrUserNotFound).Once()
	principals.On("PrincipalByID", mock.Anything, "u-1").Return(model.User{}, errors.New("db down")).Once()

	handler := NewAuthMiddleware(tokens, principals, &checkerStub{}).RequireAuth(okHandler())

	rec := serve(handler, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "user not found", decodeEnvelope(t, rec).Message)

	rec = serve(handler, "Bearer "+token)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, apierror.CodeInternal, body.Error)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestRequirePermissions(t *testing.T) {
	t.Parallel()

	checker := &checkerStub{}
	checker.On("Check", mock.Anything, "r-1", []string{"order:create"}).Return(nil)
	checker.On("Check", mock.Anything, "r-1", []string{"order:delete"}).Return(apierror.Forbidden("insufficient permissions", "order:delete"))
	checker.On("Check", mock.Anything, "r-1", []string{"audit:read"}).Return(errors.New("timeout"))

	gate := NewAuthMiddleware(nil, nil, checker)
	withPrincipal := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), alice)))
		})
	}

	rec := serve(withPrincipal(gate.RequirePermissions("order:create")(okHandler())), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(withPrincipal(gate.RequirePermissions("order:delete")(okHandler())), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, apierror.CodeForbidden, body.Error)
	assert.Equal(t, "insufficient permissions", body.Message)

	rec = serve(withPrincipal(gate.RequirePermissions("audit:read")(okHandler())), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(gate.RequirePermissions("order:create")(okHandler()), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	checker.AssertExpectations(t)
}

func TestRecoveryHidesPanic(t *testing.T) {
	t.Parallel()

	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret detail")
	}))

	rec := serve(handler, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierror.CodeInternal, decodeEnvelope(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := serve(SecurityHeaders(okHandler()), "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}
