package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/config"
	"go-shop-admin/internal/model"
	"go-shop-admin/internal/oauth"
)

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:      5 * time.Second,
		JWTSecret:           "app-test-signing-secret",
		JWTAccessTTL:        time.Hour,
		JWTRefreshTTL:       24 * time.Hour,
		JWTIssuer:           "go-shop-admin",
		VerificationCodeTTL: 5 * time.Minute,
		BcryptCost:          4,
		DefaultRole:         "customer",
		AdminEmail:          "root@shop.test",
		AdminPassword:       "root-password",
		AdminHandle:         "root",
		PermissionCacheTTL:  time.Minute,
		PermissionCacheSize: 64,
		OAuthStateTTL:       time.Minute,
		RateLimitRPM:        1000,
		AuthRateLimitRPM:    1000,
	}
}

func TestBuildServesBootstrappedAdmin(t *testing.T) {
	components, err := Build(context.Background(), testConfig(), MemoryStores(), nil)
	require.NoError(t, err)
	t.Cleanup(components.Close)

	payload, err := json.Marshal(map[string]string{"identifier": "root", "password": "root-password"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	components.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec = httptest.NewRecorder()
	components.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildWithoutPermissionCache(t *testing.T) {
	cfg := testConfig()
	cfg.PermissionCacheTTL = 0

	components, err := Build(context.Background(), cfg, MemoryStores(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	components.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRejectsEmptySecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""

	_, err := Build(context.Background(), cfg, MemoryStores(), nil)
	require.Error(t, err)
}

func TestNewStateStore(t *testing.T) {
	t.Run("memory without redis url", func(t *testing.T) {
		store, closeFn, err := newStateStore(context.Background(), testConfig())
		require.NoError(t, err)
		assert.Nil(t, closeFn)
		assert.IsType(t, &oauth.MemoryStateStore{}, store)
	})

	t.Run("redis when configured", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig()
		cfg.RedisURL = "redis://" + mr.Addr()

		store, closeFn, err := newStateStore(context.Background(), cfg)
		require.NoError(t, err)
		require.NotNil(t, closeFn)
		t.Cleanup(closeFn)
		assert.IsType(t, &oauth.RedisStateStore{}, store)

		state, err := store.Issue(context.Background(), model.ProviderGoogle)
		require.NoError(t, err)
		assert.Len(t, mr.Keys(), 1)

		ok, err := store.Consume(context.Background(), model.ProviderGoogle, state)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig()
		cfg.RedisURL = "redis://" + mr.Addr()
		mr.Close()

		_, _, err := newStateStore(context.Background(), cfg)
		require.Error(t, err)
	})

	t.Run("malformed url", func(t *testing.T) {
		cfg := testConfig()
		cfg.RedisURL = "not a url"

		_, _, err := newStateStore(context.Background(), cfg)
		require.Error(t, err)
	})
}

func TestNewProvidersFollowsConfig(t *testing.T) {
	cfg := testConfig()
	assert.Empty(t, newProviders(context.Background(), cfg).Names())

	cfg.GoogleClientID = "google-client"
	cfg.GoogleClientSecret = "google-secret"
	cfg.GoogleRedirectURL = "https://shop.test/api/v1/auth/google/callback"
	cfg.FacebookClientID = "fb-client"
	cfg.FacebookClientSecret = "fb-secret"
	cfg.FacebookRedirectURL = "https://shop.test/api/v1/auth/facebook/callback"

	registry := newProviders(context.Background(), cfg)
	assert.ElementsMatch(t, []string{model.ProviderGoogle, model.ProviderFacebook}, registry.Names())

	google, ok := registry.Get(model.ProviderGoogle)
	require.True(t, ok)
	assert.Contains(t, google.AuthCodeURL("s-1"), "client_id=google-client")
}
