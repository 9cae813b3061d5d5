//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/app"
)

func TestSecurityHeadersOnResponses(t *testing.T) {
	t.Parallel()

	components, err := app.Build(context.Background(), testConfig(), app.MemoryStores(), nil)
	require.NoError(t, err)
	server := httptest.NewServer(components.Handler)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))
}

func TestAuthRateLimitReturns429(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AuthRateLimitRPM = 2

	components, err := app.Build(context.Background(), cfg, app.MemoryStores(), nil)
	require.NoError(t, err)
	server := httptest.NewServer(components.Handler)
	t.Cleanup(server.Close)

	loginPayload, err := json.Marshal(map[string]string{"identifier": adminEmail, "password": adminPassword})
	require.NoError(t, err)

	for attempt := 0; attempt < 2; attempt++ {
		resp, reqErr := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginPayload))
		require.NoError(t, reqErr)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginPayload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}
