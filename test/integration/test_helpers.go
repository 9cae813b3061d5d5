//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"go-shop-admin/internal/app"
	"go-shop-admin/internal/config"
	"go-shop-admin/internal/database"
	"go-shop-admin/internal/model"
)

const (
	adminEmail    = "root@shop.test"
	adminPassword = "root-password"
)

// startPostgres runs a throwaway PostgreSQL container, applies the
// migrations and returns a connected pool.
func startPostgres(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("shop_admin_test"),
		postgres.WithUsername("shop"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(dsn))

	db, err := database.New(ctx, dsn, database.PoolOptions{MaxConns: 10, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:          "8080",
		RequestTimeout:      10 * time.Second,
		JWTSecret:           "integration-test-signing-secret",
		JWTAccessTTL:        15 * time.Minute,
		JWTRefreshTTL:       24 * time.Hour,
		JWTIssuer:           "go-shop-admin",
		VerificationCodeTTL: 5 * time.Minute,
		BcryptCost:          4,
		DefaultRole:         "customer",
		AdminEmail:          adminEmail,
		AdminPassword:       adminPassword,
		AdminHandle:         "root",
		PermissionCacheTTL:  time.Minute,
		PermissionCacheSize: 128,
		OAuthStateTTL:       time.Minute,
		CORSOrigins:         []string{"*"},
		RateLimitRPM:        1000,
		AuthRateLimitRPM:    1000,
		LogFormat:           "json",
	}
}

type testServer struct {
	*httptest.Server
	db *database.DB
}

// newServer wires the full application against Postgres.
func newServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	db := startPostgres(t)
	components, err := app.Build(context.Background(), cfg, app.PostgresStores(db.Pool), db)
	require.NoError(t, err)
	t.Cleanup(components.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go components.Audit.Run(ctx, components.Bus)

	server := httptest.NewServer(components.Handler)
	t.Cleanup(server.Close)

	return &testServer{Server: server, db: db}
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body any) (*http.Response, model.APIResponse) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req, err := http.NewRequest(method, s.URL+path, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var envelope model.APIResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	}
	return resp, envelope
}

func (s *testServer) login(t *testing.T, identifier string, password string) model.APIResponse {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body.Token)
	require.NotEmpty(t, body.RefreshToken)
	return body
}

// verificationCode reads the pending code straight from the users table.
func (s *testServer) verificationCode(t *testing.T, email string) string {
	t.Helper()

	var code string
	err := s.db.Pool.QueryRow(context.Background(),
		`SELECT COALESCE(verification_code, '') FROM users WHERE lower(email) = lower($1)`, email).Scan(&code)
	require.NoError(t, err)
	require.NotEmpty(t, code)
	return code
}
