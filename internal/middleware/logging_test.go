package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-shop-admin/pkg/apierror"
)

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestLoggingAssignsRequestID(t *testing.T) {
	captureLogs(t)

	var seen string
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestLoggingRecordsErrorEnvelope(t *testing.T) {
	logs := captureLogs(t)

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, apierror.Forbidden("insufficient permissions", "order:create"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders?dry=1", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient permissions")

	out := logs.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"error_code":"FORBIDDEN"`)
	assert.Contains(t, out, `"error_details":"order:create"`)
	assert.Contains(t, out, `"query":"dry=1"`)
}

func TestLoggingKeepsAuthQueryOutOfLogs(t *testing.T) {
	logs := captureLogs(t)

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, apierror.Unauthorized("federated login failed"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=secret-code", nil))
	assert.NotContains(t, logs.String(), "secret-code")
}
