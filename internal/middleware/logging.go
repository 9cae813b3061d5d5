package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

const requestIDKey contextKey = "request_id"

// errorBody picks the error fields out of a JSON error envelope.
type errorBody struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// errorCapture buffers the response body once the status is an error.
type errorCapture struct {
	ww  chimw.WrapResponseWriter
	buf bytes.Buffer
}

func (c *errorCapture) Write(b []byte) (int, error) {
	if c.ww.Status() >= http.StatusBadRequest {
		c.buf.Write(b)
	}
	return len(b), nil
}

// Logging assigns a request id and writes one log line per request. Error
// responses are logged with the envelope's code and message.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		capture := &errorCapture{ww: ww}
		ww.Tee(capture)

		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", extractClientIP(r),
		}

		// Query strings on auth routes may carry OAuth codes; keep them out of the log.
		if status >= 400 && r.URL.RawQuery != "" && !strings.HasPrefix(r.URL.Path, "/api/v1/auth") {
			attrs = append(attrs, "query", r.URL.RawQuery)
		}

		var parsed errorBody
		if capture.buf.Len() > 0 && json.Unmarshal(capture.buf.Bytes(), &parsed) == nil && parsed.Code != "" {
			attrs = append(attrs, "error_code", parsed.Code, "error_message", parsed.Message)
			if parsed.Details != "" {
				attrs = append(attrs, "error_details", parsed.Details)
			}
		}

		switch {
		case status >= 500:
			slog.Error("request", attrs...)
		case status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

// RequestIDFromContext returns the id Logging assigned to the request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
