package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-shop-admin/internal/metrics"
	"go-shop-admin/pkg/apierror"
)

// limitClass names a budget. Every client has one token bucket per class.
type limitClass string

const (
	classGeneral    limitClass = "general"
	classCredential limitClass = "credential"

	idleClientTTL  = 10 * time.Minute
	gcClientsAbove = 1000
	retryAfterHint = time.Minute
)

type clientBuckets struct {
	buckets  map[limitClass]*rate.Limiter
	lastSeen time.Time
}

type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

// NewRateLimitMiddleware limits every client to generalRPM requests per
// minute, and to authRPM on routes that take passwords or codes.
// Non-positive values fall back to 100 and 10.
func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM <= 0 {
		generalRPM = 100
	}
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		clients:    map[string]*clientBuckets{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := classGeneral
		if isCredentialRoute(r.URL.Path) {
			class = classCredential
		}

		if !m.bucket(extractClientIP(r), class).Allow() {
			metrics.RateLimited.WithLabelValues(string(class)).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfterHint.Seconds())))
			writeError(w, apierror.New("RATE_LIMITED", "too many requests", "", http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) rpm(class limitClass) int {
	if class == classCredential {
		return m.authRPM
	}
	return m.generalRPM
}

func (m *RateLimitMiddleware) bucket(clientIP string, class limitClass) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	client, ok := m.clients[clientIP]
	if !ok {
		m.evictIdleLocked(now)
		client = &clientBuckets{buckets: map[limitClass]*rate.Limiter{}}
		m.clients[clientIP] = client
	}
	client.lastSeen = now

	limiter, ok := client.buckets[class]
	if !ok {
		perMinute := m.rpm(class)
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		client.buckets[class] = limiter
	}
	return limiter
}

func (m *RateLimitMiddleware) evictIdleLocked(now time.Time) {
	if len(m.clients) < gcClientsAbove {
		return
	}

	cutoff := now.Add(-idleClientTTL)
	for ip, client := range m.clients {
		if client.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// isCredentialRoute matches the unauthenticated auth endpoints that accept
// passwords or codes. They get the stricter per-client limit.
func isCredentialRoute(path string) bool {
	path = strings.ToLower(path)
	if !strings.HasPrefix(path, "/api/v1/auth/") {
		return false
	}
	switch strings.TrimPrefix(path, "/api/v1/auth/") {
	case "me", "profile", "logout":
		return false
	}
	return true
}
