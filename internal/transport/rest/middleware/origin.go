package middleware

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"

	"voxpop/internal/cache"
)

// OriginMiddleware resolves the respondent's network origin and enforces the
// ban list before any session endpoint runs. Banned origins never reach the
// pipeline.
type OriginMiddleware struct {
	banCache cache.BanCache
}

func NewOriginMiddleware(banCache cache.BanCache) *OriginMiddleware {
	return &OriginMiddleware{banCache: banCache}
}

// Resolve puts the client origin into the request context.
func (m *OriginMiddleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), OriginKey, ClientOrigin(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RejectBanned blocks requests from banned origins. A ban-list read failure
// fails open: an abusive origin slipping one request through beats locking
// out everyone.
func (m *OriginMiddleware) RejectBanned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := GetOrigin(r.Context())
		banned, err := m.banCache.IsBanned(r.Context(), origin)
		if err != nil {
			log.Printf("origin: ban check failed for %s: %v", origin, err)
		}
		if banned {
			http.Error(w, `{"error":"access denied"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetOrigin extracts the resolved client origin from a request context.
func GetOrigin(ctx context.Context) string {
	if origin, ok := ctx.Value(OriginKey).(string); ok {
		return origin
	}
	return ""
}

// ClientOrigin resolves the client IP, trusting X-Forwarded-For when present
// (first hop) and falling back to the socket address.
func ClientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
