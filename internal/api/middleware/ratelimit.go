package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/cache"
	"github.com/mangosense/mangosense-api/internal/metrics"
)

const (
	defaultRequestsPerMinute = 30
	window                   = time.Minute
)

// RateLimit counts requests per client IP in fixed one-minute windows in Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	scope          string
	metrics        *metrics.Metrics
	trusted        []netip.Prefix
	now            func() time.Time
}

// NewRateLimit creates a new RateLimit middleware. scope separates the
// counters of independently limited route groups.
func NewRateLimit(c cache.Cache, requestsPerMin int, scope string, m *metrics.Metrics) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, scope: scope, metrics: m, now: time.Now}
}

// TrustProxies lets forwarding headers choose the limited address, but only
// when the connecting peer is inside one of prefixes.
func (rl *RateLimit) TrustProxies(prefixes []netip.Prefix) *RateLimit {
	rl.trusted = prefixes
	return rl
}

// Limit rejects a client's requests beyond the per-minute budget with 429.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.now()
		key := cache.RateLimitKey(rl.scope, LimitIP(r, rl.trusted), now)
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, window)
		if err != nil {
			// On Redis error, allow the request (fail open)
			slog.Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		windowEnd := now.Truncate(window).Add(window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(windowEnd.Unix(), 10))

		if count > int64(rl.requestsPerMin) {
			retry := int(windowEnd.Sub(now).Seconds() + 0.999)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			rl.metrics.Limited(rl.scope)
			response.Error(w, http.StatusTooManyRequests, "Too many requests", "RATE_LIMIT_EXCEEDED")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LimitIP is the address a request is rate limited by: the socket peer, or
// ClientIP when the peer is a trusted proxy.
func LimitIP(r *http.Request, trusted []netip.Prefix) string {
	peer := PeerIP(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return peer
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return ClientIP(r)
		}
	}
	return peer
}

// PeerIP returns the remote address without its port.
func PeerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP returns the first X-Forwarded-For hop, else X-Real-IP, else the
// remote address without its port. The headers are client-controlled, so the
// result is only recorded, never used for limiting.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return PeerIP(r)
}
