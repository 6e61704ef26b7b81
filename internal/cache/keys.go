package cache

import (
	"fmt"
	"time"
)

// RateLimitKey buckets requests per client and scope into fixed one-minute windows.
func RateLimitKey(scope, client string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, client, now.Unix()/60)
}

// ModelStatusKey holds the cached model status response.
func ModelStatusKey() string {
	return "model:status"
}
