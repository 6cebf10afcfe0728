package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultWindow = time.Minute
	AnonymousKey  = "anonymous"
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter gates requests per client key in fixed windows.
type Limiter interface {
	Check(ctx context.Context, key string) (Decision, error)
	Limit() int
}

// Clock is swapped out in tests.
type Clock func() time.Time

// ClientIdentifier derives the rate-limit key for a request. Clients without
// any forwarding header share the anonymous bucket.
func ClientIdentifier(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return AnonymousKey
}

func decide(count, limit int, resetAt time.Time) Decision {
	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
}
