package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// authLimiter rate-limits the credential-guessing surface (/api/-/token,
// /api/-/refresh, and the runner protocol) per client IP. It is kept
// separate from the hand-rolled RateLimiter middleware.go uses for general
// traffic: x/time/rate's Limiter already does the token-bucket math
// correctly and is the library the rest of the pack reaches for, so there's
// no reason to re-derive it for this one narrower surface.
type authLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newAuthLimiter(ratePerSecond float64, burst int) *authLimiter {
	return &authLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (a *authLimiter) allow(key string) bool {
	a.mu.Lock()
	l, ok := a.limiters[key]
	if !ok {
		l = rate.NewLimiter(a.r, a.burst)
		a.limiters[key] = l
	}
	a.mu.Unlock()
	return l.Allow()
}

// AuthRateLimit wraps next so repeated requests from one IP get throttled
// before they reach the handler; every request counts, whether or not its
// credentials turn out to be valid.
func (h *Handler) AuthRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authLimiter.allow(GetClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeAPIError(w, &apiError{status: http.StatusTooManyRequests, code: "rate_limited", message: "too many attempts, slow down"})
			return
		}
		next(w, r)
	}
}
