// Package limiter provides an HTTP middleware which bounds the request rate
// to a device, returning 429 (too many requests) when it is exceeded.
package limiter

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket.  Requests whose method is in Exempt skip it.
type Limiter struct {
	l *rate.Limiter

	// Exempt lists methods that are never limited, e.g. "GET"
	Exempt []string
}

// New returns a Limiter admitting perSecond requests per second on average,
// with bursts of up to burst.  perSecond <= 0 disables limiting.
func New(perSecond float64, burst int) *Limiter {
	lim := rate.Inf
	if perSecond > 0 {
		lim = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(lim, burst)}
}

func (l *Limiter) exempt(method string) bool {
	for _, m := range l.Exempt {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Check is an HTTP middleware that returns http.StatusTooManyRequests when
// the bucket is empty, otherwise passes down the line
func (l *Limiter) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.exempt(r.Method) && !l.l.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
