package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// loginLimiters holds one token bucket per role path segment.
type loginLimiters struct {
	perMinute float64
	burst     int

	lock     sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLoginLimiters(perMinute float64, burst int) *loginLimiters {
	return &loginLimiters{
		perMinute: perMinute,
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (ll *loginLimiters) Allow(role string) bool {
	ll.lock.Lock()
	limiter, ok := ll.limiters[role]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(ll.perMinute/60.0), ll.burst)
		ll.limiters[role] = limiter
	}
	ll.lock.Unlock()
	return limiter.Allow()
}
