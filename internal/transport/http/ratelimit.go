package http

import "golang.org/x/time/rate"

// rateLimiter bounds inbound frames per connection.
type rateLimiter struct {
	lim *rate.Limiter
}

func newRateLimiter(perSecond int) *rateLimiter {
	if perSecond <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.lim == nil {
		return true
	}
	return r.lim.Allow()
}
