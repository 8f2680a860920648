package http

import "time"

// rateLimiter caps inbound messages per connection in fixed one-minute windows.
// It is used only by the connection's read loop.
type rateLimiter struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := r.now()
	if now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
