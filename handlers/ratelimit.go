package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type attemptData struct {
	count        int
	firstAttempt time.Time
}

// rateLimiter counts failed attempts per client IP. The login and register
// forms each own one.
type rateLimiter struct {
	sync.Mutex
	attempts map[string]*attemptData
	blocked  map[string]time.Time
	now      func() time.Time
}

const (
	maxAttempts    = 5
	blockDuration  = 15 * time.Minute
	windowDuration = 15 * time.Minute

	// maxTracked bounds the attempts map; expired entries are pruned once it
	// is exceeded.
	maxTracked = 10000
)

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		attempts: make(map[string]*attemptData),
		blocked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow returns false if the IP is currently blocked.
// It also cleans up expired blocks.
func (r *rateLimiter) Allow(ip string) bool {
	r.Lock()
	defer r.Unlock()

	if unblockTime, ok := r.blocked[ip]; ok {
		if r.now().Before(unblockTime) {
			return false
		}
		delete(r.blocked, ip)
		delete(r.attempts, ip)
	}
	return true
}

// RecordFailure increments the failure count and blocks if threshold reached.
func (r *rateLimiter) RecordFailure(ip string) {
	r.Lock()
	defer r.Unlock()

	now := r.now()
	if len(r.attempts) > maxTracked {
		r.prune(now)
	}

	data, exists := r.attempts[ip]
	if !exists || now.Sub(data.firstAttempt) > windowDuration {
		data = &attemptData{firstAttempt: now}
		r.attempts[ip] = data
	}
	data.count++
	if data.count >= maxAttempts {
		r.blocked[ip] = now.Add(blockDuration)
	}
}

// Reset clears the counter for an IP (used on successful login).
func (r *rateLimiter) Reset(ip string) {
	r.Lock()
	defer r.Unlock()
	delete(r.attempts, ip)
	delete(r.blocked, ip)
}

// prune drops windows and blocks that have expired. Callers hold the lock.
func (r *rateLimiter) prune(now time.Time) {
	for ip, data := range r.attempts {
		if now.Sub(data.firstAttempt) > windowDuration {
			delete(r.attempts, ip)
		}
	}
	for ip, until := range r.blocked {
		if !now.Before(until) {
			delete(r.blocked, ip)
		}
	}
}

// getClientIP uses the connection's remote address. Forwarding headers are
// ignored so clients cannot pick their own rate limit key.
func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
