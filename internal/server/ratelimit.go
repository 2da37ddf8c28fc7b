package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thruflo/sightline/internal/logging"
)

// RateLimitConfig bounds password attempts per client IP.
type RateLimitConfig struct {
	MaxAttempts int           // attempts allowed per window
	Window      time.Duration // sliding window length
	BlockAfter  int           // consecutive failures before blocking
	BlockTime   time.Duration // first block length, doubling on each further block
}

// maxBlock caps the exponential block time.
const maxBlock = 24 * time.Hour

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts: 5,
		Window:      time.Minute,
		BlockAfter:  10,
		BlockTime:   5 * time.Minute,
	}
}

// rateLimiter is a sliding-window limiter with exponential blocking after
// repeated failures.
type rateLimiter struct {
	mu     sync.Mutex
	config RateLimitConfig
	now    func() time.Time

	attempts map[string][]time.Time
	failures map[string]int
	blocked  map[string]time.Time // ip -> block expiry
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	def := DefaultRateLimitConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.BlockAfter <= 0 {
		config.BlockAfter = def.BlockAfter
	}
	if config.BlockTime <= 0 {
		config.BlockTime = def.BlockTime
	}

	return &rateLimiter{
		config:   config,
		now:      time.Now,
		attempts: make(map[string][]time.Time),
		failures: make(map[string]int),
		blocked:  make(map[string]time.Time),
	}
}

// decision is the outcome of a rate limit check.
type decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Blocked    bool
	Reason     string
}

// allow records an attempt from ip if it is permitted.
func (rl *rateLimiter) allow(ip string) decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if expiry, ok := rl.blocked[ip]; ok {
		if now.Before(expiry) {
			return decision{RetryAfter: expiry.Sub(now), Blocked: true, Reason: "too many failed attempts"}
		}
		delete(rl.blocked, ip)
	}

	recent := rl.prune(ip, now)
	if len(recent) >= rl.config.MaxAttempts {
		retry := recent[0].Add(rl.config.Window).Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
		return decision{RetryAfter: retry, Reason: "rate limit exceeded"}
	}

	rl.attempts[ip] = append(recent, now)
	return decision{Allowed: true}
}

// prune drops attempts older than the window. Callers hold mu.
func (rl *rateLimiter) prune(ip string, now time.Time) []time.Time {
	start := now.Add(-rl.config.Window)
	kept := rl.attempts[ip][:0]
	for _, ts := range rl.attempts[ip] {
		if ts.After(start) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(rl.attempts, ip)
		return nil
	}
	rl.attempts[ip] = kept
	return kept
}

func (rl *rateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.failures, ip)
	delete(rl.blocked, ip)
}

// recordFailure counts a failed password. Every BlockAfter consecutive
// failures block the ip, each block twice as long as the last.
func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.failures[ip]++
	n := rl.failures[ip]
	if n < rl.config.BlockAfter {
		return
	}

	blocks := (n - rl.config.BlockAfter) / rl.config.BlockAfter
	d := rl.config.BlockTime
	for i := 0; i < blocks && d < maxBlock; i++ {
		d *= 2
	}
	if d > maxBlock {
		d = maxBlock
	}

	rl.blocked[ip] = rl.now().Add(d)
	logging.Warn("blocking client after failed logins", "ip", ip, "failures", n, "duration", d)
}

// cleanup removes expired state.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip := range rl.attempts {
		rl.prune(ip, now)
	}
	for ip, expiry := range rl.blocked {
		if !now.Before(expiry) {
			delete(rl.blocked, ip)
		}
	}
	for ip := range rl.failures {
		_, blocked := rl.blocked[ip]
		_, active := rl.attempts[ip]
		if !blocked && !active {
			delete(rl.failures, ip)
		}
	}
}

// clientIP returns the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
