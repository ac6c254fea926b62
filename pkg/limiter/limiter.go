// Package limiter caps model usage with a tokens-per-minute bucket and a
// limit on requests in flight.
package limiter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"storyqa/pkg/config"
)

var (
	// ErrRateLimit is returned when the token bucket cannot cover a request.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrConcurrencyLimit is returned when every request slot is taken.
	ErrConcurrencyLimit = errors.New("concurrency limit exceeded")
)

// Limiter enforces the limits of one model. A zero limit is not enforced.
//
//nolint:govet // Struct layout optimization not critical for this use case
type Limiter struct {
	mu                 sync.Mutex
	name               string
	maxTokensPerMinute int
	maxConcurrent      int
	currentTokens      int
	active             int
	lastRefill         time.Time
	now                func() time.Time
}

// New returns a limiter with a full token bucket.
func New(name string, maxTokensPerMinute, maxConcurrent int) *Limiter {
	return &Limiter{
		name:               name,
		maxTokensPerMinute: maxTokensPerMinute,
		maxConcurrent:      maxConcurrent,
		currentTokens:      maxTokensPerMinute,
		lastRefill:         time.Now(),
		now:                time.Now,
	}
}

// FromConfig returns the limiter for the configured model, or nil when no
// limit is set.
func FromConfig(cfg *config.Config) *Limiter {
	if cfg.Model.MaxTokensPerMinute <= 0 && cfg.Model.MaxConcurrent <= 0 {
		return nil
	}
	return New(cfg.Model.Name, cfg.Model.MaxTokensPerMinute, cfg.Model.MaxConcurrent)
}

// Name returns the model the limiter guards.
func (l *Limiter) Name() string {
	return l.name
}

// Reserve takes tokens from the bucket.
func (l *Limiter) Reserve(tokens int) error {
	if l.maxTokensPerMinute <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()
	if l.currentTokens < tokens {
		return fmt.Errorf("%w: %s needs %d tokens, %d left this minute", ErrRateLimit, l.name, tokens, l.currentTokens)
	}
	l.currentTokens -= tokens
	return nil
}

// Acquire takes a request slot. Every successful Acquire needs a Release.
func (l *Limiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxConcurrent > 0 && l.active >= l.maxConcurrent {
		return fmt.Errorf("%w: %s already has %d requests in flight", ErrConcurrencyLimit, l.name, l.active)
	}
	l.active++
	return nil
}

// Release returns a request slot.
func (l *Limiter) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active <= 0 {
		return fmt.Errorf("no requests to release for model %s", l.name)
	}
	l.active--
	return nil
}

// Status reports the tokens left this minute and the requests in flight.
func (l *Limiter) Status() (tokens, active int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()
	return l.currentTokens, l.active
}

func (l *Limiter) refillTokens() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed < time.Minute {
		return
	}

	// Refill for each whole minute, capped at one minute's worth.
	minutes := int(elapsed / time.Minute)
	l.currentTokens += minutes * l.maxTokensPerMinute
	if l.currentTokens > l.maxTokensPerMinute {
		l.currentTokens = l.maxTokensPerMinute
	}
	l.lastRefill = l.lastRefill.Add(time.Duration(minutes) * time.Minute)
}
