// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package provider

import (
	"sort"
	"sync"
	"time"

	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/health"
)

// CircuitState is the state of a provider circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// Breaker defaults.
const (
	DefaultFailureThreshold    = 3
	DefaultResetTimeout        = 30 * time.Second
	DefaultHalfOpenMaxAttempts = 2
)

// BreakerConfig tunes every breaker in a Breakers registry.
type BreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxAttempts int
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		ResetTimeout:        DefaultResetTimeout,
		HalfOpenMaxAttempts: DefaultHalfOpenMaxAttempts,
	}
}

// Validate checks that every field is positive.
func (c BreakerConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return genoserr.Errorf(genoserr.CodeConfigValidateInvalidValue,
			"breaker failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.ResetTimeout <= 0 {
		return genoserr.Errorf(genoserr.CodeConfigValidateInvalidValue,
			"breaker reset timeout must be positive, got %s", c.ResetTimeout)
	}
	if c.HalfOpenMaxAttempts <= 0 {
		return genoserr.Errorf(genoserr.CodeConfigValidateInvalidValue,
			"breaker half-open attempts must be positive, got %d", c.HalfOpenMaxAttempts)
	}
	return nil
}

// StateObserver is notified after every state transition.
type StateObserver func(provider string, from, to CircuitState)

type breaker struct {
	state             CircuitState
	failures          int
	lastFailureAt     time.Time
	halfOpenSuccesses int
}

// Breakers is a registry of per-provider circuit breakers. Breakers are
// created lazily on first reference and live as long as the registry.
type Breakers struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*breaker
	observer StateObserver
	nowFunc  func() time.Time // for testing
}

// NewBreakers creates an empty registry. Returns an error if cfg is invalid.
func NewBreakers(cfg BreakerConfig) (*Breakers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Breakers{
		cfg:      cfg,
		breakers: make(map[string]*breaker),
		nowFunc:  time.Now,
	}, nil
}

// SetNowFunc overrides the time source (for testing).
func (b *Breakers) SetNowFunc(fn func() time.Time) {
	b.mu.Lock()
	b.nowFunc = fn
	b.mu.Unlock()
}

// SetObserver installs a transition observer. Observers run with the
// registry lock held and must not call back into it.
func (b *Breakers) SetObserver(fn StateObserver) {
	b.mu.Lock()
	b.observer = fn
	b.mu.Unlock()
}

// getLocked returns the breaker for provider, creating it if needed.
// The caller MUST hold b.mu.
func (b *Breakers) getLocked(provider string) *breaker {
	br, ok := b.breakers[provider]
	if !ok {
		br = &breaker{state: CircuitClosed}
		b.breakers[provider] = br
	}
	return br
}

func (b *Breakers) transitionLocked(provider string, br *breaker, to CircuitState) {
	from := br.state
	br.state = to
	if b.observer != nil && from != to {
		b.observer(provider, from, to)
	}
}

// stateLocked applies the lazy OPEN -> HALF_OPEN transition and returns the
// effective state. The caller MUST hold b.mu.
func (b *Breakers) stateLocked(provider string, br *breaker) CircuitState {
	if br.state == CircuitOpen && b.nowFunc().Sub(br.lastFailureAt) >= b.cfg.ResetTimeout {
		br.halfOpenSuccesses = 0
		b.transitionLocked(provider, br, CircuitHalfOpen)
	}
	return br.state
}

// State returns the effective state of the provider's breaker.
func (b *Breakers) State(provider string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(provider, b.getLocked(provider))
}

// IsAvailable reports whether the provider may be called.
func (b *Breakers) IsAvailable(provider string) bool {
	return b.State(provider) != CircuitOpen
}

// RecordSuccess registers a successful call. Like RecordFailure it acts on
// the stored state; the OPEN -> HALF_OPEN check happens in State.
func (b *Breakers) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.getLocked(provider)
	switch br.state {
	case CircuitHalfOpen:
		br.halfOpenSuccesses++
		if br.halfOpenSuccesses >= b.cfg.HalfOpenMaxAttempts {
			br.failures = 0
			br.halfOpenSuccesses = 0
			b.transitionLocked(provider, br, CircuitClosed)
		}
	case CircuitClosed:
		br.failures = 0
	}
}

// RecordFailure registers a failed call. A single failure while half-open
// reopens the circuit.
func (b *Breakers) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.getLocked(provider)
	now := b.nowFunc()

	if br.state == CircuitHalfOpen {
		br.lastFailureAt = now
		b.transitionLocked(provider, br, CircuitOpen)
		return
	}

	br.failures++
	br.lastFailureAt = now
	if br.failures >= b.cfg.FailureThreshold {
		b.transitionLocked(provider, br, CircuitOpen)
	}
}

// Snapshot returns the state of every known breaker, applying the lazy
// transition check to each.
func (b *Breakers) Snapshot() map[string]health.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]health.CircuitState, len(b.breakers))
	for name, br := range b.breakers {
		out[name] = health.CircuitState{
			State:    string(b.stateLocked(name, br)),
			Failures: br.failures,
		}
	}
	return out
}

// Names returns the providers with a breaker, sorted.
func (b *Breakers) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.breakers))
	for name := range b.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
