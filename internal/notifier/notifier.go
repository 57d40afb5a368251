// Package notifier provides notification delivery for alerts.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// Kind classifies what an envelope carries.
type Kind string

const (
	KindAlert      Kind = "alert"
	KindDigest     Kind = "digest"
	KindFollowup   Kind = "followup"
	KindEscalation Kind = "escalation"
)

// Envelope is one fully rendered notification ready for delivery. The
// workflow manager builds envelopes; notifiers only move them.
type Envelope struct {
	AlertID  string
	Kind     Kind
	Priority models.Priority
	To       string
	CC       []string
	Subject  string
	Body     string
}

// DeliveryResult reports the outcome of one delivery attempt. Failures are
// recorded, never retried in place; the follow-up and escalation cadence
// provides the retry pressure.
type DeliveryResult struct {
	Success bool
	Err     error
}

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "slack", "log").
	Name() string
	// Send delivers one envelope.
	Send(ctx context.Context, env Envelope) DeliveryResult
	// Close releases any resources.
	Close() error
}

// ErrRateLimited is returned when a notification is dropped due to rate limiting.
var ErrRateLimited = errors.New("notification rate limited")

// Dispatcher fans one envelope out to all registered notifiers, behind a
// shared rate limit.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
}

// NewDispatcher creates a dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with custom rate limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a notifier from the dispatcher.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, name)
}

// Count returns the number of registered notifiers.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.notifiers)
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// Send delivers the envelope through every registered notifier. The result
// is successful only when at least one notifier is registered and all of
// them succeed. If every channel fails, the consumed rate limit token is
// refunded so the retry cadence is not throttled by its own failures.
func (d *Dispatcher) Send(ctx context.Context, env Envelope) DeliveryResult {
	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		return DeliveryResult{Err: ErrRateLimited}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.notifiers) == 0 {
		return DeliveryResult{Err: errors.New("no notifiers registered")}
	}

	var errs []error
	delivered := 0
	for name, n := range d.notifiers {
		res := n.Send(ctx, env)
		if res.Success {
			delivered++
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
	}

	if delivered == 0 && d.rateLimiter != nil {
		d.rateLimiter.Release()
	}

	if len(errs) > 0 {
		return DeliveryResult{Success: false, Err: errors.Join(errs...)}
	}
	return DeliveryResult{Success: true}
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	return errors.Join(errs...)
}
