package health

import (
	"context"
	"fmt"
)

// Pinger is satisfied by stores that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker checks audit store connectivity.
type StoreChecker struct {
	pinger Pinger
}

// NewStoreChecker creates a new store health checker.
func NewStoreChecker(p Pinger) *StoreChecker {
	return &StoreChecker{pinger: p}
}

// Name returns the checker name.
func (c *StoreChecker) Name() string {
	return "sqlite"
}

// Check verifies the audit store is accessible.
func (c *StoreChecker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return fmt.Errorf("store not configured")
	}
	return c.pinger.Ping(ctx)
}

// NotifierChecker verifies at least one notification channel is registered,
// so alerts raised while the service reports ready can actually be delivered.
type NotifierChecker struct {
	count func() int
}

// NewNotifierChecker creates a new notifier health checker. count reports
// the number of registered channels.
func NewNotifierChecker(count func() int) *NotifierChecker {
	return &NotifierChecker{count: count}
}

// Name returns the checker name.
func (c *NotifierChecker) Name() string {
	return "notifiers"
}

// Check verifies a delivery channel exists.
func (c *NotifierChecker) Check(ctx context.Context) error {
	if c.count == nil || c.count() == 0 {
		return fmt.Errorf("no notification channels registered")
	}
	return nil
}
