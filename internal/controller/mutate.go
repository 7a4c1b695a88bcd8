package controller

import (
	"context"
	"fmt"
)

// mutation is one list-changing request:
//
//	apply (tentative, optional) → call → reconcile on success
//	                                   → rollback on failure
//
// rollback undoes only what apply did, so changes that other operations
// made to the list meanwhile survive a failure.
type mutation struct {
	op        string
	token     string // credential the call is made with
	apply     func(*State)
	rollback  func(*State)
	call      func(ctx context.Context) error
	reconcile func(*State)
}

func (c *Controller) mutate(ctx context.Context, m mutation) error {
	if m.apply != nil {
		c.mu.Lock()
		m.apply(&c.state)
		c.mu.Unlock()
		c.notify()
	}

	err := m.call(ctx)

	c.mu.Lock()
	if err != nil {
		if m.rollback != nil {
			m.rollback(&c.state)
		}
		drop := c.failLocked(err, m.token)
		c.mu.Unlock()
		c.afterFail(ctx, drop)
		c.notify()
		c.log.Debug().Err(err).Str("op", m.op).Msg("mutation failed")
		return fmt.Errorf("%s: %w", m.op, err)
	}
	if m.reconcile != nil {
		m.reconcile(&c.state)
	}
	c.mu.Unlock()
	c.notify()
	return nil
}
