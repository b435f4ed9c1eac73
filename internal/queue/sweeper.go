package queue

import (
	"context"
	"time"

	"github.com/fullstack-daddy/shopverse/internal/domain"
)

const defaultSweepInterval = 60 * time.Second

// SweepExpired reclaims every reservation whose hold has run out: the
// reserved quantity is released, the entry removed, and a timeout event
// emitted. Remaining entries are renumbered and availability is
// re-evaluated the same way Leave does it. A failure on one product
// never stops the sweep of the others. Returns the number of
// reservations reclaimed.
func (c *Controller) SweepExpired(ctx context.Context, now time.Time) int {
	c.mu.RLock()
	snapshot := make([]*productQueue, 0, len(c.queues))
	for _, q := range c.queues {
		snapshot = append(snapshot, q)
	}
	c.mu.RUnlock()

	reclaimed := 0
	for _, q := range snapshot {
		reclaimed += c.sweepQueue(ctx, q, now)
	}
	return reclaimed
}

func (c *Controller) sweepQueue(ctx context.Context, q *productQueue, now time.Time) int {
	q.mu.Lock()

	live := q.entries[:0:0]
	var expired []*domain.Reservation
	for _, e := range q.entries {
		if e.ExpiresAt.After(now) {
			live = append(live, e)
		} else {
			expired = append(expired, e)
		}
	}
	if len(expired) == 0 {
		q.mu.Unlock()
		return 0
	}
	q.entries = live

	for _, e := range expired {
		if err := c.ledger.Release(ctx, q.productID, e.Quantity); err != nil {
			c.log.Error().Err(err).Str("product_id", q.productID).Str("reservation_id", e.ID).Msg("release on expiry failed")
		}
		c.indexRemove(e.UserID, q.productID)
		c.publish(ctx, domain.TopicQueueTimeout, domain.QueueTimeoutEvent{
			UserID:        e.UserID,
			ProductID:     q.productID,
			ReservationID: e.ID,
		})
	}
	c.broadcastPositions(ctx, q)
	c.restoreAvailability(ctx, q)
	empty := len(q.entries) == 0
	q.mu.Unlock()

	if empty {
		c.removeQueueIfEmpty(q.productID, q)
	}
	return len(expired)
}

// Sweeper drives SweepExpired on a fixed interval for the lifetime of
// the controller. One coarse pass over all queues bounds resource usage
// under churn; there is no per-entry timer.
type Sweeper struct {
	ctrl     *Controller
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(ctrl *Controller, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{ctrl: ctrl, interval: interval}
}

// Start launches the sweep loop. It runs until Stop is called or the
// parent context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := s.ctrl.SweepExpired(ctx, s.ctrl.clock.Now())
				if n > 0 {
					s.ctrl.log.Info().Int("reclaimed", n).Msg("swept expired reservations")
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
