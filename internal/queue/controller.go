package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fullstack-daddy/shopverse/internal/clock"
	"github.com/fullstack-daddy/shopverse/internal/domain"
	"github.com/fullstack-daddy/shopverse/internal/inventory"
	"github.com/fullstack-daddy/shopverse/internal/pubsub"
)

const (
	defaultHoldDuration      = 10 * time.Minute
	defaultSlotTime          = 2 * time.Minute
	defaultLowStockThreshold = 5
	defaultCapacityCap       = 100
)

// Controller admits purchase attempts for low-stock products through
// bounded, time-limited FIFO queues, one per product. Joining takes a
// real reservation against the stock ledger; every reservation resolves
// exactly once, via payment, cancellation or expiry.
type Controller struct {
	ledger   inventory.Ledger
	pub      pubsub.Publisher
	clock    clock.Clock
	log      zerolog.Logger
	holdTTL  time.Duration
	slotTime time.Duration
	// threshold is the available-stock level at or below which direct
	// purchase is switched off and the queue takes over.
	threshold   int
	capacityCap int

	mu     sync.RWMutex // guards queues map membership only
	queues map[string]*productQueue

	idxMu  sync.RWMutex // guards byUser
	byUser map[string]map[string]struct{}
}

// productQueue serializes all mutations for a single product: the
// capacity check, the duplicate check, the stock reservation and the
// list mutation happen atomically under mu. Queues for different
// products never block each other.
type productQueue struct {
	mu        sync.Mutex
	productID string
	entries   []*domain.Reservation
	maxSize   int
	// active is false once the queue has been emptied and unlinked
	// from the controller; joins that raced the removal retry against
	// a fresh queue.
	active bool
}

type Option func(*Controller)

// WithHoldDuration overrides how long a reservation is held before the
// sweeper reclaims it.
func WithHoldDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.holdTTL = d
		}
	}
}

// WithSlotTime overrides the fixed per-position wait estimate.
func WithSlotTime(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.slotTime = d
		}
	}
}

// WithLowStockThreshold overrides the stock level that activates queuing.
func WithLowStockThreshold(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.threshold = n
		}
	}
}

// WithCapacityCap overrides the upper bound on queue size.
func WithCapacityCap(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.capacityCap = n
		}
	}
}

func NewController(ledger inventory.Ledger, pub pubsub.Publisher, clk clock.Clock, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		ledger:      ledger,
		pub:         pub,
		clock:       clk,
		log:         log,
		holdTTL:     defaultHoldDuration,
		slotTime:    defaultSlotTime,
		threshold:   defaultLowStockThreshold,
		capacityCap: defaultCapacityCap,
		queues:      make(map[string]*productQueue),
		byUser:      make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShouldQueue reports whether purchases of the product must go through
// the queue: true iff available stock is at or below the threshold.
func (c *Controller) ShouldQueue(ctx context.Context, productID string) (bool, error) {
	stock, err := c.ledger.AvailableStock(ctx, productID)
	if err != nil {
		if err == domain.ErrProductNotFound {
			return false, err
		}
		c.log.Error().Err(err).Str("product_id", productID).Msg("stock lookup failed")
		return false, domain.ErrTransientFailure
	}
	return stock <= c.threshold, nil
}

type JoinInput struct {
	UserID    string
	ProductID string
	Quantity  int
	Contact   string
}

type JoinResult struct {
	ReservationID string
	Position      int
	EstimatedWait time.Duration
	ExpiresAt     time.Time
}

// Join appends the user to the product's queue and reserves the
// requested quantity. Preconditions are checked in order; the first
// failure wins. The reservation is pessimistic: stock is decremented
// immediately and restored only by cancellation or expiry.
func (c *Controller) Join(ctx context.Context, in JoinInput) (JoinResult, error) {
	if in.Quantity <= 0 {
		return JoinResult{}, domain.ErrInvalidQuantity
	}

	var q *productQueue
	for {
		var err error
		q, err = c.getOrCreateQueue(ctx, in.ProductID)
		if err != nil {
			return JoinResult{}, err
		}
		q.mu.Lock()
		if q.active {
			break
		}
		// Lost a race with queue removal; take a fresh queue.
		q.mu.Unlock()
	}
	defer q.mu.Unlock()

	stock, err := c.ledger.AvailableStock(ctx, in.ProductID)
	if err != nil {
		if err == domain.ErrProductNotFound {
			return JoinResult{}, err
		}
		c.log.Error().Err(err).Str("product_id", in.ProductID).Msg("stock lookup failed")
		return JoinResult{}, domain.ErrTransientFailure
	}
	if stock < in.Quantity {
		return JoinResult{}, domain.ErrInsufficientStock
	}
	for _, e := range q.entries {
		if e.UserID == in.UserID {
			return JoinResult{}, domain.ErrAlreadyQueued
		}
	}
	if len(q.entries) >= q.maxSize {
		// A full queue also means the product cannot be bought
		// directly until someone leaves.
		if err := c.ledger.SetAvailability(ctx, in.ProductID, false); err != nil {
			c.log.Error().Err(err).Str("product_id", in.ProductID).Msg("mark unavailable failed")
		}
		return JoinResult{}, domain.ErrQueueFull
	}

	if err := c.ledger.Reserve(ctx, in.ProductID, in.Quantity); err != nil {
		if err == domain.ErrInsufficientStock || err == domain.ErrProductNotFound {
			return JoinResult{}, err
		}
		c.log.Error().Err(err).Str("product_id", in.ProductID).Msg("reserve failed")
		return JoinResult{}, domain.ErrTransientFailure
	}

	now := c.clock.Now()
	entry := &domain.Reservation{
		ID:        newUUID(),
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Contact:   in.Contact,
		CreatedAt: now,
		ExpiresAt: now.Add(c.holdTTL),
	}
	q.entries = append(q.entries, entry)
	c.indexAdd(in.UserID, in.ProductID)

	position := len(q.entries)
	wait := c.waitFor(position)
	c.publish(ctx, domain.TopicQueueJoined, domain.QueueJoinedEvent{
		UserID:        in.UserID,
		ProductID:     in.ProductID,
		ReservationID: entry.ID,
		Position:      position,
		EstimatedWait: wait,
	})

	return JoinResult{
		ReservationID: entry.ID,
		Position:      position,
		EstimatedWait: wait,
		ExpiresAt:     entry.ExpiresAt,
	}, nil
}

// Leave cancels the user's reservation, wherever it sits in the queue,
// and restores the held quantity. Returns false when no matching entry
// exists. A failed release leaves the reservation in place and surfaces
// as a transient error.
func (c *Controller) Leave(ctx context.Context, userID, productID, reservationID string) (bool, error) {
	q := c.lookupQueue(productID)
	if q == nil {
		return false, nil
	}

	q.mu.Lock()
	entry := q.find(userID, reservationID)
	if entry == nil {
		q.mu.Unlock()
		return false, nil
	}

	if err := c.ledger.Release(ctx, productID, entry.Quantity); err != nil {
		q.mu.Unlock()
		c.log.Error().Err(err).Str("product_id", productID).Str("reservation_id", entry.ID).Msg("release failed")
		return false, domain.ErrTransientFailure
	}
	q.remove(userID, entry.ID)
	c.indexRemove(userID, productID)
	c.publish(ctx, domain.TopicQueueLeft, domain.QueueLeftEvent{
		UserID:        userID,
		ProductID:     productID,
		ReservationID: entry.ID,
		Reason:        domain.LeftReasonCancelled,
	})
	c.broadcastPositions(ctx, q)
	c.restoreAvailability(ctx, q)
	empty := len(q.entries) == 0
	q.mu.Unlock()

	if empty {
		c.removeQueueIfEmpty(productID, q)
	}
	return true, nil
}

// PaymentSucceeded resolves the user's reservation as a completed sale.
// The temporary hold is released and the sold quantity is applied as a
// separate permanent deduction, because holds and sales are accounted
// independently by the backing inventory. The sold quantity never
// exceeds what the reservation holds. Returns false when the user has
// no reservation for the product; a ledger failure leaves the
// reservation in place and surfaces as a transient error.
func (c *Controller) PaymentSucceeded(ctx context.Context, userID, productID string, qty int) (bool, error) {
	q := c.lookupQueue(productID)
	if q == nil {
		return false, nil
	}

	q.mu.Lock()
	entry := q.find(userID, "")
	if entry == nil {
		q.mu.Unlock()
		return false, nil
	}
	if qty <= 0 || qty > entry.Quantity {
		qty = entry.Quantity
	}

	if err := c.ledger.Release(ctx, productID, entry.Quantity); err != nil {
		q.mu.Unlock()
		c.log.Error().Err(err).Str("product_id", productID).Str("reservation_id", entry.ID).Msg("release failed")
		return false, domain.ErrTransientFailure
	}
	if err := c.ledger.Commit(ctx, productID, qty); err != nil {
		// Put the hold back so a retried confirmation finds the
		// reservation intact.
		if rerr := c.ledger.Reserve(ctx, productID, entry.Quantity); rerr != nil {
			c.log.Error().Err(rerr).Str("product_id", productID).Str("reservation_id", entry.ID).Msg("restore hold failed")
		}
		q.mu.Unlock()
		c.log.Error().Err(err).Str("product_id", productID).Str("reservation_id", entry.ID).Msg("commit failed")
		return false, domain.ErrTransientFailure
	}
	q.remove(userID, entry.ID)
	c.indexRemove(userID, productID)
	c.publish(ctx, domain.TopicQueueLeft, domain.QueueLeftEvent{
		UserID:        userID,
		ProductID:     productID,
		ReservationID: entry.ID,
		Reason:        domain.LeftReasonPaid,
	})
	c.publish(ctx, domain.TopicPaymentDone, domain.PaymentProcessedEvent{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	})
	c.broadcastPositions(ctx, q)
	c.restoreAvailability(ctx, q)
	empty := len(q.entries) == 0
	q.mu.Unlock()

	if empty {
		c.removeQueueIfEmpty(productID, q)
	}
	return true, nil
}

// Status reports the user's place in the product queue. Position is
// recomputed from the current index on every call.
func (c *Controller) Status(_ context.Context, userID, productID string) domain.QueueStatus {
	q := c.lookupQueue(productID)
	if q == nil {
		return domain.QueueStatus{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.UserID == userID {
			return domain.QueueStatus{
				InQueue:       true,
				Position:      i + 1,
				EstimatedWait: c.waitFor(i + 1),
				ExpiresAt:     e.ExpiresAt,
			}
		}
	}
	return domain.QueueStatus{}
}

// ProductsForUser lists the products the user currently holds a
// reservation for.
func (c *Controller) ProductsForUser(userID string) []string {
	c.idxMu.RLock()
	defer c.idxMu.RUnlock()
	set, ok := c.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// getOrCreateQueue returns the product's queue, creating it lazily on
// first join. Capacity is fixed at creation from the stock visible at
// that instant and never recomputed.
func (c *Controller) getOrCreateQueue(ctx context.Context, productID string) (*productQueue, error) {
	c.mu.RLock()
	q, ok := c.queues[productID]
	c.mu.RUnlock()
	if ok {
		return q, nil
	}

	stock, err := c.ledger.AvailableStock(ctx, productID)
	if err != nil {
		if err == domain.ErrProductNotFound {
			return nil, err
		}
		c.log.Error().Err(err).Str("product_id", productID).Msg("stock lookup failed")
		return nil, domain.ErrTransientFailure
	}

	maxSize := 2 * stock
	if maxSize > c.capacityCap {
		maxSize = c.capacityCap
	}
	if maxSize < 1 {
		maxSize = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[productID]; ok {
		return q, nil
	}
	q = &productQueue{productID: productID, maxSize: maxSize, active: true}
	c.queues[productID] = q
	return q, nil
}

func (c *Controller) lookupQueue(productID string) *productQueue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queues[productID]
}

// removeQueueIfEmpty deletes the queue once its entry list drains.
// Lock order is always controller map lock, then queue lock.
func (c *Controller) removeQueueIfEmpty(productID string, q *productQueue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.queues[productID]
	if !ok || current != q {
		return
	}
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.active = false
		delete(c.queues, productID)
	}
	q.mu.Unlock()
}

// find returns the user's entry without detaching it. reservationID
// narrows the match when non-empty. Caller holds q.mu.
func (q *productQueue) find(userID, reservationID string) *domain.Reservation {
	for _, e := range q.entries {
		if e.UserID != userID {
			continue
		}
		if reservationID != "" && e.ID != reservationID {
			continue
		}
		return e
	}
	return nil
}

// remove takes out the user's entry, preserving the order of the rest.
// reservationID narrows the match when non-empty. Caller holds q.mu.
func (q *productQueue) remove(userID, reservationID string) *domain.Reservation {
	for i, e := range q.entries {
		if e.UserID != userID {
			continue
		}
		if reservationID != "" && e.ID != reservationID {
			continue
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		return e
	}
	return nil
}

// broadcastPositions emits one position update per remaining entry,
// after the removal that triggered it has been applied. Caller holds
// q.mu.
func (c *Controller) broadcastPositions(ctx context.Context, q *productQueue) {
	for i, e := range q.entries {
		c.publish(ctx, domain.TopicPositionUpdated, domain.PositionUpdatedEvent{
			UserID:        e.UserID,
			ProductID:     e.ProductID,
			ReservationID: e.ID,
			NewPosition:   i + 1,
			EstimatedWait: c.waitFor(i + 1),
		})
	}
}

// restoreAvailability flips the product back to purchasable once the
// queue is below capacity again. Caller holds q.mu.
func (c *Controller) restoreAvailability(ctx context.Context, q *productQueue) {
	if len(q.entries) >= q.maxSize {
		return
	}
	if err := c.ledger.SetAvailability(ctx, q.productID, true); err != nil {
		c.log.Error().Err(err).Str("product_id", q.productID).Msg("mark available failed")
	}
}

func (c *Controller) waitFor(position int) time.Duration {
	return time.Duration(position) * c.slotTime
}

func (c *Controller) publish(ctx context.Context, topic string, payload any) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(ctx, topic, payload); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("publish failed")
	}
}

func (c *Controller) indexAdd(userID, productID string) {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	set, ok := c.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		c.byUser[userID] = set
	}
	set[productID] = struct{}{}
}

func (c *Controller) indexRemove(userID, productID string) {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	set, ok := c.byUser[userID]
	if !ok {
		return
	}
	delete(set, productID)
	if len(set) == 0 {
		delete(c.byUser, userID)
	}
}
