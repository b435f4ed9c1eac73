package domain

import "time"

// Reservation is a temporary, time-bounded claim on product stock held by
// one user while they complete checkout. It is immutable after creation;
// it leaves the queue through exactly one of payment, cancellation or
// expiry.
type Reservation struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	// Contact is opaque caller metadata (email, phone) used to resume
	// checkout once the reservation comes up.
	Contact   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// QueueStatus is a read-only projection of a user's place in a product
// queue. Position is 1-based and recomputed on every read.
type QueueStatus struct {
	InQueue       bool
	Position      int
	EstimatedWait time.Duration
	ExpiresAt     time.Time
}
