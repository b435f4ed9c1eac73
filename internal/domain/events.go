package domain

import "time"

// Event topics published by the queue controller. Consumers subscribe by
// exact topic or with the wildcard.
const (
	TopicQueueJoined     = "queue.joined"
	TopicQueueLeft       = "queue.left"
	TopicQueueTimeout    = "queue.timeout"
	TopicPositionUpdated = "queue.position.updated"
	TopicPaymentDone     = "payment.processed"
)

// Reasons carried by queue.left events.
const (
	LeftReasonCancelled = "cancelled"
	LeftReasonPaid      = "paid"
)

type QueueJoinedEvent struct {
	UserID        string        `json:"user_id"`
	ProductID     string        `json:"product_id"`
	ReservationID string        `json:"reservation_id"`
	Position      int           `json:"position"`
	EstimatedWait time.Duration `json:"estimated_wait"`
}

type QueueLeftEvent struct {
	UserID        string `json:"user_id"`
	ProductID     string `json:"product_id"`
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason"`
}

type QueueTimeoutEvent struct {
	UserID        string `json:"user_id"`
	ProductID     string `json:"product_id"`
	ReservationID string `json:"reservation_id"`
}

type PositionUpdatedEvent struct {
	UserID        string        `json:"user_id"`
	ProductID     string        `json:"product_id"`
	ReservationID string        `json:"reservation_id"`
	NewPosition   int           `json:"new_position"`
	EstimatedWait time.Duration `json:"estimated_wait"`
}

type PaymentProcessedEvent struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
