package domain

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyQueued     = errors.New("user already queued for product")
	ErrQueueFull         = errors.New("queue is full")
	// ErrTransientFailure hides collaborator failures from callers; the
	// underlying cause is logged at the operation boundary.
	ErrTransientFailure = errors.New("temporary failure, try again")
)
