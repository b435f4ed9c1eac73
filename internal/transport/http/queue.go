package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fullstack-daddy/shopverse/internal/domain"
	"github.com/fullstack-daddy/shopverse/internal/queue"
)

// QueueService is the slice of the admission controller the queue
// endpoints need.
type QueueService interface {
	ShouldQueue(ctx context.Context, productID string) (bool, error)
	Join(ctx context.Context, in queue.JoinInput) (queue.JoinResult, error)
	Leave(ctx context.Context, userID, productID, reservationID string) (bool, error)
	Status(ctx context.Context, userID, productID string) domain.QueueStatus
	ProductsForUser(userID string) []string
}

// HandleQueueCheck reports whether a product's purchases must queue.
func HandleQueueCheck(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		productID := r.URL.Query().Get("product_id")
		if productID == "" {
			writeError(w, http.StatusBadRequest, codeMissingField, "product_id is required")
			return
		}

		required, err := svc.ShouldQueue(r.Context(), productID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"queue_required": required})
	}
}

// HandleJoinQueue puts a user into a product's purchase queue.
func HandleJoinQueue(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req joinRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.UserID == "" || req.ProductID == "" {
			writeError(w, http.StatusBadRequest, codeMissingField, "user_id and product_id are required")
			return
		}
		if req.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuantity, domain.ErrInvalidQuantity.Error())
			return
		}

		result, err := svc.Join(r.Context(), queue.JoinInput{
			UserID:    req.UserID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Contact:   req.Contact,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, joinResponse{
			ReservationID: result.ReservationID,
			Position:      result.Position,
			EstimatedWait: result.EstimatedWait.String(),
			ExpiresAt:     result.ExpiresAt,
		})
	}
}

// HandleLeaveQueue cancels a user's reservation.
func HandleLeaveQueue(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req leaveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.UserID == "" || req.ProductID == "" {
			writeError(w, http.StatusBadRequest, codeMissingField, "user_id and product_id are required")
			return
		}

		removed, err := svc.Leave(r.Context(), req.UserID, req.ProductID, req.ReservationID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	}
}

// HandleQueueStatus reports a user's position in a product queue.
func HandleQueueStatus(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		userID := r.URL.Query().Get("user_id")
		productID := r.URL.Query().Get("product_id")
		if userID == "" || productID == "" {
			writeError(w, http.StatusBadRequest, codeMissingField, "user_id and product_id are required")
			return
		}

		status := svc.Status(r.Context(), userID, productID)
		resp := statusResponse{InQueue: status.InQueue}
		if status.InQueue {
			resp.Position = status.Position
			resp.EstimatedWait = status.EstimatedWait.String()
			resp.ExpiresAt = &status.ExpiresAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleUserReservations lists the products a user is queued for.
func HandleUserReservations(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeError(w, http.StatusBadRequest, codeMissingField, "user_id is required")
			return
		}

		products := svc.ProductsForUser(userID)
		if products == nil {
			products = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"product_ids": products})
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, codeProductNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
	case errors.Is(err, domain.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, codeAlreadyQueued, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusConflict, codeQueueFull, err.Error())
	case errors.Is(err, domain.ErrTransientFailure):
		writeError(w, http.StatusServiceUnavailable, codeTemporarilyDown, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type joinRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Contact   string `json:"contact"`
}

type joinResponse struct {
	ReservationID string    `json:"reservation_id"`
	Position      int       `json:"position"`
	EstimatedWait string    `json:"estimated_wait"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type leaveRequest struct {
	UserID        string `json:"user_id"`
	ProductID     string `json:"product_id"`
	ReservationID string `json:"reservation_id"`
}

type statusResponse struct {
	InQueue       bool       `json:"in_queue"`
	Position      int        `json:"position,omitempty"`
	EstimatedWait string     `json:"estimated_wait,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
