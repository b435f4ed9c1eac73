package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fullstack-daddy/shopverse/internal/domain"
)

// PaymentConfirmer resolves a queued reservation as a completed sale.
type PaymentConfirmer interface {
	PaymentSucceeded(ctx context.Context, userID, productID string, qty int) (bool, error)
}

// HandlePaymentConfirm receives the payment gateway's success signal
// and commits the matching reservation.
func HandlePaymentConfirm(svc PaymentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req paymentConfirmRequest
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
		if req.Quantity < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuantity, domain.ErrInvalidQuantity.Error())
			return
		}

		committed, err := svc.PaymentSucceeded(r.Context(), req.UserID, req.ProductID, req.Quantity)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"committed": committed})
	}
}

type paymentConfirmRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
