package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Hyllekvist/dripdrops/internal/domain"
)

// Reserver is the minimal interface needed to attempt a hold.
type Reserver interface {
	Reserve(ctx context.Context, itemID string) (domain.Hold, error)
}

// HandleReserve returns the handler for POST /reserve. Losing the race is the
// common case under contention and maps to 409, never to a silent success.
func HandleReserve(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reserveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody)
			return
		}
		if req.ItemID == "" {
			writeError(w, http.StatusBadRequest, codeMissingItemID)
			return
		}

		hold, err := svc.Reserve(r.Context(), req.ItemID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrItemConflict):
				writeJSON(w, http.StatusConflict, reserveConflictResponse{
					OK:    false,
					Error: codeAlreadyReservedOrSold,
				})
			case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusNotFound, codeItemNotFound)
			default:
				writeError(w, http.StatusInternalServerError, codeServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, reserveResponse{
			OK:        true,
			ExpiresAt: hold.ExpiresAt,
			HoldToken: hold.Token,
		})
	}
}

type reserveRequest struct {
	ItemID string `json:"item_id"`
}

type reserveResponse struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at"`
	HoldToken string    `json:"hold_token"`
}

type reserveConflictResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
