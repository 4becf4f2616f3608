package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Hyllekvist/dripdrops/internal/app"
	"github.com/Hyllekvist/dripdrops/internal/domain"
)

// SaleFinalizer is the minimal interface needed to finalize a sale.
type SaleFinalizer interface {
	FinalizeSale(ctx context.Context, in app.FinalizeSaleInput) error
}

// HandleFinalizeSale returns the handler for POST /finalize-sale, called by
// the payment collaborator once payment clears. Retrying against an already
// sold item reports already_sold, so idempotent callers can treat it as done.
func HandleFinalizeSale(svc SaleFinalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalizeSaleRequest
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

		err := svc.FinalizeSale(r.Context(), app.FinalizeSaleInput{
			ItemID:    req.ItemID,
			HoldToken: req.HoldToken,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrHoldExpired):
				writeError(w, http.StatusConflict, codeHoldExpired)
			case errors.Is(err, domain.ErrAlreadySold):
				writeError(w, http.StatusConflict, codeAlreadySold)
			case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusNotFound, codeItemNotFound)
			default:
				writeError(w, http.StatusInternalServerError, codeServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, finalizeSaleResponse{OK: true})
	}
}

type finalizeSaleRequest struct {
	ItemID    string `json:"item_id"`
	HoldToken string `json:"hold_token,omitempty"`
}

type finalizeSaleResponse struct {
	OK bool `json:"ok"`
}
