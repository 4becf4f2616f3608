package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Hyllekvist/dripdrops/internal/app"
	"github.com/Hyllekvist/dripdrops/internal/domain"
)

// StatusReader derives the public tri-state of an item without writing.
type StatusReader interface {
	Status(ctx context.Context, itemID string) (app.StatusInfo, error)
}

// HandleStatus returns the handler for GET /status/{item_id}.
func HandleStatus(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "item_id")

		info, err := svc.Status(r.Context(), itemID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusNotFound, codeItemNotFound)
			default:
				writeError(w, http.StatusInternalServerError, codeServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Status:        string(info.Status),
			ReservedUntil: info.ReservedUntil,
		})
	}
}

type statusResponse struct {
	Status        string     `json:"status"`
	ReservedUntil *time.Time `json:"reserved_until"`
}
