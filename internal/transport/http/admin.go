package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Hyllekvist/dripdrops/internal/app"
	"github.com/Hyllekvist/dripdrops/internal/domain"
)

// ItemCatalog is the admin-facing slice of the catalogue.
type ItemCatalog interface {
	CreateItem(ctx context.Context, in app.CreateItemInput) (domain.Item, error)
	ListItems(ctx context.Context, dropID string) ([]domain.Item, error)
	ListReservations(ctx context.Context, itemID string) ([]domain.Reservation, error)
}

// HandleAdminCreateItem returns the handler for POST /admin/items.
func HandleAdminCreateItem(svc ItemCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody)
			return
		}

		item, err := svc.CreateItem(r.Context(), app.CreateItemInput{
			Title:      req.Title,
			Brand:      req.Brand,
			PriceCents: req.PriceCents,
			DropID:     req.DropID,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrTitleRequired):
				writeError(w, http.StatusBadRequest, codeTitleRequired)
			case errors.Is(err, domain.ErrInvalidPrice):
				writeError(w, http.StatusBadRequest, codeInvalidPrice)
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID)
			default:
				writeError(w, http.StatusInternalServerError, codeServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toItemResponse(item, time.Now().UTC()))
	}
}

// HandleAdminListItems returns the handler for GET /admin/items, optionally
// filtered by ?drop_id=.
func HandleAdminListItems(svc ItemCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListItems(r.Context(), r.URL.Query().Get("drop_id"))
		if err != nil {
			if errors.Is(err, domain.ErrInvalidID) {
				writeError(w, http.StatusBadRequest, codeInvalidID)
				return
			}
			writeError(w, http.StatusInternalServerError, codeServerError)
			return
		}

		now := time.Now().UTC()
		out := make([]itemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, toItemResponse(item, now))
		}
		writeJSON(w, http.StatusOK, listItemsResponse{Items: out})
	}
}

// HandleAdminListReservations returns the handler for GET /admin/reservations,
// the append-only hold history for ?item_id=.
func HandleAdminListReservations(svc ItemCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := r.URL.Query().Get("item_id")
		if itemID == "" {
			writeError(w, http.StatusBadRequest, codeMissingItemID)
			return
		}

		reservations, err := svc.ListReservations(r.Context(), itemID)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidID) {
				writeError(w, http.StatusBadRequest, codeInvalidID)
				return
			}
			writeError(w, http.StatusInternalServerError, codeServerError)
			return
		}

		out := make([]reservationResponse, 0, len(reservations))
		for _, res := range reservations {
			out = append(out, reservationResponse{
				ID:        res.ID,
				ItemID:    res.ItemID,
				ExpiresAt: res.ExpiresAt,
				Outcome:   string(res.Outcome),
				CreatedAt: res.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, listReservationsResponse{Reservations: out})
	}
}

type createItemRequest struct {
	Title      string `json:"title"`
	Brand      string `json:"brand,omitempty"`
	PriceCents int64  `json:"price_cents"`
	DropID     string `json:"drop_id,omitempty"`
}

type itemResponse struct {
	ID         string    `json:"id"`
	DropID     string    `json:"drop_id,omitempty"`
	Title      string    `json:"title"`
	Brand      string    `json:"brand,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type listItemsResponse struct {
	Items []itemResponse `json:"items"`
}

type reservationResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

type listReservationsResponse struct {
	Reservations []reservationResponse `json:"reservations"`
}

func toItemResponse(item domain.Item, now time.Time) itemResponse {
	return itemResponse{
		ID:         item.ID,
		DropID:     item.DropID,
		Title:      item.Title,
		Brand:      item.Brand,
		PriceCents: item.PriceCents,
		Status:     string(domain.StatusOf(item.Sold, item.ReservedUntil, now)),
		CreatedAt:  item.CreatedAt,
	}
}
