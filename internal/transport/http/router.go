package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the reservation core's wire contract: the three buyer-path
// operations, the admin catalogue, and the usual health/metrics endpoints.
func NewRouter(
	reserveSvc Reserver,
	saleSvc SaleFinalizer,
	statusSvc StatusReader,
	catalogSvc ItemCatalog,
	logger *slog.Logger,
	corsOrigins []string,
) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))
	r.Use(func(next http.Handler) http.Handler {
		return CORS(corsOrigins, next)
	})

	r.Get("/health", HealthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/reserve", HandleReserve(reserveSvc))
	r.Get("/status/{item_id}", HandleStatus(statusSvc))
	r.Post("/finalize-sale", HandleFinalizeSale(saleSvc))

	r.Post("/admin/items", HandleAdminCreateItem(catalogSvc))
	r.Get("/admin/items", HandleAdminListItems(catalogSvc))
	r.Get("/admin/reservations", HandleAdminListReservations(catalogSvc))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound)
	})

	return r
}
