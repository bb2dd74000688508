package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/granite-erp/granite-ledger/internal/platform/httpx"
)

// Handler exposes stock snapshot reads over HTTP.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	periodID, err := strconv.ParseInt(r.URL.Query().Get("periodId"), 10, 64)
	if err != nil || periodID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "periodId query parameter required")
		return
	}
	balances, err := h.repo.ListByPeriod(r.Context(), periodID)
	if err != nil {
		h.logger.Error("stock list", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": balances})
}
