package glsummary

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/granite-erp/granite-ledger/internal/platform/httpx"
)

// Handler exposes summary queries over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/export.csv", h.ExportCSV)
	r.Post("/{periodID}/rebuild", h.Rebuild)
	r.Get("/{periodID}/verify", h.Verify)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	periodID, _ := strconv.ParseInt(r.URL.Query().Get("periodId"), 10, 64)
	accountID, _ := strconv.ParseInt(r.URL.Query().Get("coaId"), 10, 64)
	if periodID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameter", "periodId is required")
		return
	}
	rows, err := h.service.List(r.Context(), periodID, accountID)
	if err != nil {
		h.logger.Error("list gl summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	periodID, _ := strconv.ParseInt(r.URL.Query().Get("periodId"), 10, 64)
	if periodID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameter", "periodId is required")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), periodID)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	periodID, _ := strconv.ParseInt(r.URL.Query().Get("periodId"), 10, 64)
	if periodID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameter", "periodId is required")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), periodID)
	if err != nil {
		h.logger.Error("trial balance export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
	if err := WriteTrialBalanceCSV(w, tb); err != nil {
		h.logger.Error("write trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Rebuild(r.Context(), periodID); err != nil {
		h.logger.Error("rebuild gl summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	mismatches, err := h.service.Verify(r.Context(), periodID)
	if err != nil {
		h.logger.Error("verify gl summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"consistent": len(mismatches) == 0,
		"mismatches": mismatches,
	})
}
