package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/granite-erp/granite-ledger/internal/coa"
	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/ledger"
	"github.com/granite-erp/granite-ledger/internal/periods"
	"github.com/granite-erp/granite-ledger/internal/stock"
	"github.com/granite-erp/granite-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AccountsHandler *coa.Handler
	LedgerHandler   *ledger.Handler
	PeriodsHandler  *periods.Handler
	SummaryHandler  *glsummary.Handler
	StockHandler    *stock.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router exposing the ledger core.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/accounts", params.AccountsHandler.MountRoutes)
	r.Route("/ledgers", params.LedgerHandler.MountRoutes)
	r.Route("/periods", params.PeriodsHandler.MountRoutes)
	r.Route("/gl-summary", params.SummaryHandler.MountRoutes)
	r.Route("/stock-balances", params.StockHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
