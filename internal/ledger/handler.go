package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/granite-erp/granite-ledger/internal/coa"
	"github.com/granite-erp/granite-ledger/internal/periods"
	"github.com/granite-erp/granite-ledger/internal/platform/db"
	"github.com/granite-erp/granite-ledger/internal/platform/httpx"
)

// Handler exposes posting and voiding over HTTP.
type Handler struct {
	logger   *slog.Logger
	builder  *Builder
	service  *Service
	repo     *Repository
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, builder *Builder, service *Service, repo *Repository) *Handler {
	return &Handler{logger: logger, builder: builder, service: service, repo: repo, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/void", h.Void)
}

type postLineRequest struct {
	AccountID   int64  `json:"accountId" validate:"required"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type postRequest struct {
	Kind            string            `json:"kind" validate:"required"`
	ReferenceNumber string            `json:"referenceNumber" validate:"required"`
	ReferenceType   string            `json:"referenceType" validate:"required"`
	SourceID        string            `json:"sourceId" validate:"required,uuid"`
	Date            time.Time         `json:"date" validate:"required"`
	Currency        string            `json:"currency"`
	ExchangeRate    string            `json:"exchangeRate"`
	Description     string            `json:"description"`
	ActorID         int64             `json:"actorId"`
	Amount          string            `json:"amount"`
	TaxAmount       string            `json:"taxAmount"`
	Lines           []postLineRequest `json:"lines"`
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	event, err := req.toEvent()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	draft, err := h.builder.BuildEntry(r.Context(), event)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	entry, err := h.service.Post(r.Context(), draft)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":       entry.ID,
		"number":   entry.Number,
		"status":   entry.Status,
		"periodId": entry.PeriodID,
	})
}

func (req postRequest) toEvent() (BusinessEvent, error) {
	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		return BusinessEvent{}, err
	}
	event := BusinessEvent{
		Kind:            EventKind(req.Kind),
		ReferenceNumber: req.ReferenceNumber,
		ReferenceType:   req.ReferenceType,
		SourceID:        sourceID,
		Date:            req.Date,
		Currency:        req.Currency,
		Description:     req.Description,
		ActorID:         req.ActorID,
	}
	if event.Amount, err = parseAmount(req.Amount); err != nil {
		return BusinessEvent{}, err
	}
	if event.TaxAmount, err = parseAmount(req.TaxAmount); err != nil {
		return BusinessEvent{}, err
	}
	if event.ExchangeRate, err = parseAmount(req.ExchangeRate); err != nil {
		return BusinessEvent{}, err
	}
	for _, line := range req.Lines {
		dl := DraftLine{
			AccountID:   line.AccountID,
			Description: line.Description,
			Reference:   line.Reference,
		}
		if dl.Debit, err = parseAmount(line.Debit); err != nil {
			return BusinessEvent{}, err
		}
		if dl.Credit, err = parseAmount(line.Credit); err != nil {
			return BusinessEvent{}, err
		}
		event.ManualLines = append(event.ManualLines, dl)
	}
	return event, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req struct {
		ActorID int64  `json:"actorId"`
		Reason  string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	entry, err := h.service.Void(r.Context(), VoidInput{LedgerID: id, ActorID: req.ActorID, Reason: req.Reason})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	entries, pagination, err := h.repo.List(r.Context(), page, perPage)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": pagination,
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, periods.ErrNotFound), errors.Is(err, coa.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnbalancedEntry), errors.Is(err, ErrTooFewLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced Entry", err.Error())
	case errors.Is(err, ErrMappingNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Mapping Missing", err.Error())
	case errors.Is(err, periods.ErrNoMatchingPeriod):
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Matching Period", err.Error())
	case errors.Is(err, periods.ErrPeriodClosed):
		httpx.Problem(w, http.StatusConflict, "Period Closed", err.Error())
	case errors.Is(err, coa.ErrNonPostableAccount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Non Postable Account", err.Error())
	case errors.Is(err, ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Source Already Posted", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	case errors.Is(err, db.ErrPersistence):
		httpx.Problem(w, http.StatusInternalServerError, "Persistence Failure", "")
	default:
		h.logger.Error("ledger handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
