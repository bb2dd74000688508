package jobs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ===== STUB ENQUEUER =====

type stubEnqueuer struct {
	integrity []IntegrityPayload
	rebuilds  []RebuildPayload
	err       error
}

func (s *stubEnqueuer) EnqueueIntegrityCheck(_ context.Context, payload IntegrityPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.integrity = append(s.integrity, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueSummaryRebuild(_ context.Context, payload RebuildPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.rebuilds = append(s.rebuilds, payload)
	return &asynq.TaskInfo{ID: "task-2", Queue: QueueDefault}, nil
}

func newTestRouter(enqueuer Enqueuer) chi.Router {
	r := chi.NewRouter()
	NewHandler(nil, enqueuer, testLogger()).MountRoutes(r)
	return r
}

// ===== TESTS =====

func TestEnqueueRebuild(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/gl-rebuild", strings.NewReader(`{"periodId":4}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "task-2")
	require.Len(t, stub.rebuilds, 1)
	assert.Equal(t, int64(4), stub.rebuilds[0].PeriodID)
}

func TestEnqueueRebuildRequiresPeriod(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/gl-rebuild", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.rebuilds)
}

// An empty body targets every open period, same as the nightly cron.
func TestEnqueueIntegrityAllPeriods(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/integrity", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, stub.integrity, 1)
	assert.Equal(t, int64(0), stub.integrity[0].PeriodID)
}

func TestEnqueueIntegrityOnePeriod(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/integrity", strings.NewReader(`{"periodId":7}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, stub.integrity, 1)
	assert.Equal(t, int64(7), stub.integrity[0].PeriodID)
}

func TestEnqueueWithoutClient(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/gl-rebuild", strings.NewReader(`{"periodId":4}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
