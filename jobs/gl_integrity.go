package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/periods"
)

// IntegrityChecker compares stored GL summaries against a fresh aggregation
// of posted ledger lines and reports any divergence. It is scheduled nightly
// and can also be enqueued on demand after a manual correction.
type IntegrityChecker struct {
	periods   *periods.Service
	summaries *glsummary.Service
	logger    *slog.Logger
}

// NewIntegrityChecker constructs the checker.
func NewIntegrityChecker(periods *periods.Service, summaries *glsummary.Service, logger *slog.Logger) *IntegrityChecker {
	return &IntegrityChecker{periods: periods, summaries: summaries, logger: logger}
}

// HandleIntegrityTask processes TaskLedgerIntegrity tasks.
func (c *IntegrityChecker) HandleIntegrityTask(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	ids, err := c.targetPeriods(ctx, payload.PeriodID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		mismatches, err := c.summaries.Verify(ctx, id)
		if err != nil {
			return err
		}
		if len(mismatches) == 0 {
			c.logger.Info("gl integrity ok", slog.Int64("period_id", id))
			continue
		}
		for _, m := range mismatches {
			c.logger.Error("gl integrity mismatch",
				slog.Int64("period_id", id),
				slog.String("detail", m))
		}
	}
	return nil
}

// HandleRebuildTask processes TaskSummaryRebuild tasks.
func (c *IntegrityChecker) HandleRebuildTask(ctx context.Context, t *asynq.Task) error {
	var payload RebuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PeriodID == 0 {
		return asynq.SkipRetry
	}
	if err := c.summaries.Rebuild(ctx, payload.PeriodID); err != nil {
		return err
	}
	c.logger.Info("gl summaries rebuilt", slog.Int64("period_id", payload.PeriodID))
	return nil
}

func (c *IntegrityChecker) targetPeriods(ctx context.Context, periodID int64) ([]int64, error) {
	if periodID != 0 {
		return []int64{periodID}, nil
	}
	all, err := c.periods.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, p := range all {
		if !p.IsClosed {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}
