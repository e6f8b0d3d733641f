package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/receiving/internal/jobs"
	"github.com/odyssey-erp/receiving/internal/procurement"
)

// StockPoster posts a completed GRN to inventory.
type StockPoster interface {
	PostStock(ctx context.Context, grnID int64) (procurement.StockPostResult, error)
}

// StockPostJob handles TaskGRNStockPost.
type StockPostJob struct {
	Poster  StockPoster
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockPostJob initialises the stock posting handler.
func NewStockPostJob(poster StockPoster, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockPostJob {
	return &StockPostJob{Poster: poster, Logger: logger, Metrics: metrics}
}

// Handle posts the GRN. GRNs that are missing or not completed are never
// retried; inventory errors are.
func (j *StockPostJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Poster == nil {
		return errors.New("stock post: handler not configured")
	}
	var payload GRNStockPostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.GRNID <= 0 {
		return fmt.Errorf("stock post: invalid payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskGRNStockPost)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("grn_id", payload.GRNID))
	result, err := j.Poster.PostStock(ctx, payload.GRNID)
	if err != nil {
		if errors.Is(err, procurement.ErrNotCompleted) || errors.Is(err, procurement.ErrNotFound) {
			logger.Warn("stock post skipped", slog.Any("error", err))
			return fmt.Errorf("stock post: %w: %w", err, asynq.SkipRetry)
		}
		logger.Error("stock post failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddPosted("accepted", result.Posted)
	j.Metrics.AddPosted("quarantine", result.Quarantined)
	logger.Info("stock posted",
		slog.Int("posted", result.Posted),
		slog.Int("quarantined", result.Quarantined),
		slog.Int("skipped", result.Skipped),
	)
	return nil
}

func (j *StockPostJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
