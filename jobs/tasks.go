package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGRNStockPost posts the units of a completed GRN to inventory.
	TaskGRNStockPost = "grn:stock_post"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// GRNStockPostPayload identifies the GRN to post.
type GRNStockPostPayload struct {
	GRNID int64 `json:"grn_id"`
}

// NewGRNStockPostTask constructs an Asynq task. The task id is derived from
// the GRN so a duplicate enqueue is rejected while the first is retained.
func NewGRNStockPostTask(grnID int64) (*asynq.Task, error) {
	body, err := json.Marshal(GRNStockPostPayload{GRNID: grnID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGRNStockPost, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(fmt.Sprintf("grn-stock-post-%d", grnID)),
		asynq.MaxRetry(10),
		asynq.Retention(24*time.Hour),
	), nil
}

// IdempotencyCleanupPayload carries scheduling metadata.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
