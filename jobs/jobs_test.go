package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/receiving/internal/jobs"
	"github.com/odyssey-erp/receiving/internal/procurement"
)

type fakePoster struct {
	result procurement.StockPostResult
	err    error
	calls  []int64
}

func (p *fakePoster) PostStock(ctx context.Context, grnID int64) (procurement.StockPostResult, error) {
	p.calls = append(p.calls, grnID)
	return p.result, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStockPostJobHandle(t *testing.T) {
	poster := &fakePoster{result: procurement.StockPostResult{Posted: 3, Quarantined: 1}}
	job := NewStockPostJob(poster, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewGRNStockPostTask(12)
	require.NoError(t, err)
	require.Equal(t, TaskGRNStockPost, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{12}, poster.calls)
}

func TestStockPostJobRetryPolicy(t *testing.T) {
	task, err := NewGRNStockPostTask(12)
	require.NoError(t, err)

	poster := &fakePoster{err: procurement.ErrNotCompleted}
	job := NewStockPostJob(poster, discardLogger(), nil)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, procurement.ErrNotCompleted)

	poster.err = errors.New("inventory unavailable")
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskGRNStockPost, []byte(`{"grn_id":0}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var unconfigured *StockPostJob
	require.Error(t, unconfigured.Handle(context.Background(), task))
}

type fakeCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (c *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.olderThan = olderThan
	return c.removed, nil
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{removed: 4}
	job := &IdempotencyCleanupJob{Store: cleaner, TTL: 48 * time.Hour, Logger: discardLogger()}

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 48*time.Hour, cleaner.olderThan)

	task, err := NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, cleaner.olderThan)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "id", Queue: QueueDefault}, nil
}

func (e *fakeEnqueuer) Close() error { return nil }

func TestClientEnqueueGRNStockPost(t *testing.T) {
	fake := &fakeEnqueuer{}
	client := &Client{client: fake}

	require.NoError(t, client.EnqueueGRNStockPost(context.Background(), 5))
	require.Len(t, fake.tasks, 1)
	var payload GRNStockPostPayload
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &payload))
	require.Equal(t, int64(5), payload.GRNID)

	fake.err = asynq.ErrTaskIDConflict
	require.NoError(t, client.EnqueueGRNStockPost(context.Background(), 5), "an already queued post is not an error")

	fake.err = errors.New("redis down")
	require.ErrorContains(t, client.EnqueueGRNStockPost(context.Background(), 5), "redis down")
	require.NoError(t, client.Close())
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (i fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return i.info, i.err
}

func TestJobsHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		body      string
	}{
		{name: "no inspector", status: http.StatusOK, body: `{"queue":"default","pending":0,"active":0,"retry":0,"archived":0,"paused":false}`},
		{name: "pending", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 2}}, status: http.StatusOK, body: `{"queue":"default","pending":3,"active":0,"retry":2,"archived":0,"paused":false}`},
		{name: "redis error", inspector: fakeInspector{err: errors.New("down")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, discardLogger()).MountRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				require.JSONEq(t, tc.body, rec.Body.String())
			}
		})
	}
}
