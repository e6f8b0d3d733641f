package procurement

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReviewStore keeps per-row review results in Redis between the review step
// and QC submission. A nil store keeps nothing.
type ReviewStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReviewStore builds the store; drafts expire after ttl of inactivity.
func NewReviewStore(client *redis.Client, ttl time.Duration) *ReviewStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &ReviewStore{client: client, ttl: ttl}
}

type reviewRecord struct {
	ID              int64         `json:"id,omitempty"`
	SKUID           int64         `json:"product_sku_id"`
	AcceptedQty     *int64        `json:"accepted_quantity,omitempty"`
	RejectedQty     *int64        `json:"rejected_quantity,omitempty"`
	AcceptedBatches []BatchRecord `json:"accepted_batches"`
	RejectedBatches []BatchRecord `json:"rejected_batches,omitempty"`
	AcceptedSerials []string      `json:"accepted_serials"`
	RejectedSerials []string      `json:"rejected_serials,omitempty"`
	Reason          string        `json:"rejection_reason,omitempty"`
}

func reviewKey(grnID int64) string {
	return fmt.Sprintf("grn:%d:reviews", grnID)
}

// Save records row as the latest review of its SKU.
func (s *ReviewStore) Save(ctx context.Context, grnID int64, row QCRow) error {
	if s == nil || s.client == nil {
		return nil
	}
	raw, err := json.Marshal(reviewRecord{
		ID:              row.ID,
		SKUID:           row.SKUID,
		AcceptedQty:     row.AcceptedQty,
		RejectedQty:     row.RejectedQty,
		AcceptedBatches: toBatchRecords(row.AcceptedBatches),
		RejectedBatches: toBatchRecords(row.RejectedBatches),
		AcceptedSerials: row.AcceptedSerials,
		RejectedSerials: row.RejectedSerials,
		Reason:          row.Reason,
	})
	if err != nil {
		return err
	}
	key := reviewKey(grnID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(row.SKUID, 10), raw)
	pipe.Expire(ctx, key, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the saved reviews of grnID ordered by SKU.
func (s *ReviewStore) Load(ctx context.Context, grnID int64) ([]QCRow, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	values, err := s.client.HGetAll(ctx, reviewKey(grnID)).Result()
	if err != nil {
		return nil, err
	}
	rows := make([]QCRow, 0, len(values))
	for field, raw := range values {
		var rec reviewRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("procurement: decode review %s: %w", field, err)
		}
		rows = append(rows, QCRow{
			ID:              rec.ID,
			SKUID:           rec.SKUID,
			AcceptedQty:     rec.AcceptedQty,
			RejectedQty:     rec.RejectedQty,
			AcceptedBatches: fromBatchRecords(rec.AcceptedBatches),
			RejectedBatches: fromBatchRecords(rec.RejectedBatches),
			AcceptedSerials: rec.AcceptedSerials,
			RejectedSerials: rec.RejectedSerials,
			Reason:          rec.Reason,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SKUID < rows[j].SKUID })
	return rows, nil
}

// Clear drops every saved review of grnID.
func (s *ReviewStore) Clear(ctx context.Context, grnID int64) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, reviewKey(grnID)).Err()
}
