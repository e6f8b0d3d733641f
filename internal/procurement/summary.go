package procurement

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// summaryLoader collapses concurrent receiving-summary reads of one PO/GRN pair.
type summaryLoader struct {
	repo  RepositoryPort
	group singleflight.Group
}

func (l *summaryLoader) load(ctx context.Context, poID, grnID int64) (ReceivingSummary, error) {
	key := fmt.Sprintf("%d:%d", poID, grnID)
	// The flight outlives any single caller; each caller still honours its own ctx below.
	flightCtx := context.WithoutCancel(ctx)
	resultChan := l.group.DoChan(key, func() (interface{}, error) {
		lines, err := l.repo.ListReceivingLines(flightCtx, poID, grnID)
		if err != nil {
			return nil, err
		}
		return ReceivingSummary{POID: poID, GRNID: grnID, Lines: lines}, nil
	})
	select {
	case <-ctx.Done():
		return ReceivingSummary{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return ReceivingSummary{}, res.Err
		}
		summary := res.Val.(ReceivingSummary)
		summary.Lines = append([]SummaryLine(nil), summary.Lines...)
		return summary, nil
	}
}
