package grn

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func untrackedRow(t *testing.T, received int64) *LineItem {
	t.Helper()
	li, err := NewLineItem(SKUContext{SKUID: 3, SKUCode: "SKU-U", Tracking: TrackingUntracked})
	require.NoError(t, err)
	li.ReceivedQty = received
	return li
}

func TestParseReceivedQuantity(t *testing.T) {
	qty, err := ParseReceivedQuantity("SKU-1", 12)
	require.NoError(t, err)
	require.Equal(t, int64(12), qty)

	for _, v := range []float64{0, -3, 2.5, 1e19, math.Exp2(63), math.Inf(1), math.NaN()} {
		_, err := ParseReceivedQuantity("SKU-1", v)
		require.ErrorIs(t, err, ErrInvalidQuantity, "value %v", v)
	}
	require.Equal(t, int64(4), FloorQuantity(4.9))
	require.Equal(t, int64(math.MaxInt64), FloorQuantity(1e19))
	require.Equal(t, int64(math.MinInt64), FloorQuantity(-1e19))
	require.Equal(t, int64(math.MaxInt64), FloorQuantity(math.Inf(1)))

	qty, err = ParseReceivedQuantity("SKU-1", math.Exp2(62))
	require.NoError(t, err)
	require.Equal(t, int64(1)<<62, qty)
}

func TestUntrackedDefaultsToFullyAccepted(t *testing.T) {
	li := untrackedRow(t, 50)

	require.NoError(t, CheckReceiving(li))
	require.True(t, IsQcComplete(li))
	require.Equal(t, int64(50), li.Accepted())
	require.Equal(t, int64(0), li.Rejected())
	require.True(t, li.Confirmed())
}

func TestUntrackedLoweredAcceptanceNeedsReason(t *testing.T) {
	li := untrackedRow(t, 50)

	require.ErrorIs(t, ApplyUntrackedQC(li, 51), ErrOverAcceptance)
	require.ErrorIs(t, ApplyUntrackedQC(li, -1), ErrInvalidQuantity)

	require.NoError(t, ConfirmReview(li, UntrackedSplit{Accepted: 45}, ""))
	require.Equal(t, int64(5), li.Rejected())
	require.ErrorIs(t, CheckQC(li), ErrInvalidReason)

	require.NoError(t, ConfirmReview(li, UntrackedSplit{Accepted: 45}, "torn packaging"))
	require.NoError(t, CheckQC(li))
}

func TestRejectionReasonLengthBoundary(t *testing.T) {
	li := batchRow(t, 30, Batch{Code: "B1", Quantity: 20}, Batch{Code: "B2", Quantity: 10})

	require.NoError(t, ConfirmReview(li, BatchSplit{Accepted: []int64{20, 10}}, ""))
	require.NoError(t, CheckQC(li), "zero rejections never need a reason")

	require.NoError(t, ConfirmReview(li, BatchSplit{Accepted: []int64{15, 10}}, strings.Repeat("x", 9)))
	require.ErrorIs(t, CheckQC(li), ErrInvalidReason)

	require.NoError(t, ConfirmReview(li, BatchSplit{Accepted: []int64{15, 10}}, "   "+strings.Repeat("x", 9)+"   "))
	require.ErrorIs(t, CheckQC(li), ErrInvalidReason)

	require.NoError(t, ConfirmReview(li, BatchSplit{Accepted: []int64{15, 10}}, strings.Repeat("x", 10)))
	require.NoError(t, CheckQC(li))
}

func TestBatchAndSerialRowsRequireReview(t *testing.T) {
	b := batchRow(t, 30, Batch{Code: "B1", Quantity: 30})
	require.ErrorIs(t, CheckQC(b), ErrQcIncomplete)
	require.False(t, b.Confirmed())

	require.NoError(t, ApplyQC(b, BatchSplit{Accepted: []int64{30}}))
	require.ErrorIs(t, CheckQC(b), ErrQcIncomplete, "applying without the review step does not confirm")

	s := serialRow(t, 2, "S1", "S2")
	require.ErrorIs(t, CheckQC(s), ErrQcIncomplete)
	require.NoError(t, ConfirmReview(s, SerialSplit{Accepted: []string{"S1", "S2"}}, ""))
	require.NoError(t, CheckQC(s))
}

func TestConfirmReviewLeavesRowUntouchedOnFailure(t *testing.T) {
	li := batchRow(t, 30, Batch{Code: "B1", Quantity: 20}, Batch{Code: "B2", Quantity: 10})

	err := ConfirmReview(li, BatchSplit{Accepted: []int64{25, 10}}, "damaged in transit")
	require.ErrorIs(t, err, ErrOverAcceptance)
	require.Nil(t, li.QC)
	require.Equal(t, ReviewNotReviewed, li.Review)

	err = ConfirmReview(li, SerialSplit{Accepted: []string{"S1"}}, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCheckReceivingDispatchesByMode(t *testing.T) {
	require.ErrorIs(t, CheckReceiving(untrackedRow(t, 0)), ErrInvalidQuantity)
	require.ErrorIs(t, CheckReceiving(batchRow(t, 5, Batch{Code: "B1", Quantity: 4})), ErrQuantityMismatch)
	require.ErrorIs(t, CheckReceiving(serialRow(t, 2, "S1")), ErrCountMismatch)
	require.True(t, IsReceivingValid(serialRow(t, 1, "S1")))
}

func TestDefaultSplitPerMode(t *testing.T) {
	split, err := DefaultSplit(untrackedRow(t, 8))
	require.NoError(t, err)
	require.Equal(t, UntrackedSplit{Accepted: 8}, split)

	split, err = DefaultSplit(batchRow(t, 5, Batch{Code: "B1", Quantity: 5}))
	require.NoError(t, err)
	require.Equal(t, BatchSplit{Accepted: []int64{5}}, split)

	split, err = DefaultSplit(serialRow(t, 1, "S1"))
	require.NoError(t, err)
	require.Equal(t, SerialSplit{Accepted: []string{"S1"}}, split)
}
