package grn

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testCatalog() Catalog {
	return NewCatalog([]SKUContext{
		{SKUID: 1, SKUCode: "BOLT", Tracking: TrackingUntracked, RemainingQty: 100, OrderedQty: 100, UnitPrice: decimal.RequireFromString("2.50")},
		{SKUID: 2, SKUCode: "RESIN", Tracking: TrackingBatch, RemainingQty: 30, OrderedQty: 40, UnitPrice: decimal.NewFromInt(10)},
		{SKUID: 3, SKUCode: "PUMP", Tracking: TrackingSerial, RemainingQty: 3, OrderedQty: 3, UnitPrice: decimal.NewFromInt(400)},
	})
}

func allowAll() Verifier {
	return VerifierFunc(func(ctx context.Context, skuID int64, serial string) error { return nil })
}

func receivedNote(t *testing.T) *Session {
	t.Helper()
	s := NewSession(&Note{ID: 1, POID: 10, Status: StatusCreated}, testCatalog(), allowAll())
	err := s.SaveLineItems(context.Background(), []LineDraft{
		{SKUID: 1, ReceivedQty: 50},
		{SKUID: 2, ReceivedQty: 30, Batches: []Batch{{Code: "B1", Quantity: 20}, {Code: "B2", Quantity: 10}}},
		{SKUID: 3, ReceivedQty: 3, Serials: []string{"S1", "S2", "S3"}},
	})
	require.NoError(t, err)
	return s
}

func TestCanCreateNewGrn(t *testing.T) {
	require.True(t, CanCreateNewGrn(nil))
	require.True(t, CanCreateNewGrn([]Status{StatusCompleted, StatusCancelled}))
	require.False(t, CanCreateNewGrn([]Status{StatusCompleted, StatusQCPending}))
	require.ErrorIs(t, CheckCreate([]Status{StatusCreated}), ErrIllegalTransition)
}

func TestInitiateQCWithoutLineItemsFails(t *testing.T) {
	n := &Note{Status: StatusCreated}
	require.ErrorIs(t, n.InitiateQC(), ErrIllegalTransition)
	require.Equal(t, StatusCreated, n.Status)
}

func TestFullLifecycle(t *testing.T) {
	s := receivedNote(t)
	require.Equal(t, int64(83), s.Note.Totals.ReceivedQty)
	require.True(t, decimal.RequireFromString("1625").Equal(s.Note.Totals.ReceivedAmount))

	require.NoError(t, s.InitiateQC())
	require.Equal(t, StatusQCPending, s.Note.Status)

	err := s.SubmitQC()
	require.ErrorIs(t, err, ErrQcIncomplete)
	e, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, []string{"RESIN", "PUMP"}, e.SKUs)
	require.ErrorIs(t, s.Complete(), ErrQcIncomplete)

	require.NoError(t, s.Review(2, BatchSplit{Accepted: []int64{15, 10}}, ""))
	require.NoError(t, s.Review(3, SerialSplit{Accepted: []string{"S1", "S3"}}, "cracked housing on unit"))

	err = s.SubmitQC()
	require.ErrorIs(t, err, ErrInvalidReason)
	e, _ = AsError(err)
	require.Equal(t, []string{"RESIN"}, e.SKUs)

	require.NoError(t, s.Review(2, BatchSplit{Accepted: []int64{15, 10}}, "moisture damage on B1"))
	require.ErrorIs(t, s.Complete(), ErrIllegalTransition, "completion needs a submitted QC payload")
	require.NoError(t, s.SubmitQC())
	require.NoError(t, s.Complete())

	require.Equal(t, StatusCompleted, s.Note.Status)
	totals := s.Note.Totals
	require.Equal(t, int64(83), totals.ReceivedQty)
	require.Equal(t, int64(77), totals.AcceptedQty)
	require.Equal(t, int64(6), totals.RejectedQty)
	require.True(t, decimal.NewFromInt(450).Equal(totals.RejectedAmount))
	for _, li := range s.Note.Lines {
		require.Equal(t, li.ReceivedQty, li.Accepted()+li.Rejected())
	}

	require.ErrorIs(t, s.SubmitQC(), ErrIllegalTransition)
	require.ErrorIs(t, s.Cancel(), ErrIllegalTransition)
	require.ErrorIs(t, s.AddBatch(2, Batch{Code: "B3", Quantity: 1}), ErrIllegalTransition)
}

func TestScenarioBBatchRejection(t *testing.T) {
	s := receivedNote(t)
	require.NoError(t, s.InitiateQC())
	require.NoError(t, s.Review(2, BatchSplit{Accepted: []int64{15, 10}}, ""))

	li, _ := s.Note.LineBySKU(2)
	require.Equal(t, int64(25), li.Accepted())
	require.Equal(t, int64(5), li.Rejected())
	require.Equal(t, []Batch{{Code: "B1", Quantity: 5}}, li.Tracking.(*Batched).Rejected)
	require.ErrorIs(t, CheckQC(li), ErrInvalidReason)
}

func TestScenarioCSerialDeselect(t *testing.T) {
	s := receivedNote(t)
	require.NoError(t, s.InitiateQC())
	require.NoError(t, s.Review(3, SerialSplit{Accepted: []string{"S1", "S3"}}, "scratched casing"))

	li, _ := s.Note.LineBySKU(3)
	require.Equal(t, int64(2), li.Accepted())
	require.Equal(t, int64(1), li.Rejected())
	require.Equal(t, []string{"S2"}, li.Tracking.(*Serialized).Rejected)
}

func TestReceivedSideLockedOutsideCreated(t *testing.T) {
	s := receivedNote(t)
	require.NoError(t, s.InitiateQC())
	require.ErrorIs(t, s.SetReceivedQty(1, 40), ErrIllegalTransition)
	require.ErrorIs(t, s.AddSerial(context.Background(), 3, "S9"), ErrIllegalTransition)
	require.ErrorIs(t, s.SaveLineItems(context.Background(), nil), ErrIllegalTransition)
}

func TestQCLockedWhileCreated(t *testing.T) {
	s := receivedNote(t)
	require.ErrorIs(t, s.Review(1, UntrackedSplit{Accepted: 50}, ""), ErrIllegalTransition)
}

func TestCancelFromOpenStates(t *testing.T) {
	s := receivedNote(t)
	require.NoError(t, s.Cancel())
	require.Equal(t, StatusCancelled, s.Note.Status)
	require.ErrorIs(t, s.InitiateQC(), ErrIllegalTransition)

	s = receivedNote(t)
	require.NoError(t, s.InitiateQC())
	require.NoError(t, s.Cancel())
}

func TestSaveLineItemsIsAllOrNothing(t *testing.T) {
	s := receivedNote(t)
	before := s.Note.Clone()

	err := s.SaveLineItems(context.Background(), []LineDraft{
		{SKUID: 1, ReceivedQty: 60},
		{SKUID: 2, ReceivedQty: 30, Batches: []Batch{{Code: "B1", Quantity: 25}}},
	})
	require.ErrorIs(t, err, ErrQuantityMismatch)
	require.EqualError(t, err, "Batch total (25) must match received qty (30) for SKU RESIN")
	require.Equal(t, before.Lines, s.Note.Lines)
}

func TestSaveLineItemsUpsertsBySKU(t *testing.T) {
	s := receivedNote(t)
	for i, li := range s.Note.Lines {
		li.ID = int64(100 + i)
	}

	err := s.SaveLineItems(context.Background(), []LineDraft{
		{SKUID: 1, ReceivedQty: 120},
		{ID: 102, SKUID: 3, ReceivedQty: 2, Serials: []string{"S1", "S3"}},
	})
	require.NoError(t, err, "existing rows are not held to the remaining quantity")
	require.Len(t, s.Note.Lines, 2)
	require.Equal(t, int64(100), s.Note.Lines[0].ID)
	require.Equal(t, int64(120), s.Note.Lines[0].ReceivedQty)
	require.Equal(t, int64(102), s.Note.Lines[1].ID)

	err = s.SaveLineItems(context.Background(), []LineDraft{
		{SKUID: 1, ReceivedQty: 120},
		{SKUID: 2, ReceivedQty: 31, Batches: []Batch{{Code: "B1", Quantity: 31}}},
	})
	require.ErrorIs(t, err, ErrOverReceipt)

	err = s.SaveLineItems(context.Background(), []LineDraft{{SKUID: 1, ReceivedQty: 1}, {SKUID: 1, ReceivedQty: 2}})
	require.ErrorIs(t, err, ErrIllegalTransition)

	err = s.SaveLineItems(context.Background(), []LineDraft{{SKUID: 99, ReceivedQty: 1}})
	require.ErrorIs(t, err, ErrUnknownSKU)

	err = s.SaveLineItems(context.Background(), []LineDraft{{SKUID: 1, ReceivedQty: 1.5}})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSaveLineItemsVerifiesOnlyNewSerials(t *testing.T) {
	s := receivedNote(t)
	v := &recordingVerifier{}
	s.Verifier = v

	err := s.SaveLineItems(context.Background(), []LineDraft{
		{SKUID: 3, ReceivedQty: 3, Serials: []string{"S1", "S2", "S7"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"S7"}, v.calls)

	err = s.SaveLineItems(context.Background(), []LineDraft{
		{SKUID: 3, ReceivedQty: 3, Serials: []string{"S1", "S2", "S7", "S4"}},
	})
	require.ErrorIs(t, err, ErrCountMismatch)
	require.Equal(t, []string{"S7"}, v.calls)
}

func TestTrackingModeFixedOnceDataReceived(t *testing.T) {
	s := receivedNote(t)
	changed := testCatalog()
	resin := changed[2]
	resin.Tracking = TrackingSerial
	changed[2] = resin
	s.Catalog = changed

	err := s.SaveLineItems(context.Background(), []LineDraft{{SKUID: 2, ReceivedQty: 30, Serials: []string{"X"}}})
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestSessionSerialFlow(t *testing.T) {
	s := NewSession(&Note{Status: StatusCreated}, testCatalog(), allowAll())
	require.NoError(t, s.SaveLineItems(context.Background(), []LineDraft{{SKUID: 1, ReceivedQty: 5}}))

	require.ErrorIs(t, s.AddSerial(context.Background(), 3, "S1"), ErrUnknownSKU)

	next := s.Note.Clone()
	row, err := NewLineItem(testCatalog()[3])
	require.NoError(t, err)
	row.ReceivedQty = 3
	next.Lines = append(next.Lines, row)
	s.Note = next

	for _, serial := range []string{"S1", "S2", "S3"} {
		require.NoError(t, s.AddSerial(context.Background(), 3, serial))
	}
	require.ErrorIs(t, s.AddSerial(context.Background(), 3, "S4"), ErrCountMismatch)
	require.NoError(t, s.EditSerial(context.Background(), 3, "S3", "S5"))
	require.NoError(t, s.RemoveSerial(3, "S2"))
	require.ErrorIs(t, s.InitiateQC(), ErrCountMismatch)
}

func TestSaveLineItemsRejectsLedgerOfOtherMode(t *testing.T) {
	cases := []struct {
		name  string
		draft LineDraft
		want  error
	}{
		{name: "untracked with batches", draft: LineDraft{SKUID: 1, ReceivedQty: 5, Batches: []Batch{{Code: "B1", Quantity: 5}}}, want: ErrInvalidBatch},
		{name: "untracked with serials", draft: LineDraft{SKUID: 1, ReceivedQty: 1, Serials: []string{"S1"}}, want: ErrInvalidSerial},
		{name: "batch with serials", draft: LineDraft{SKUID: 2, ReceivedQty: 5, Batches: []Batch{{Code: "B1", Quantity: 5}}, Serials: []string{"S1"}}, want: ErrInvalidSerial},
		{name: "serial with batches", draft: LineDraft{SKUID: 3, ReceivedQty: 1, Serials: []string{"S1"}, Batches: []Batch{{Code: "B1", Quantity: 1}}}, want: ErrInvalidBatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := receivedNote(t)
			before := s.Note.Clone()

			err := s.SaveLineItems(context.Background(), []LineDraft{tc.draft})
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, before.Lines, s.Note.Lines)
		})
	}

	s := receivedNote(t)
	err := s.SaveLineItems(context.Background(), []LineDraft{{SKUID: 1, ReceivedQty: 5, Batches: []Batch{}, Serials: []string{}}})
	require.NoError(t, err, "empty ledgers carry no data")
}
