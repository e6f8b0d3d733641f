package grn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingVerifier struct {
	calls  []string
	reject map[string]error
}

func (v *recordingVerifier) VerifySerial(ctx context.Context, skuID int64, serial string) error {
	v.calls = append(v.calls, serial)
	if err, ok := v.reject[serial]; ok {
		return err
	}
	return nil
}

func serialRow(t *testing.T, received int64, serials ...string) *LineItem {
	t.Helper()
	li, err := NewLineItem(SKUContext{SKUID: 9, SKUCode: "SKU-S", Tracking: TrackingSerial})
	require.NoError(t, err)
	li.ReceivedQty = received
	v := &recordingVerifier{}
	for _, s := range serials {
		require.NoError(t, AddSerial(context.Background(), li, v, s))
	}
	return li
}

func TestAddSerialRejectsDuplicatesBeforeVerification(t *testing.T) {
	li := serialRow(t, 3, "S1")
	v := &recordingVerifier{}

	err := AddSerial(context.Background(), li, v, " S1 ")
	require.ErrorIs(t, err, ErrDuplicateSerial)
	require.Empty(t, v.calls)

	err = AddSerial(context.Background(), li, v, "")
	require.ErrorIs(t, err, ErrInvalidSerial)
	require.Empty(t, v.calls)
}

func TestAddSerialSurfacesVerificationFailure(t *testing.T) {
	li := serialRow(t, 3)
	remote := errors.New("Serial S9 already exists for this SKU")
	v := &recordingVerifier{reject: map[string]error{"S9": remote}}

	err := AddSerial(context.Background(), li, v, "S9")
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.ErrorIs(t, err, remote)
	require.EqualError(t, err, "Serial S9 already exists for this SKU")
	require.Empty(t, li.Tracking.(*Serialized).Received)

	require.NoError(t, AddSerial(context.Background(), li, v, "S1"))
	require.Equal(t, []string{"S1"}, li.Tracking.(*Serialized).Received)
}

func TestAddSerialBeyondReceivedQtyFailsWithoutNetworkCall(t *testing.T) {
	li := serialRow(t, 3, "S1", "S2", "S3")
	v := &recordingVerifier{}

	err := AddSerial(context.Background(), li, v, "S4")
	require.ErrorIs(t, err, ErrCountMismatch)
	require.Empty(t, v.calls)
}

func TestAddSerialRejectsReentrantVerification(t *testing.T) {
	li := serialRow(t, 3)
	var inner error
	v := VerifierFunc(func(ctx context.Context, skuID int64, serial string) error {
		inner = AddSerial(ctx, li, &recordingVerifier{}, "S2")
		return nil
	})

	require.NoError(t, AddSerial(context.Background(), li, v, "S1"))
	require.ErrorIs(t, inner, ErrVerificationInFlight)
	require.Equal(t, []string{"S1"}, li.Tracking.(*Serialized).Received)
}

func TestEditAndRemoveSerial(t *testing.T) {
	li := serialRow(t, 3, "S1", "S2")
	v := &recordingVerifier{}

	require.ErrorIs(t, EditSerial(context.Background(), li, v, "S1", "S2"), ErrDuplicateSerial)
	require.ErrorIs(t, EditSerial(context.Background(), li, v, "S7", "S8"), ErrInvalidSerial)
	require.Empty(t, v.calls)

	require.NoError(t, EditSerial(context.Background(), li, v, "S1", "S5"))
	require.Equal(t, []string{"S5", "S2"}, li.Tracking.(*Serialized).Received)
	require.Equal(t, []string{"S5"}, v.calls)

	require.NoError(t, RemoveSerial(li, "S2"))
	require.ErrorIs(t, ValidateSerials(li), ErrCountMismatch)
	require.ErrorIs(t, RemoveSerial(li, "S2"), ErrInvalidSerial)
}

func TestApplySerialQCPartitionsReceivedSet(t *testing.T) {
	li := serialRow(t, 3, "S1", "S2", "S3")

	accepted, err := DefaultSerialAcceptance(li)
	require.NoError(t, err)
	require.Equal(t, []string{"S1", "S2", "S3"}, accepted)

	require.NoError(t, ApplySerialQC(li, []string{"S3", "S1", "S1"}))

	ledger := li.Tracking.(*Serialized)
	require.Equal(t, []string{"S1", "S3"}, ledger.Accepted)
	require.Equal(t, []string{"S2"}, ledger.Rejected)
	require.Equal(t, int64(2), li.QC.AcceptedQty)
	require.Equal(t, int64(1), li.QC.RejectedQty)
	require.NoError(t, checkSerialPartition(li, ledger))

	require.ErrorIs(t, ApplySerialQC(li, []string{"S4"}), ErrOverAcceptance)
	require.Equal(t, []string{"S2"}, ledger.Rejected)
}
