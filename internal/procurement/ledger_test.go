package procurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

func TestLedgerEncodingKeepsBatchDates(t *testing.T) {
	expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	ledger := &grn.Batched{
		Received: []grn.Batch{{Code: "B1", Quantity: 20, ExpiryDate: expiry}, {Code: "B2", Quantity: 10}},
		Accepted: []grn.Batch{{Code: "B1", Quantity: 20, ExpiryDate: expiry}},
		Rejected: []grn.Batch{{Code: "B2", Quantity: 10}},
	}
	raw, err := encodeLedger(ledger)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "manufacture_date")

	decoded, err := decodeLedger(grn.TrackingBatch, raw)
	require.NoError(t, err)
	require.Equal(t, ledger, decoded)
}

func TestDecodeLedgerByMode(t *testing.T) {
	decoded, err := decodeLedger(grn.TrackingUntracked, nil)
	require.NoError(t, err)
	require.IsType(t, &grn.Untracked{}, decoded)

	decoded, err = decodeLedger(grn.TrackingSerial, []byte(`{"received_serials":["S1","S2"],"accepted_serials":["S2"]}`))
	require.NoError(t, err)
	require.Equal(t, &grn.Serialized{Received: []string{"S1", "S2"}, Accepted: []string{"S2"}}, decoded)

	_, err = decodeLedger("pallet", nil)
	require.ErrorIs(t, err, grn.ErrUnknownTracking)

	_, err = decodeLedger(grn.TrackingBatch, []byte(`{`))
	require.Error(t, err)
}
