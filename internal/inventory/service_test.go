package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/receiving/internal/shared"
)

type memoryRepo struct {
	balances map[string]Balance
	cards    []StockCardEntry
	lines    []TransactionLine
	keys     map[string]struct{}
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[string]Balance), keys: make(map[string]struct{})}
}

func key(nodeID, skuID int64) string {
	return fmt.Sprintf("%d:%d", nodeID, skuID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r}
	return fn(ctx, tx)
}

func (tx *memoryTx) ClaimKey(ctx context.Context, k, module string) error {
	if _, ok := tx.repo.keys[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	tx.repo.keys[k] = struct{}{}
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, _ Transaction) (int64, error) {
	tx.repo.nextID++
	return tx.repo.nextID, nil
}

func (tx *memoryTx) InsertTransactionLine(ctx context.Context, line TransactionLine) error {
	tx.repo.lines = append(tx.repo.lines, line)
	return nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, nodeID, skuID int64) (Balance, error) {
	if bal, ok := tx.repo.balances[key(nodeID, skuID)]; ok {
		return bal, nil
	}
	return Balance{NodeID: nodeID, SKUID: skuID}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[key(balance.NodeID, balance.SKUID)] = balance
	return nil
}

func (tx *memoryTx) InsertCardEntry(ctx context.Context, card StockCardEntry, nodeID, skuID int64, txID int64) error {
	tx.repo.cards = append(tx.repo.cards, card)
	return nil
}

func ref(s string) string {
	return uuid.NewSHA1(uuid.Nil, []byte(s)).String()
}

func TestPostInboundAveragesCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, err := svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 10, UnitCost: decimal.NewFromInt(100), RefID: ref("a")})
	require.NoError(t, err)
	card, err := svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 10, UnitCost: decimal.NewFromInt(200), BatchCode: "B1", RefID: ref("b")})
	require.NoError(t, err)

	require.Equal(t, int64(20), card.BalanceQty)
	require.True(t, decimal.NewFromInt(150).Equal(card.BalanceCost))
	require.Equal(t, "B1", repo.lines[1].BatchCode)
}

func TestPostInboundQuarantineKeepsAvailableStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 4, UnitCost: decimal.NewFromInt(10), RefID: ref("ok")})
	require.NoError(t, err)
	card, err := svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 1, UnitCost: decimal.NewFromInt(99), Serial: "S2", Quarantine: true, RefID: ref("bad")})
	require.NoError(t, err)

	require.Equal(t, int64(4), card.BalanceQty)
	require.Equal(t, int64(1), card.QuarantineQty)
	require.True(t, decimal.NewFromInt(10).Equal(card.BalanceCost))
	require.True(t, repo.lines[1].Quarantine)
}

func TestPostInboundIsIdempotentPerReference(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	input := InboundInput{NodeID: 1, SKUID: 2, Qty: 3, UnitCost: decimal.NewFromInt(5), RefID: ref("grn-1")}

	_, err := svc.PostInbound(ctx, input)
	require.NoError(t, err)
	_, err = svc.PostInbound(ctx, input)
	require.ErrorIs(t, err, ErrAlreadyPosted)
	require.Equal(t, int64(3), repo.balances[key(1, 2)].Qty)
}

func TestPostInboundValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 0, RefID: ref("x")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 1, UnitCost: decimal.NewFromInt(-1), RefID: ref("x")})
	require.ErrorIs(t, err, ErrInvalidUnitCost)
	_, err = svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 2, Serial: "S1", RefID: ref("x")})
	require.Error(t, err)
	_, err = svc.PostInbound(ctx, InboundInput{NodeID: 1, SKUID: 2, Qty: 1, RefID: "not-a-uuid"})
	require.Error(t, err)
	_, err = svc.PostInbound(ctx, InboundInput{SKUID: 2, Qty: 1, RefID: ref("x")})
	require.Error(t, err)
}
