package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
)

type pairKey struct {
	productID   int64
	warehouseID int64
}

type fakeStore struct {
	entries   map[pairKey]Entry
	movements []Movement
	audits    []audit.Event
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[pairKey]Entry{}, nextID: 1000}
}

func (s *fakeStore) clone() *fakeStore {
	c := &fakeStore{
		entries:   make(map[pairKey]Entry, len(s.entries)),
		movements: append([]Movement(nil), s.movements...),
		audits:    append([]audit.Event(nil), s.audits...),
		nextID:    s.nextID,
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	return c
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) seed(productID, warehouseID, onHand, reserved int64) {
	s.entries[pairKey{productID, warehouseID}] = Entry{
		ID:          s.id(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		OnHand:      onHand,
		Reserved:    reserved,
	}
}

// requireInvariants asserts OnHand >= Reserved >= 0 across every entry.
func (s *fakeStore) requireInvariants(t *testing.T) {
	t.Helper()
	for k, e := range s.entries {
		require.GreaterOrEqual(t, e.Reserved, int64(0), "entry %+v", k)
		require.GreaterOrEqual(t, e.OnHand, e.Reserved, "entry %+v", k)
	}
}

type fakeRepo struct {
	store *fakeStore
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	work := r.store.clone()
	if err := fn(ctx, &fakeTx{store: work}); err != nil {
		return err
	}
	*r.store = *work
	return nil
}

func (r *fakeRepo) GetEntry(ctx context.Context, productID, warehouseID int64) (Entry, error) {
	entry, ok := r.store.entries[pairKey{productID, warehouseID}]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (r *fakeRepo) ListEntries(ctx context.Context, warehouseID int64) ([]Entry, error) {
	out := []Entry{}
	for _, e := range r.store.entries {
		if e.WarehouseID == warehouseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return append([]Movement(nil), r.store.movements...), nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) GetEntryForUpdate(ctx context.Context, productID, warehouseID int64) (Entry, error) {
	entry, ok := t.store.entries[pairKey{productID, warehouseID}]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (t *fakeTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	entry.ID = t.store.id()
	t.store.entries[pairKey{entry.ProductID, entry.WarehouseID}] = entry
	return entry.ID, nil
}

func (t *fakeTx) UpdateEntryQuantities(ctx context.Context, id, onHand, reserved int64) error {
	for k, e := range t.store.entries {
		if e.ID == id {
			e.OnHand = onHand
			e.Reserved = reserved
			t.store.entries[k] = e
			return nil
		}
	}
	return fmt.Errorf("entry %d not found", id)
}

func (t *fakeTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	mv.ID = t.store.id()
	t.store.movements = append(t.store.movements, mv)
	return mv.ID, nil
}

func (t *fakeTx) InsertAuditEvent(ctx context.Context, ev audit.Event) error {
	t.store.audits = append(t.store.audits, ev)
	return nil
}

var actor = shared.Actor{ID: 7, Email: "admin@example.com", Role: shared.RoleAdmin}

func TestReserveWithdrawRoundTrip(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 1, 10, 0)
	svc := NewService(&fakeRepo{store: store})
	ctx := context.Background()

	entry, err := svc.Reserve(ctx, actor, 1, 1, 4)
	require.NoError(t, err)
	require.Equal(t, int64(10), entry.OnHand)
	require.Equal(t, int64(4), entry.Reserved)
	require.Equal(t, int64(6), entry.Available())
	store.requireInvariants(t)

	entry, err = svc.Withdraw(ctx, actor, 1, 1, 4)
	require.NoError(t, err)
	require.Equal(t, int64(6), entry.OnHand)
	require.Equal(t, int64(0), entry.Reserved)
	store.requireInvariants(t)

	require.Len(t, store.movements, 1)
	require.Equal(t, MovementOut, store.movements[0].Kind)
	require.Len(t, store.audits, 1)
	require.Equal(t, audit.ActionStockMovement, store.audits[0].Action)
}

func TestReserveBeyondAvailableFails(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 1, 10, 7)
	svc := NewService(&fakeRepo{store: store})

	_, err := svc.Reserve(context.Background(), actor, 1, 1, 4)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(7), store.entries[pairKey{1, 1}].Reserved)
}

func TestReserveUnknownEntryFails(t *testing.T) {
	svc := NewService(&fakeRepo{store: newFakeStore()})

	_, err := svc.Reserve(context.Background(), actor, 9, 9, 1)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestReleaseClampsAtZero(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 1, 10, 3)
	svc := NewService(&fakeRepo{store: store})

	entry, err := svc.Release(context.Background(), actor, 1, 1, 5)
	require.NoError(t, err)
	require.Equal(t, int64(0), entry.Reserved)
	require.Equal(t, int64(10), entry.OnHand)
	store.requireInvariants(t)
}

func TestWithdrawRequiresReservation(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 1, 10, 2)
	svc := NewService(&fakeRepo{store: store})

	_, err := svc.Withdraw(context.Background(), actor, 1, 1, 5)
	require.ErrorIs(t, err, shared.ErrInsufficientReserved)

	// failed withdrawal leaves no trace
	require.Equal(t, int64(10), store.entries[pairKey{1, 1}].OnHand)
	require.Empty(t, store.movements)
	require.Empty(t, store.audits)
}

func TestAdjustFloorsAtReserved(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 1, 10, 4)
	svc := NewService(&fakeRepo{store: store})

	entry, err := svc.Adjust(context.Background(), actor, AdjustInput{
		ProductID:   1,
		WarehouseID: 1,
		Delta:       -20,
		Reason:      "inventory count",
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), entry.OnHand)
	require.Equal(t, int64(4), entry.Reserved)
	store.requireInvariants(t)

	// movement carries the applied delta, not the requested one
	require.Len(t, store.movements, 1)
	require.Equal(t, MovementAdjust, store.movements[0].Kind)
	require.Equal(t, int64(-6), store.movements[0].Qty)
}

func TestAdjustCreatesEntryLazily(t *testing.T) {
	store := newFakeStore()
	svc := NewService(&fakeRepo{store: store})

	entry, err := svc.Adjust(context.Background(), actor, AdjustInput{
		ProductID:   5,
		WarehouseID: 2,
		Delta:       12,
		Reason:      "initial count",
	})
	require.NoError(t, err)
	require.Equal(t, int64(12), entry.OnHand)
	require.Equal(t, int64(0), entry.Reserved)
}

func TestAdjustRequiresReason(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 1, 10, 0)
	svc := NewService(&fakeRepo{store: store})

	_, err := svc.Adjust(context.Background(), actor, AdjustInput{
		ProductID:   1,
		WarehouseID: 1,
		Delta:       -2,
	})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
}

func TestReceiveCreditsAndRecordsMovement(t *testing.T) {
	store := newFakeStore()
	svc := NewService(&fakeRepo{store: store})

	entry, err := svc.Receive(context.Background(), actor, ReceiveInput{
		ProductID:   3,
		WarehouseID: 1,
		Qty:         25,
		Note:        "supplier delivery",
	})
	require.NoError(t, err)
	require.Equal(t, int64(25), entry.OnHand)

	require.Len(t, store.movements, 1)
	require.Equal(t, MovementIn, store.movements[0].Kind)
	require.Equal(t, "supplier delivery", store.movements[0].Reason)
}

func TestAvailableAbsentEntryIsZero(t *testing.T) {
	svc := NewService(&fakeRepo{store: newFakeStore()})

	qty, err := svc.Available(context.Background(), 42, 42)
	require.NoError(t, err)
	require.Equal(t, int64(0), qty)
}

func TestLowStockThreshold(t *testing.T) {
	entry := Entry{OnHand: 10, Reserved: 6, AlertLevel: 5}
	require.True(t, entry.LowStock())

	entry.Reserved = 10
	require.False(t, entry.LowStock())
	require.True(t, entry.OutOfStock())

	entry.Reserved = 0
	require.False(t, entry.LowStock())
}
