package transfers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/stock"
)

type pairKey struct {
	productID   int64
	warehouseID int64
}

type fakeStore struct {
	entries   map[pairKey]stock.Entry
	transfers map[int64]Transfer
	movements []stock.Movement
	audits    []audit.Event
	seqs      map[string]int64
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:   map[pairKey]stock.Entry{},
		transfers: map[int64]Transfer{},
		seqs:      map[string]int64{},
		nextID:    1000,
	}
}

func (s *fakeStore) clone() *fakeStore {
	c := &fakeStore{
		entries:   make(map[pairKey]stock.Entry, len(s.entries)),
		transfers: make(map[int64]Transfer, len(s.transfers)),
		movements: append([]stock.Movement(nil), s.movements...),
		audits:    append([]audit.Event(nil), s.audits...),
		seqs:      make(map[string]int64, len(s.seqs)),
		nextID:    s.nextID,
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.transfers {
		v.Lines = append([]Line(nil), v.Lines...)
		c.transfers[k] = v
	}
	for k, v := range s.seqs {
		c.seqs[k] = v
	}
	return c
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

// fakeRepo emulates transaction rollback by mutating a clone and swapping it
// in only when the callback succeeds.
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

func (r *fakeRepo) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	tr, ok := r.store.transfers[id]
	if !ok {
		return Transfer{}, fmt.Errorf("%w: transfer", shared.ErrNotFound)
	}
	return tr, nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	out := []Transfer{}
	for _, tr := range r.store.transfers {
		if filter.Status != "" && tr.Status != filter.Status {
			continue
		}
		if filter.WarehouseID != 0 && tr.SourceID != filter.WarehouseID && tr.DestID != filter.WarehouseID {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) GetEntryForUpdate(ctx context.Context, productID, warehouseID int64) (stock.Entry, error) {
	entry, ok := t.store.entries[pairKey{productID, warehouseID}]
	if !ok {
		return stock.Entry{}, stock.ErrEntryNotFound
	}
	return entry, nil
}

func (t *fakeTx) InsertEntry(ctx context.Context, entry stock.Entry) (int64, error) {
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

func (t *fakeTx) InsertMovement(ctx context.Context, mv stock.Movement) (int64, error) {
	mv.ID = t.store.id()
	t.store.movements = append(t.store.movements, mv)
	return mv.ID, nil
}

func (t *fakeTx) InsertAuditEvent(ctx context.Context, ev audit.Event) error {
	t.store.audits = append(t.store.audits, ev)
	return nil
}

func (t *fakeTx) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	tr, ok := t.store.transfers[id]
	if !ok {
		return Transfer{}, fmt.Errorf("%w: transfer", shared.ErrNotFound)
	}
	tr.Lines = append([]Line(nil), tr.Lines...)
	return tr, nil
}

func (t *fakeTx) InsertTransfer(ctx context.Context, tr Transfer) (int64, error) {
	tr.ID = t.store.id()
	tr.Lines = nil
	t.store.transfers[tr.ID] = tr
	return tr.ID, nil
}

func (t *fakeTx) UpdateTransfer(ctx context.Context, tr Transfer) error {
	stored, ok := t.store.transfers[tr.ID]
	if !ok {
		return fmt.Errorf("%w: transfer", shared.ErrNotFound)
	}
	tr.Lines = stored.Lines
	t.store.transfers[tr.ID] = tr
	return nil
}

func (t *fakeTx) InsertLine(ctx context.Context, l Line) (int64, error) {
	tr, ok := t.store.transfers[l.TransferID]
	if !ok {
		return 0, fmt.Errorf("%w: transfer", shared.ErrNotFound)
	}
	l.ID = t.store.id()
	tr.Lines = append(tr.Lines, l)
	t.store.transfers[l.TransferID] = tr
	return l.ID, nil
}

func (t *fakeTx) NextNumber(ctx context.Context, kind string, day time.Time) (int64, error) {
	key := kind + ":" + day.Format("20060102")
	t.store.seqs[key]++
	return t.store.seqs[key], nil
}

var actor = shared.Actor{ID: 1, Email: "admin@example.com", Role: shared.RoleAdmin}

func seedEntry(store *fakeStore, productID, warehouseID, onHand, reserved int64) {
	store.entries[pairKey{productID, warehouseID}] = stock.Entry{
		ID:          store.id(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		OnHand:      onHand,
		Reserved:    reserved,
	}
}

func TestCreateRejectsSameWarehouse(t *testing.T) {
	svc := NewService(&fakeRepo{store: newFakeStore()})

	_, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   1,
		Lines:    []LineRequest{{ProductID: 1, Qty: 5}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidTransfer)
}

func TestCreateRequiresLines(t *testing.T) {
	svc := NewService(&fakeRepo{store: newFakeStore()})

	_, err := svc.Create(context.Background(), actor, CreateRequest{SourceID: 1, DestID: 2})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
}

func TestCreateChecksSourceAvailability(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 3, 0)
	svc := NewService(&fakeRepo{store: store})

	_, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   2,
		Lines:    []LineRequest{{ProductID: 1, Qty: 5}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, store.transfers)
}

func TestCreateNumbersTransfers(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 20, 0)
	svc := NewService(&fakeRepo{store: store})

	transfer, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   2,
		Lines:    []LineRequest{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, "TRF"+time.Now().Format("20060102")+"0001", transfer.Number)
	require.Equal(t, StatusDraft, transfer.Status)

	// creation holds nothing at the source
	entry := store.entries[pairKey{1, 1}]
	require.Equal(t, int64(20), entry.OnHand)
	require.Equal(t, int64(0), entry.Reserved)
}

func TestConfirmMovesStockBetweenWarehouses(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 20, 0)
	svc := NewService(&fakeRepo{store: store})

	transfer, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   2,
		Lines:    []LineRequest{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(context.Background(), actor, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.NotNil(t, confirmed.ConfirmedBy)
	require.Equal(t, actor.ID, *confirmed.ConfirmedBy)

	require.Equal(t, int64(15), store.entries[pairKey{1, 1}].OnHand)
	// destination entry created lazily by the credit
	require.Equal(t, int64(5), store.entries[pairKey{1, 2}].OnHand)

	require.Len(t, store.movements, 2)
	for _, mv := range store.movements {
		require.Equal(t, stock.MovementTransfer, mv.Kind)
		require.Equal(t, int64(5), mv.Qty)
	}
}

func TestConfirmRevalidatesAvailability(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 20, 0)
	svc := NewService(&fakeRepo{store: store})

	transfer, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   2,
		Lines:    []LineRequest{{ProductID: 1, Qty: 15}},
	})
	require.NoError(t, err)

	// stock shrank between creation and confirmation
	entry := store.entries[pairKey{1, 1}]
	entry.OnHand = 10
	store.entries[pairKey{1, 1}] = entry

	_, err = svc.Confirm(context.Background(), actor, transfer.ID)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// nothing moved anywhere
	require.Equal(t, int64(10), store.entries[pairKey{1, 1}].OnHand)
	_, exists := store.entries[pairKey{1, 2}]
	require.False(t, exists)
	require.Equal(t, StatusDraft, store.transfers[transfer.ID].Status)
}

func TestConfirmRespectsReservations(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10, 8)
	svc := NewService(&fakeRepo{store: store})

	_, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   2,
		Lines:    []LineRequest{{ProductID: 1, Qty: 5}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestConfirmRejectsNonDraft(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 20, 0)
	svc := NewService(&fakeRepo{store: store})

	transfer, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   2,
		Lines:    []LineRequest{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)
	_, err = svc.Confirm(context.Background(), actor, transfer.ID)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), actor, transfer.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCancelDraftOnly(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 20, 0)
	svc := NewService(&fakeRepo{store: store})

	transfer, err := svc.Create(context.Background(), actor, CreateRequest{
		SourceID: 1,
		DestID:   2,
		Lines:    []LineRequest{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), actor, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Confirm(context.Background(), actor, transfer.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
