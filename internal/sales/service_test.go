package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/authz"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/stock"
)

type pairKey struct {
	productID   int64
	warehouseID int64
}

type fakeStore struct {
	entries   map[pairKey]stock.Entry
	orders    map[int64]Order
	movements []stock.Movement
	audits    []audit.Event
	seqs      map[string]int64
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: map[pairKey]stock.Entry{},
		orders:  map[int64]Order{},
		seqs:    map[string]int64{},
		nextID:  1000,
	}
}

func (s *fakeStore) clone() *fakeStore {
	c := &fakeStore{
		entries:   make(map[pairKey]stock.Entry, len(s.entries)),
		orders:    make(map[int64]Order, len(s.orders)),
		movements: append([]stock.Movement(nil), s.movements...),
		audits:    append([]audit.Event(nil), s.audits...),
		seqs:      make(map[string]int64, len(s.seqs)),
		nextID:    s.nextID,
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.orders {
		v.Lines = append([]Line(nil), v.Lines...)
		v.Payments = append([]Payment(nil), v.Payments...)
		c.orders[k] = v
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

// fakeRepo satisfies RepositoryPort. WithTx runs the callback against a clone
// and only swaps it in on success, mirroring transaction rollback.
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

func (r *fakeRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	order, ok := r.store.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: sale order", shared.ErrNotFound)
	}
	return order, nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	out := []Order{}
	for _, o := range r.store.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.CreatedBy != 0 && o.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *fakeRepo) ListUnpaid(ctx context.Context, createdBy int64) ([]Order, error) {
	out := []Order{}
	for _, o := range r.store.orders {
		if o.Status != StatusConfirmed || o.PaymentStatus == PaymentPaid {
			continue
		}
		if createdBy != 0 && o.CreatedBy != createdBy {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *fakeRepo) ListOverdue(ctx context.Context, asOf time.Time, createdBy int64) ([]Order, error) {
	out := []Order{}
	for _, o := range r.store.orders {
		if o.Status != StatusConfirmed || o.PaymentStatus == PaymentPaid {
			continue
		}
		if o.DueDate == nil || !o.DueDate.Before(asOf.Truncate(24*time.Hour)) {
			continue
		}
		if createdBy != 0 && o.CreatedBy != createdBy {
			continue
		}
		out = append(out, o)
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

func (t *fakeTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	order, ok := t.store.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: sale order", shared.ErrNotFound)
	}
	order.Lines = append([]Line(nil), order.Lines...)
	return order, nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, o Order) (int64, error) {
	o.ID = t.store.id()
	o.Lines = nil
	o.Payments = nil
	t.store.orders[o.ID] = o
	return o.ID, nil
}

func (t *fakeTx) UpdateOrder(ctx context.Context, o Order) error {
	stored, ok := t.store.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: sale order", shared.ErrNotFound)
	}
	o.Lines = stored.Lines
	o.Payments = stored.Payments
	t.store.orders[o.ID] = o
	return nil
}

func (t *fakeTx) InsertLine(ctx context.Context, l Line) (int64, error) {
	order, ok := t.store.orders[l.OrderID]
	if !ok {
		return 0, fmt.Errorf("%w: sale order", shared.ErrNotFound)
	}
	l.ID = t.store.id()
	order.Lines = append(order.Lines, l)
	t.store.orders[l.OrderID] = order
	return l.ID, nil
}

func (t *fakeTx) DeleteLines(ctx context.Context, orderID int64) error {
	order, ok := t.store.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: sale order", shared.ErrNotFound)
	}
	order.Lines = nil
	t.store.orders[orderID] = order
	return nil
}

func (t *fakeTx) SetLineWithdrawn(ctx context.Context, lineID int64) error {
	for id, order := range t.store.orders {
		for i := range order.Lines {
			if order.Lines[i].ID == lineID {
				order.Lines[i].StockWithdrawn = true
				t.store.orders[id] = order
				return nil
			}
		}
	}
	return fmt.Errorf("line %d not found", lineID)
}

func (t *fakeTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	order, ok := t.store.orders[p.OrderID]
	if !ok {
		return 0, fmt.Errorf("%w: sale order", shared.ErrNotFound)
	}
	p.ID = t.store.id()
	order.Payments = append(order.Payments, p)
	t.store.orders[p.OrderID] = order
	return p.ID, nil
}

func (t *fakeTx) NextNumber(ctx context.Context, kind string, day time.Time) (int64, error) {
	key := kind + ":" + day.Format("20060102")
	t.store.seqs[key]++
	return t.store.seqs[key], nil
}

var (
	admin = shared.Actor{ID: 1, Email: "admin@example.com", Role: shared.RoleAdmin}
	agent = shared.Actor{ID: 2, Email: "agent@example.com", Role: shared.RoleAgent}
)

func newTestService(store *fakeStore) *Service {
	return NewService(&fakeRepo{store: store}, authz.NewAuthorizer())
}

func seedEntry(store *fakeStore, productID, warehouseID, onHand int64) {
	store.entries[pairKey{productID, warehouseID}] = stock.Entry{
		ID:          store.id(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		OnHand:      onHand,
	}
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCreateReservesStock(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	require.Equal(t, StatusDraft, order.Status)
	require.Equal(t, PaymentUnpaid, order.PaymentStatus)
	require.Nil(t, order.CustomerID) // walk-in sale, no customer attached
	require.True(t, order.Total.Equal(price(200)))
	require.True(t, order.Remaining.Equal(price(200)))
	require.Equal(t, "V"+time.Now().Format("20060102")+"0001", order.Number)

	entry := store.entries[pairKey{1, 1}]
	require.Equal(t, int64(10), entry.OnHand)
	require.Equal(t, int64(4), entry.Reserved)
	require.Equal(t, int64(6), entry.Available())

	require.Len(t, store.audits, 1)
	require.Equal(t, audit.ActionSale, store.audits[0].Action)
}

func TestCreateIsAtomicAcrossLines(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	seedEntry(store, 2, 1, 1)
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{
			{ProductID: 1, WarehouseID: 1, Qty: 5, UnitPrice: price(10)},
			{ProductID: 2, WarehouseID: 1, Qty: 3, UnitPrice: price(10)},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// first line's reservation must have rolled back with the order
	require.Equal(t, int64(0), store.entries[pairKey{1, 1}].Reserved)
	require.Empty(t, store.orders)
	require.Empty(t, store.audits)
}

func TestCreateRejectsExcessDiscount(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Discount: price(500),
		Lines:    []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestCreateRejectsNonPositiveUnitPrice(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	for _, unitPrice := range []decimal.Decimal{decimal.Zero, price(-5)} {
		_, err := svc.Create(context.Background(), agent, CreateOrderRequest{
			Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 2, UnitPrice: unitPrice}},
		})
		require.ErrorIs(t, err, shared.ErrInvalidAmount)
	}
	require.Empty(t, store.orders)
	require.Zero(t, store.entries[pairKey{1, 1}].Reserved)
}

func TestModifyRejectsNonPositiveUnitPrice(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	lines := []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: decimal.Zero}}
	_, err = svc.Modify(context.Background(), agent, order.ID, UpdateOrderRequest{Lines: &lines})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	// The original lines and reservations are untouched.
	kept, err := svc.Get(context.Background(), agent, order.ID)
	require.NoError(t, err)
	require.True(t, kept.Lines[0].UnitPrice.Equal(price(50)))
	require.EqualValues(t, 4, store.entries[pairKey{1, 1}].Reserved)
}

func TestNumbersIncrementWithinDay(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 100)
	svc := newTestService(store)

	first, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 1, UnitPrice: price(5)}},
	})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 1, UnitPrice: price(5)}},
	})
	require.NoError(t, err)

	day := time.Now().Format("20060102")
	require.Equal(t, "V"+day+"0001", first.Number)
	require.Equal(t, "V"+day+"0002", second.Number)
}

func TestModifyReplacesLinesAndReservations(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	seedEntry(store, 2, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	lines := []LineRequest{{ProductID: 2, WarehouseID: 1, Qty: 2, UnitPrice: price(30)}}
	updated, err := svc.Modify(context.Background(), agent, order.ID, UpdateOrderRequest{Lines: &lines})
	require.NoError(t, err)

	require.True(t, updated.Total.Equal(price(60)))
	require.Equal(t, int64(0), store.entries[pairKey{1, 1}].Reserved)
	require.Equal(t, int64(2), store.entries[pairKey{2, 1}].Reserved)
}

func TestModifyRejectsNonDraft(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)
	_, err = svc.Confirm(context.Background(), agent, order.ID)
	require.NoError(t, err)

	notes := "late edit"
	_, err = svc.Modify(context.Background(), agent, order.ID, UpdateOrderRequest{Notes: &notes})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestConfirmWithdrawsReservedStock(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(context.Background(), agent, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)
	require.True(t, confirmed.Lines[0].StockWithdrawn)

	entry := store.entries[pairKey{1, 1}]
	require.Equal(t, int64(6), entry.OnHand)
	require.Equal(t, int64(0), entry.Reserved)

	require.Len(t, store.movements, 1)
	require.Equal(t, stock.MovementOut, store.movements[0].Kind)
	require.Equal(t, int64(4), store.movements[0].Qty)
	require.True(t, store.movements[0].UnitPrice.Equal(price(50)))
}

func TestConfirmSkipsAlreadyWithdrawnLines(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	// simulate a partially applied earlier confirmation
	stored := store.orders[order.ID]
	stored.Lines[0].StockWithdrawn = true
	entry := store.entries[pairKey{1, 1}]
	entry.OnHand -= 4
	entry.Reserved -= 4
	store.entries[pairKey{1, 1}] = entry
	store.orders[order.ID] = stored

	confirmed, err := svc.Confirm(context.Background(), agent, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)

	// no second deduction
	require.Equal(t, int64(6), store.entries[pairKey{1, 1}].OnHand)
	require.Empty(t, store.movements)
}

func TestConfirmRejectsNonDraft(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)
	_, err = svc.Confirm(context.Background(), agent, order.ID)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), agent, order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCancelReleasesReservations(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), agent, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	entry := store.entries[pairKey{1, 1}]
	require.Equal(t, int64(10), entry.OnHand)
	require.Equal(t, int64(0), entry.Reserved)
}

func TestAgentCannotTouchAnotherAgentsSale(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 10)
	svc := newTestService(store)

	other := shared.Actor{ID: 3, Email: "other@example.com", Role: shared.RoleAgent}
	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), other, order.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = svc.Get(context.Background(), other, order.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	// admin is unrestricted
	_, err = svc.Get(context.Background(), admin, order.ID)
	require.NoError(t, err)
}

func TestListScopesAgentsToOwnSales(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 100)
	svc := newTestService(store)

	other := shared.Actor{ID: 3, Email: "other@example.com", Role: shared.RoleAgent}
	_, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 1, UnitPrice: price(5)}},
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), other, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 1, UnitPrice: price(5)}},
	})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), agent, ListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, agent.ID, mine[0].CreatedBy)

	all, err := svc.List(context.Background(), admin, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
