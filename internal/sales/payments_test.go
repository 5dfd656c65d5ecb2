package sales

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/shared"
)

func confirmedSale(t *testing.T, svc *Service, store *fakeStore, dueDate *time.Time) Order {
	t.Helper()
	seedEntry(store, 1, 1, 100)
	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		DueDate: dueDate,
		Lines:   []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)
	order, err = svc.Confirm(context.Background(), agent, order.ID)
	require.NoError(t, err)
	return order
}

func TestRecordPaymentLifecycle(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	order := confirmedSale(t, svc, store, nil)

	// partial payment
	order, err := svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: price(80),
		Method: MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, PaymentPartial, order.PaymentStatus)
	require.True(t, order.Paid.Equal(price(80)))
	require.True(t, order.Remaining.Equal(price(120)))
	require.Nil(t, order.PaidAt)
	require.NotNil(t, order.PaymentMethod)
	require.Equal(t, MethodCash, *order.PaymentMethod)

	// settle the rest
	order, err = svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: price(120),
		Method: MethodCard,
	})
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, order.PaymentStatus)
	require.True(t, order.Remaining.IsZero())
	require.NotNil(t, order.PaidAt)
	// method stays the first one recorded
	require.Equal(t, MethodCash, *order.PaymentMethod)

	// sum of payments matches the paid amount
	sum := decimal.Zero
	for _, p := range order.Payments {
		sum = sum.Add(p.Amount)
	}
	require.True(t, sum.Equal(order.Paid))

	// fully paid sales accept no more payments
	_, err = svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: price(1),
		Method: MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecordPaymentRejectsDraft(t *testing.T) {
	store := newFakeStore()
	seedEntry(store, 1, 1, 100)
	svc := newTestService(store)

	order, err := svc.Create(context.Background(), agent, CreateOrderRequest{
		Lines: []LineRequest{{ProductID: 1, WarehouseID: 1, Qty: 4, UnitPrice: price(50)}},
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: price(50),
		Method: MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	order := confirmedSale(t, svc, store, nil)

	_, err := svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: decimal.Zero,
		Method: MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: price(-10),
		Method: MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	order := confirmedSale(t, svc, store, nil)

	_, err := svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: price(201),
		Method: MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrExceedsRemaining)

	// state untouched after the rejection
	stored := store.orders[order.ID]
	require.True(t, stored.Paid.IsZero())
	require.Equal(t, PaymentUnpaid, stored.PaymentStatus)
	require.Empty(t, stored.Payments)
}

func TestOverdueIsDerivedFromDueDate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	past := time.Now().AddDate(0, 0, -3)
	order := confirmedSale(t, svc, store, &past)

	overdue, err := svc.ListOverdue(context.Background(), agent)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, order.ID, overdue[0].ID)
	require.True(t, overdue[0].Overdue(time.Now()))
	require.Equal(t, 3, overdue[0].DaysLate(time.Now()))

	// settle it; the overdue list empties without any stored flag changing
	_, err = svc.RecordPayment(context.Background(), agent, order.ID, RecordPaymentRequest{
		Amount: price(200),
		Method: MethodTransfer,
	})
	require.NoError(t, err)

	overdue, err = svc.ListOverdue(context.Background(), agent)
	require.NoError(t, err)
	require.Empty(t, overdue)
}

func TestOverdueStartsTheDayAfterDueDate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	now := time.Now()
	today := now.Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)

	dueToday := confirmedSale(t, svc, store, &today)
	dueYesterday := confirmedSale(t, svc, store, &yesterday)

	// Due today is still on time, even once the timestamp has passed.
	require.False(t, dueToday.Overdue(now))
	require.Zero(t, dueToday.DaysLate(now))

	require.True(t, dueYesterday.Overdue(now))
	require.Equal(t, 1, dueYesterday.DaysLate(now))

	overdue, err := svc.ListOverdue(context.Background(), agent)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, dueYesterday.ID, overdue[0].ID)
}

func TestListUnpaidScopesAgents(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	confirmedSale(t, svc, store, nil)

	unpaid, err := svc.ListUnpaid(context.Background(), agent)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)

	other := shared.Actor{ID: 3, Email: "other@example.com", Role: shared.RoleAgent}
	unpaid, err = svc.ListUnpaid(context.Background(), other)
	require.NoError(t, err)
	require.Empty(t, unpaid)
}
