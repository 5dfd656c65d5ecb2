package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the sale order lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is derived from the paid and total amounts. Overdue is a
// presentation-time label, never a stored status, so the two bookkeeping
// paths cannot drift apart.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodCard        PaymentMethod = "card"
	MethodCheque      PaymentMethod = "cheque"
	MethodTransfer    PaymentMethod = "bank_transfer"
	MethodMobileMoney PaymentMethod = "mobile_money"
)

// Order is a sale moving through draft, confirmed or cancelled. It owns its
// lines and payments; both are cascade-deleted with it.
type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod *PaymentMethod  `json:"payment_method,omitempty"`
	Total         decimal.Decimal `json:"amount_total"`
	Paid          decimal.Decimal `json:"amount_paid"`
	Remaining     decimal.Decimal `json:"amount_remaining"`
	Discount      decimal.Decimal `json:"discount"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lines         []Line          `json:"lines,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
}

// WarehouseIDs derives the set of warehouses the order touches from its lines.
func (o *Order) WarehouseIDs() []int64 {
	seen := make(map[int64]struct{}, len(o.Lines))
	ids := make([]int64, 0, len(o.Lines))
	for _, line := range o.Lines {
		if _, ok := seen[line.WarehouseID]; ok {
			continue
		}
		seen[line.WarehouseID] = struct{}{}
		ids = append(ids, line.WarehouseID)
	}
	return ids
}

// Overdue reports whether payment is late as of now. Derived, not persisted.
// An order becomes overdue the calendar day after its due date; due today is
// still on time.
func (o *Order) Overdue(now time.Time) bool {
	if o.DueDate == nil || o.PaymentStatus == PaymentPaid {
		return false
	}
	return now.Truncate(24 * time.Hour).After(o.DueDate.Truncate(24 * time.Hour))
}

// DaysLate counts calendar days past the due date, zero when not overdue.
func (o *Order) DaysLate(now time.Time) int {
	if !o.Overdue(now) {
		return 0
	}
	today := now.Truncate(24 * time.Hour)
	dueDay := o.DueDate.Truncate(24 * time.Hour)
	return int(today.Sub(dueDay).Hours() / 24)
}

// PaidPercent returns the share of the total already settled, 0-100.
func (o *Order) PaidPercent() decimal.Decimal {
	if o.Total.IsZero() {
		return decimal.Zero
	}
	return o.Paid.Div(o.Total).Mul(decimal.NewFromInt(100))
}

// Line is one product sold from one warehouse. StockWithdrawn guards against
// double deduction when confirmation is retried.
type Line struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	ProductID      int64           `json:"product_id"`
	WarehouseID    int64           `json:"warehouse_id"`
	Qty            int64           `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	StockWithdrawn bool            `json:"stock_withdrawn"`
}

// Subtotal is qty times unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Qty))
}

// Payment is an immutable settlement record. Corrections happen via new
// payments, never edits.
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateOrderRequest describes a new draft sale.
type CreateOrderRequest struct {
	CustomerID *int64          `json:"customer_id,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
	DueDate    *time.Time      `json:"due_date,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Lines      []LineRequest   `json:"lines" validate:"required,min=1,dive"`
}

// LineRequest describes one requested sale line.
type LineRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	Qty         int64           `json:"qty" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// UpdateOrderRequest modifies a draft sale. Providing lines replaces them all:
// old reservations are released and the new lines reserved from scratch.
type UpdateOrderRequest struct {
	Discount *decimal.Decimal `json:"discount,omitempty"`
	DueDate  *time.Time       `json:"due_date,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
	Lines    *[]LineRequest   `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// RecordPaymentRequest registers a settlement against a confirmed sale.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method" validate:"required,oneof=cash card cheque bank_transfer mobile_money"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status        Status
	PaymentStatus PaymentStatus
	CustomerID    int64
	CreatedBy     int64
	Limit         int
	Offset        int
}

// derivePaymentStatus is the pure function behind every payment_status change.
func derivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.IsZero() || paid.IsNegative():
		return PaymentUnpaid
	case paid.LessThan(total):
		return PaymentPartial
	default:
		return PaymentPaid
	}
}
