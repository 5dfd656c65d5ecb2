package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates physical stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound receipt.
	MovementIn MovementKind = "in"
	// MovementOut represents an outbound deduction.
	MovementOut MovementKind = "out"
	// MovementAdjust indicates a manual stock-count correction.
	MovementAdjust MovementKind = "adjust"
	// MovementTransfer tags inter-warehouse moves.
	MovementTransfer MovementKind = "transfer"
)

// Entry tracks one product's quantities in one warehouse. Reservations hold
// stock for pending sales without reducing the on-hand quantity. Entries are
// created lazily on the first movement into a warehouse and never deleted.
//
// Invariants after every operation: OnHand >= Reserved >= 0.
type Entry struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	OnHand      int64     `json:"quantity_on_hand"`
	Reserved    int64     `json:"quantity_reserved"`
	AlertLevel  int64     `json:"alert_level"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Available is the quantity open to new reservations.
func (e Entry) Available() int64 {
	if avail := e.OnHand - e.Reserved; avail > 0 {
		return avail
	}
	return 0
}

// OutOfStock reports whether nothing is left to sell.
func (e Entry) OutOfStock() bool {
	return e.Available() <= 0
}

// LowStock reports whether availability dropped to the alert level.
func (e Entry) LowStock() bool {
	avail := e.Available()
	return avail > 0 && avail <= e.AlertLevel
}

// Movement records one physical quantity change for traceability.
type Movement struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Kind        MovementKind    `json:"kind"`
	Qty         int64           `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Reason      string          `json:"reason"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID   int64
	WarehouseID int64
	Kind        MovementKind
	From        time.Time
	To          time.Time
	Limit       int
}

// AdjustInput describes a manual stock-count correction.
type AdjustInput struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Delta       int64  `json:"delta" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
}

// ReceiveInput describes an inbound receipt into a warehouse.
type ReceiveInput struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Qty         int64  `json:"qty" validate:"required,gt=0"`
	Note        string `json:"note,omitempty"`
}

// ErrEntryNotFound indicates the (product, warehouse) pair has no stock row yet.
var ErrEntryNotFound = errors.New("stock: entry not found")
