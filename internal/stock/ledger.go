package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// TxRepository exposes the transactional primitives the ledger operates on.
// Implementations lock the entry row so concurrent operations on the same
// (product, warehouse) pair serialize; different pairs proceed independently.
type TxRepository interface {
	GetEntryForUpdate(ctx context.Context, productID, warehouseID int64) (Entry, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	UpdateEntryQuantities(ctx context.Context, id, onHand, reserved int64) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
	InsertAuditEvent(ctx context.Context, ev audit.Event) error
}

// Ledger holds the reserve/release/withdraw arithmetic over stock entries.
// Every method runs against a caller-provided transaction so multi-line
// operations (sale creation, transfer confirmation) stay all-or-nothing.
type Ledger struct{}

// Reserve places a hold against available stock. Fails when qty exceeds the
// available quantity; the check is atomic under the entry's row lock.
func (Ledger) Reserve(ctx context.Context, tx TxRepository, productID, warehouseID, qty int64) (Entry, error) {
	if qty <= 0 {
		return Entry{}, shared.ErrInvalidQuantity
	}
	entry, err := tx.GetEntryForUpdate(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Entry{}, fmt.Errorf("%w: product %d not stocked in warehouse %d", shared.ErrInsufficientStock, productID, warehouseID)
		}
		return Entry{}, err
	}
	if qty > entry.Available() {
		return Entry{}, fmt.Errorf("%w: requested %d, available %d", shared.ErrInsufficientStock, qty, entry.Available())
	}
	entry.Reserved += qty
	if err := tx.UpdateEntryQuantities(ctx, entry.ID, entry.OnHand, entry.Reserved); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Release returns reserved quantity to availability, floored at zero.
// Over-release is clamped, not an error, so already-released lines are
// tolerated.
func (Ledger) Release(ctx context.Context, tx TxRepository, productID, warehouseID, qty int64) (Entry, error) {
	if qty <= 0 {
		return Entry{}, shared.ErrInvalidQuantity
	}
	entry, err := tx.GetEntryForUpdate(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Entry{}, nil
		}
		return Entry{}, err
	}
	entry.Reserved -= qty
	if entry.Reserved < 0 {
		entry.Reserved = 0
	}
	if err := tx.UpdateEntryQuantities(ctx, entry.ID, entry.OnHand, entry.Reserved); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Withdraw turns a reservation into a physical deduction, reducing both
// reserved and on-hand quantities. The only ledger operation besides Debit
// that reduces physical stock.
func (Ledger) Withdraw(ctx context.Context, tx TxRepository, productID, warehouseID, qty int64) (Entry, error) {
	if qty <= 0 {
		return Entry{}, shared.ErrInvalidQuantity
	}
	entry, err := tx.GetEntryForUpdate(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Entry{}, fmt.Errorf("%w: product %d not stocked in warehouse %d", shared.ErrInsufficientOnHand, productID, warehouseID)
		}
		return Entry{}, err
	}
	if qty > entry.Reserved {
		return Entry{}, fmt.Errorf("%w: requested %d, reserved %d", shared.ErrInsufficientReserved, qty, entry.Reserved)
	}
	if qty > entry.OnHand {
		return Entry{}, fmt.Errorf("%w: requested %d, on hand %d", shared.ErrInsufficientOnHand, qty, entry.OnHand)
	}
	entry.Reserved -= qty
	entry.OnHand -= qty
	if err := tx.UpdateEntryQuantities(ctx, entry.ID, entry.OnHand, entry.Reserved); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Adjust applies a direct on-hand correction with no reservation interaction.
// Decreases floor at the reserved quantity so OnHand >= Reserved holds after
// every operation. Returns the entry and the delta actually applied.
func (Ledger) Adjust(ctx context.Context, tx TxRepository, productID, warehouseID, delta int64) (Entry, int64, error) {
	if delta == 0 {
		return Entry{}, 0, shared.ErrInvalidQuantity
	}
	entry, err := tx.GetEntryForUpdate(ctx, productID, warehouseID)
	if errors.Is(err, ErrEntryNotFound) {
		entry = Entry{ProductID: productID, WarehouseID: warehouseID}
		id, insertErr := tx.InsertEntry(ctx, entry)
		if insertErr != nil {
			return Entry{}, 0, insertErr
		}
		entry.ID = id
	} else if err != nil {
		return Entry{}, 0, err
	}
	newOnHand := entry.OnHand + delta
	if newOnHand < entry.Reserved {
		newOnHand = entry.Reserved
	}
	applied := newOnHand - entry.OnHand
	entry.OnHand = newOnHand
	if err := tx.UpdateEntryQuantities(ctx, entry.ID, entry.OnHand, entry.Reserved); err != nil {
		return Entry{}, 0, err
	}
	return entry, applied, nil
}

// Debit removes on-hand quantity directly, bypassing reservations. Used by
// transfer confirmation; the availability re-check keeps OnHand >= Reserved.
func (Ledger) Debit(ctx context.Context, tx TxRepository, productID, warehouseID, qty int64) (Entry, error) {
	if qty <= 0 {
		return Entry{}, shared.ErrInvalidQuantity
	}
	entry, err := tx.GetEntryForUpdate(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Entry{}, fmt.Errorf("%w: product %d not stocked in warehouse %d", shared.ErrInsufficientStock, productID, warehouseID)
		}
		return Entry{}, err
	}
	if qty > entry.Available() {
		return Entry{}, fmt.Errorf("%w: requested %d, available %d", shared.ErrInsufficientStock, qty, entry.Available())
	}
	entry.OnHand -= qty
	if err := tx.UpdateEntryQuantities(ctx, entry.ID, entry.OnHand, entry.Reserved); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Credit adds on-hand quantity, creating the entry lazily when the product
// has never been stocked in the warehouse.
func (Ledger) Credit(ctx context.Context, tx TxRepository, productID, warehouseID, qty int64) (Entry, error) {
	if qty <= 0 {
		return Entry{}, shared.ErrInvalidQuantity
	}
	entry, err := tx.GetEntryForUpdate(ctx, productID, warehouseID)
	if errors.Is(err, ErrEntryNotFound) {
		entry = Entry{ProductID: productID, WarehouseID: warehouseID}
		id, insertErr := tx.InsertEntry(ctx, entry)
		if insertErr != nil {
			return Entry{}, insertErr
		}
		entry.ID = id
	} else if err != nil {
		return Entry{}, err
	}
	entry.OnHand += qty
	if err := tx.UpdateEntryQuantities(ctx, entry.ID, entry.OnHand, entry.Reserved); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
