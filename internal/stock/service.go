package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, productID, warehouseID int64) (Entry, error)
	ListEntries(ctx context.Context, warehouseID int64) ([]Entry, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Service exposes the stock ledger to the request layer. Each operation runs
// in a single transaction scoped to the entry row it mutates.
type Service struct {
	repo   RepositoryPort
	ledger Ledger
}

// NewService builds the stock service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Available returns the quantity open to reservation for a (product,
// warehouse) pair. An absent entry counts as zero. The value is an optimistic
// check; Reserve re-validates atomically.
func (s *Service) Available(ctx context.Context, productID, warehouseID int64) (int64, error) {
	entry, err := s.repo.GetEntry(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return entry.Available(), nil
}

// GetEntry returns the stock entry for a (product, warehouse) pair.
func (s *Service) GetEntry(ctx context.Context, productID, warehouseID int64) (Entry, error) {
	entry, err := s.repo.GetEntry(ctx, productID, warehouseID)
	if errors.Is(err, ErrEntryNotFound) {
		return Entry{}, shared.ErrNotFound
	}
	return entry, err
}

// ListEntries lists all stock entries of a warehouse.
func (s *Service) ListEntries(ctx context.Context, warehouseID int64) ([]Entry, error) {
	return s.repo.ListEntries(ctx, warehouseID)
}

// ListMovements lists stock movement records.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// Reserve places a hold for a pending sale line.
func (s *Service) Reserve(ctx context.Context, actor shared.Actor, productID, warehouseID, qty int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.ledger.Reserve(ctx, tx, productID, warehouseID, qty)
		return err
	})
	return entry, err
}

// Release returns a hold to availability.
func (s *Service) Release(ctx context.Context, actor shared.Actor, productID, warehouseID, qty int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.ledger.Release(ctx, tx, productID, warehouseID, qty)
		return err
	})
	return entry, err
}

// Withdraw physically deducts previously reserved stock.
func (s *Service) Withdraw(ctx context.Context, actor shared.Actor, productID, warehouseID, qty int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.ledger.Withdraw(ctx, tx, productID, warehouseID, qty)
		if err != nil {
			return err
		}
		mv := Movement{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Kind:        MovementOut,
			Qty:         qty,
			Reason:      "withdrawal",
			CreatedBy:   actor.ID,
		}
		mvID, err := tx.InsertMovement(ctx, mv)
		if err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionStockMovement,
			Entity:   "stock_movement",
			EntityID: mvID,
			Details: map[string]any{
				"kind":         string(MovementOut),
				"product_id":   productID,
				"warehouse_id": warehouseID,
				"qty":          qty,
			},
		})
	})
	return entry, err
}

// Adjust corrects the on-hand quantity after a manual stock count. The reason
// is mandatory and lands in the movement record.
func (s *Service) Adjust(ctx context.Context, actor shared.Actor, input AdjustInput) (Entry, error) {
	if input.Reason == "" {
		return Entry{}, fmt.Errorf("%w: adjustment reason required", shared.ErrInvalidQuantity)
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var applied int64
		var err error
		entry, applied, err = s.ledger.Adjust(ctx, tx, input.ProductID, input.WarehouseID, input.Delta)
		if err != nil {
			return err
		}
		mv := Movement{
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Kind:        MovementAdjust,
			Qty:         applied,
			Reason:      input.Reason,
			CreatedBy:   actor.ID,
		}
		mvID, err := tx.InsertMovement(ctx, mv)
		if err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionStockMovement,
			Entity:   "stock_movement",
			EntityID: mvID,
			Details: map[string]any{
				"kind":         string(MovementAdjust),
				"product_id":   input.ProductID,
				"warehouse_id": input.WarehouseID,
				"delta":        applied,
				"reason":       input.Reason,
			},
		})
	})
	return entry, err
}

// Receive books an inbound receipt, creating the entry lazily.
func (s *Service) Receive(ctx context.Context, actor shared.Actor, input ReceiveInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.ledger.Credit(ctx, tx, input.ProductID, input.WarehouseID, input.Qty)
		if err != nil {
			return err
		}
		mv := Movement{
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Kind:        MovementIn,
			Qty:         input.Qty,
			UnitPrice:   decimal.Zero,
			Reason:      input.Note,
			CreatedBy:   actor.ID,
		}
		mvID, err := tx.InsertMovement(ctx, mv)
		if err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionStockMovement,
			Entity:   "stock_movement",
			EntityID: mvID,
			Details: map[string]any{
				"kind":         string(MovementIn),
				"product_id":   input.ProductID,
				"warehouse_id": input.WarehouseID,
				"qty":          input.Qty,
			},
		})
	})
	return entry, err
}
