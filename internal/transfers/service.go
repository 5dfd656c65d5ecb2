package transfers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransfer(ctx context.Context, id int64) (Transfer, error)
	List(ctx context.Context, filter ListFilter) ([]Transfer, error)
}

// TxRepository is the transactional surface of one transfer mutation. The
// embedded stock primitives let confirmation debit and credit both warehouses
// in the same transaction as the status change.
type TxRepository interface {
	stock.TxRepository

	GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error)
	InsertTransfer(ctx context.Context, tr Transfer) (int64, error)
	UpdateTransfer(ctx context.Context, tr Transfer) error
	InsertLine(ctx context.Context, l Line) (int64, error)
	NextNumber(ctx context.Context, kind string, day time.Time) (int64, error)
}

// Service drives the inter-warehouse transfer lifecycle.
type Service struct {
	repo     RepositoryPort
	ledger   stock.Ledger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the transfers service.
func NewService(repo RepositoryPort) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Create opens a draft transfer. Availability at the source is checked so an
// obviously impossible transfer is rejected early, but nothing is reserved:
// the binding check happens again at confirmation.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (Transfer, error) {
	if err := s.validate.Struct(req); err != nil {
		return Transfer{}, fmt.Errorf("%w: %v", shared.ErrInvalidQuantity, err)
	}
	if req.SourceID == req.DestID {
		return Transfer{}, fmt.Errorf("%w: source and destination warehouses must differ", shared.ErrInvalidTransfer)
	}

	now := s.now()
	transfer := Transfer{
		SourceID:  req.SourceID,
		DestID:    req.DestID,
		Status:    StatusDraft,
		Notes:     req.Notes,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, lr := range req.Lines {
			if err := s.checkAvailability(ctx, tx, req.SourceID, lr.ProductID, lr.Qty); err != nil {
				return err
			}
		}

		seq, err := tx.NextNumber(ctx, "transfer", now)
		if err != nil {
			return err
		}
		transfer.Number = shared.FormatDailyNumber("TRF", now, seq)

		id, err := tx.InsertTransfer(ctx, transfer)
		if err != nil {
			return err
		}
		transfer.ID = id

		for _, lr := range req.Lines {
			line := Line{TransferID: id, ProductID: lr.ProductID, Qty: lr.Qty}
			lineID, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			transfer.Lines = append(transfer.Lines, line)
		}

		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionCreation,
			Entity:   "transfer",
			EntityID: id,
			Details: map[string]any{
				"number": transfer.Number,
				"source": transfer.SourceID,
				"dest":   transfer.DestID,
				"lines":  len(transfer.Lines),
			},
		})
	})
	if err != nil {
		return Transfer{}, err
	}
	return transfer, nil
}

// Confirm executes the movement: every line's quantity is debited at the
// source and credited at the destination atomically. Availability is
// re-validated under row locks since it may have changed since creation.
func (s *Service) Confirm(ctx context.Context, actor shared.Actor, id int64) (Transfer, error) {
	var transfer Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		transfer, err = tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if transfer.Status != StatusDraft {
			return fmt.Errorf("%w: only draft transfers can be confirmed, got %s", shared.ErrInvalidState, transfer.Status)
		}

		for _, line := range transfer.Lines {
			if _, err := s.ledger.Debit(ctx, tx, line.ProductID, transfer.SourceID, line.Qty); err != nil {
				return err
			}
			if _, err := s.ledger.Credit(ctx, tx, line.ProductID, transfer.DestID, line.Qty); err != nil {
				return err
			}
			dispatch := stock.Movement{
				ProductID:   line.ProductID,
				WarehouseID: transfer.SourceID,
				Kind:        stock.MovementTransfer,
				Qty:         line.Qty,
				Reason:      "transfer " + transfer.Number + " dispatch",
				CreatedBy:   actor.ID,
			}
			if _, err := tx.InsertMovement(ctx, dispatch); err != nil {
				return err
			}
			receipt := stock.Movement{
				ProductID:   line.ProductID,
				WarehouseID: transfer.DestID,
				Kind:        stock.MovementTransfer,
				Qty:         line.Qty,
				Reason:      "transfer " + transfer.Number + " receipt",
				CreatedBy:   actor.ID,
			}
			if _, err := tx.InsertMovement(ctx, receipt); err != nil {
				return err
			}
		}

		now := s.now()
		transfer.Status = StatusConfirmed
		transfer.ConfirmedBy = &actor.ID
		transfer.ConfirmedAt = &now
		transfer.UpdatedAt = now
		if err := tx.UpdateTransfer(ctx, transfer); err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionStockMovement,
			Entity:   "transfer",
			EntityID: transfer.ID,
			Details: map[string]any{
				"number": transfer.Number,
				"status": string(StatusConfirmed),
			},
		})
	})
	if err != nil {
		return Transfer{}, err
	}
	return transfer, nil
}

// Cancel aborts a draft transfer. Nothing was held, so nothing is returned.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, id int64) (Transfer, error) {
	var transfer Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		transfer, err = tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if transfer.Status != StatusDraft {
			return fmt.Errorf("%w: only draft transfers can be cancelled, got %s", shared.ErrInvalidState, transfer.Status)
		}

		transfer.Status = StatusCancelled
		transfer.UpdatedAt = s.now()
		if err := tx.UpdateTransfer(ctx, transfer); err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionModification,
			Entity:   "transfer",
			EntityID: transfer.ID,
			Details: map[string]any{
				"number": transfer.Number,
				"status": string(StatusCancelled),
			},
		})
	})
	if err != nil {
		return Transfer{}, err
	}
	return transfer, nil
}

// Get loads one transfer with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Transfer, error) {
	return s.repo.GetTransfer(ctx, id)
}

// List returns transfers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) checkAvailability(ctx context.Context, tx TxRepository, warehouseID, productID, qty int64) error {
	entry, err := tx.GetEntryForUpdate(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, stock.ErrEntryNotFound) {
			return fmt.Errorf("%w: product %d not stocked in warehouse %d", shared.ErrInsufficientStock, productID, warehouseID)
		}
		return err
	}
	if qty > entry.Available() {
		return fmt.Errorf("%w: requested %d, available %d", shared.ErrInsufficientStock, qty, entry.Available())
	}
	return nil
}
