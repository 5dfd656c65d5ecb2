package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/authz"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	ListUnpaid(ctx context.Context, createdBy int64) ([]Order, error)
	ListOverdue(ctx context.Context, asOf time.Time, createdBy int64) ([]Order, error)
}

// TxRepository is the transactional surface of one sale mutation. It embeds
// the stock ledger primitives so reservations, withdrawals and the order rows
// commit or roll back together.
type TxRepository interface {
	stock.TxRepository

	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	UpdateOrder(ctx context.Context, o Order) error
	InsertLine(ctx context.Context, l Line) (int64, error)
	DeleteLines(ctx context.Context, orderID int64) error
	SetLineWithdrawn(ctx context.Context, lineID int64) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	NextNumber(ctx context.Context, kind string, day time.Time) (int64, error)
}

// AuthorizerPort decouples the service from the concrete capability checker.
type AuthorizerPort interface {
	Can(actor shared.Actor, action authz.Action, res authz.Resource) error
}

// Service drives the sale order lifecycle.
type Service struct {
	repo     RepositoryPort
	authz    AuthorizerPort
	ledger   stock.Ledger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the sales service.
func NewService(repo RepositoryPort, az AuthorizerPort) *Service {
	return &Service{
		repo:     repo,
		authz:    az,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Create opens a draft sale. Every line is reserved atomically: if any single
// reservation fails the whole sale is rejected and no stock is held.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateOrderRequest) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, fmt.Errorf("%w: %v", shared.ErrInvalidQuantity, err)
	}
	if req.Discount.IsNegative() {
		return Order{}, fmt.Errorf("%w: discount cannot be negative", shared.ErrInvalidAmount)
	}
	for _, lr := range req.Lines {
		if !lr.UnitPrice.IsPositive() {
			return Order{}, fmt.Errorf("%w: unit price must be positive", shared.ErrInvalidAmount)
		}
	}
	total, err := computeTotal(req.Lines, req.Discount)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		CustomerID:    req.CustomerID,
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
		Total:         total,
		Paid:          decimal.Zero,
		Remaining:     total,
		Discount:      req.Discount,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextNumber(ctx, "sale", now)
		if err != nil {
			return err
		}
		order.Number = shared.FormatDailyNumber("V", now, seq)

		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID

		for _, lr := range req.Lines {
			if _, err := s.ledger.Reserve(ctx, tx, lr.ProductID, lr.WarehouseID, lr.Qty); err != nil {
				return err
			}
			line := Line{
				OrderID:     orderID,
				ProductID:   lr.ProductID,
				WarehouseID: lr.WarehouseID,
				Qty:         lr.Qty,
				UnitPrice:   lr.UnitPrice,
			}
			lineID, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			order.Lines = append(order.Lines, line)
		}

		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionSale,
			Entity:   "sale",
			EntityID: orderID,
			Details: map[string]any{
				"number": order.Number,
				"total":  order.Total.String(),
				"lines":  len(order.Lines),
			},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Modify edits a draft sale. Replacing lines releases every old reservation
// and reserves the new set from scratch, all in one transaction.
func (s *Service) Modify(ctx context.Context, actor shared.Actor, id int64, req UpdateOrderRequest) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, fmt.Errorf("%w: %v", shared.ErrInvalidQuantity, err)
	}
	if req.Discount != nil && req.Discount.IsNegative() {
		return Order{}, fmt.Errorf("%w: discount cannot be negative", shared.ErrInvalidAmount)
	}
	if req.Lines != nil {
		for _, lr := range *req.Lines {
			if !lr.UnitPrice.IsPositive() {
				return Order{}, fmt.Errorf("%w: unit price must be positive", shared.ErrInvalidAmount)
			}
		}
	}

	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Can(actor, authz.ActionSalesManage, authz.Owned("sale", order.CreatedBy)); err != nil {
			return err
		}
		if order.Status != StatusDraft {
			return fmt.Errorf("%w: only draft sales can be modified, got %s", shared.ErrInvalidState, order.Status)
		}

		if req.Lines != nil {
			for _, line := range order.Lines {
				if _, err := s.ledger.Release(ctx, tx, line.ProductID, line.WarehouseID, line.Qty); err != nil {
					return err
				}
			}
			if err := tx.DeleteLines(ctx, order.ID); err != nil {
				return err
			}
			order.Lines = order.Lines[:0]
			for _, lr := range *req.Lines {
				if _, err := s.ledger.Reserve(ctx, tx, lr.ProductID, lr.WarehouseID, lr.Qty); err != nil {
					return err
				}
				line := Line{
					OrderID:     order.ID,
					ProductID:   lr.ProductID,
					WarehouseID: lr.WarehouseID,
					Qty:         lr.Qty,
					UnitPrice:   lr.UnitPrice,
				}
				lineID, err := tx.InsertLine(ctx, line)
				if err != nil {
					return err
				}
				line.ID = lineID
				order.Lines = append(order.Lines, line)
			}
		}
		if req.Discount != nil {
			order.Discount = *req.Discount
		}
		if req.DueDate != nil {
			order.DueDate = req.DueDate
		}
		if req.Notes != nil {
			order.Notes = *req.Notes
		}

		gross := decimal.Zero
		for _, line := range order.Lines {
			gross = gross.Add(line.Subtotal())
		}
		if order.Discount.GreaterThan(gross) {
			return fmt.Errorf("%w: discount exceeds line total", shared.ErrInvalidAmount)
		}
		order.Total = gross.Sub(order.Discount)
		order.Remaining = order.Total.Sub(order.Paid)
		order.PaymentStatus = derivePaymentStatus(order.Paid, order.Total)
		order.UpdatedAt = s.now()

		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionModification,
			Entity:   "sale",
			EntityID: order.ID,
			Details: map[string]any{
				"number": order.Number,
				"total":  order.Total.String(),
			},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Confirm finalizes a draft: each line's reserved quantity is physically
// withdrawn and an outbound movement is recorded. Lines already withdrawn are
// skipped so a retried confirmation never deducts twice.
func (s *Service) Confirm(ctx context.Context, actor shared.Actor, id int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Can(actor, authz.ActionSalesManage, authz.Owned("sale", order.CreatedBy)); err != nil {
			return err
		}
		if order.Status != StatusDraft {
			return fmt.Errorf("%w: only draft sales can be confirmed, got %s", shared.ErrInvalidState, order.Status)
		}

		for i, line := range order.Lines {
			if line.StockWithdrawn {
				continue
			}
			if _, err := s.ledger.Withdraw(ctx, tx, line.ProductID, line.WarehouseID, line.Qty); err != nil {
				return err
			}
			mv := stock.Movement{
				ProductID:   line.ProductID,
				WarehouseID: line.WarehouseID,
				Kind:        stock.MovementOut,
				Qty:         line.Qty,
				UnitPrice:   line.UnitPrice,
				Reason:      "sale " + order.Number,
				CreatedBy:   actor.ID,
			}
			if _, err := tx.InsertMovement(ctx, mv); err != nil {
				return err
			}
			if err := tx.SetLineWithdrawn(ctx, line.ID); err != nil {
				return err
			}
			order.Lines[i].StockWithdrawn = true
		}

		order.Status = StatusConfirmed
		order.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionSale,
			Entity:   "sale",
			EntityID: order.ID,
			Details: map[string]any{
				"number": order.Number,
				"status": string(StatusConfirmed),
			},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Cancel aborts a draft and returns every reservation to availability.
// Confirmed sales cannot be cancelled; corrections go through adjustments.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, id int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Can(actor, authz.ActionSalesManage, authz.Owned("sale", order.CreatedBy)); err != nil {
			return err
		}
		if order.Status != StatusDraft {
			return fmt.Errorf("%w: only draft sales can be cancelled, got %s", shared.ErrInvalidState, order.Status)
		}

		for _, line := range order.Lines {
			if _, err := s.ledger.Release(ctx, tx, line.ProductID, line.WarehouseID, line.Qty); err != nil {
				return err
			}
		}

		order.Status = StatusCancelled
		order.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionModification,
			Entity:   "sale",
			EntityID: order.ID,
			Details: map[string]any{
				"number": order.Number,
				"status": string(StatusCancelled),
			},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Get loads one sale with lines and payments.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := s.authz.Can(actor, authz.ActionSalesView, authz.Owned("sale", order.CreatedBy)); err != nil {
		return Order{}, err
	}
	return order, nil
}

// List returns sales matching the filter. Agents only ever see their own.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Order, error) {
	if !actor.IsAdmin() {
		filter.CreatedBy = actor.ID
	}
	return s.repo.List(ctx, filter)
}

func computeTotal(lines []LineRequest, discount decimal.Decimal) (decimal.Decimal, error) {
	gross := decimal.Zero
	for _, lr := range lines {
		gross = gross.Add(lr.UnitPrice.Mul(decimal.NewFromInt(lr.Qty)))
	}
	if discount.GreaterThan(gross) {
		return decimal.Zero, fmt.Errorf("%w: discount exceeds line total", shared.ErrInvalidAmount)
	}
	return gross.Sub(discount), nil
}
