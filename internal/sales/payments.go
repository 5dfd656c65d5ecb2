package sales

import (
	"context"
	"fmt"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/authz"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RecordPayment registers a settlement against a confirmed sale. Payments are
// append-only; the order's paid amount and derived payment status move with
// each one inside the same transaction.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Actor, orderID int64, req RecordPaymentRequest) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, fmt.Errorf("%w: %v", shared.ErrInvalidAmount, err)
	}
	if !req.Amount.IsPositive() {
		return Order{}, fmt.Errorf("%w: payment amount must be positive", shared.ErrInvalidAmount)
	}

	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.authz.Can(actor, authz.ActionPaymentsRecord, authz.Owned("sale", order.CreatedBy)); err != nil {
			return err
		}
		if order.Status != StatusConfirmed {
			return fmt.Errorf("%w: payments only apply to confirmed sales, got %s", shared.ErrInvalidState, order.Status)
		}
		if order.PaymentStatus == PaymentPaid {
			return fmt.Errorf("%w: sale %s is already fully paid", shared.ErrInvalidState, order.Number)
		}
		if req.Amount.GreaterThan(order.Remaining) {
			return fmt.Errorf("%w: amount %s exceeds remaining %s", shared.ErrExceedsRemaining, req.Amount, order.Remaining)
		}

		now := s.now()
		payment := Payment{
			OrderID:   order.ID,
			Amount:    req.Amount,
			Method:    req.Method,
			Reference: req.Reference,
			Notes:     req.Notes,
			CreatedBy: actor.ID,
			CreatedAt: now,
		}
		paymentID, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = paymentID
		order.Payments = append(order.Payments, payment)

		order.Paid = order.Paid.Add(req.Amount)
		order.Remaining = order.Total.Sub(order.Paid)
		order.PaymentStatus = derivePaymentStatus(order.Paid, order.Total)
		if order.PaymentMethod == nil {
			method := req.Method
			order.PaymentMethod = &method
		}
		// PaidAt records the first moment the balance hit zero and is
		// never overwritten.
		if order.PaymentStatus == PaymentPaid && order.PaidAt == nil {
			order.PaidAt = &now
		}
		order.UpdatedAt = now

		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertAuditEvent(ctx, audit.Event{
			ActorID:  actor.ID,
			Action:   audit.ActionSale,
			Entity:   "payment",
			EntityID: paymentID,
			Details: map[string]any{
				"sale":           order.Number,
				"amount":         req.Amount.String(),
				"method":         string(req.Method),
				"payment_status": string(order.PaymentStatus),
			},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// ListUnpaid returns confirmed sales with an outstanding balance.
func (s *Service) ListUnpaid(ctx context.Context, actor shared.Actor) ([]Order, error) {
	createdBy := int64(0)
	if !actor.IsAdmin() {
		createdBy = actor.ID
	}
	return s.repo.ListUnpaid(ctx, createdBy)
}

// ListOverdue returns unpaid sales whose due date has passed as of now.
// Overdue is computed from due_date at query time, never stored.
func (s *Service) ListOverdue(ctx context.Context, actor shared.Actor) ([]Order, error) {
	createdBy := int64(0)
	if !actor.IsAdmin() {
		createdBy = actor.ID
	}
	return s.repo.ListOverdue(ctx, s.now(), createdBy)
}
