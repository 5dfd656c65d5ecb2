package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/stock"
)

const orderColumns = `id, number, customer_id, status, payment_status, payment_method, amount_total, amount_paid, amount_remaining, discount, due_date, paid_at, notes, created_by, created_at, updated_at`

// Repository persists sale orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	stock.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction covering
// both the order rows and the stock ledger.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales: repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapped := &txRepository{TxRepository: stock.NewTxRepository(tx), tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetOrder loads one order with its lines and payments.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM sale_orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, err
	}
	order.Lines, err = r.loadLines(ctx, id)
	if err != nil {
		return Order{}, err
	}
	order.Payments, err = r.loadPayments(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// List returns orders matching the filter, newest first, without lines.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM sale_orders
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR payment_status = $2)
  AND ($3 = 0 OR customer_id = $3)
  AND ($4 = 0 OR created_by = $4)
ORDER BY created_at DESC, id DESC
LIMIT $5 OFFSET $6`,
		string(filter.Status), string(filter.PaymentStatus), filter.CustomerID, filter.CreatedBy, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// ListUnpaid returns confirmed orders with an outstanding balance.
func (r *Repository) ListUnpaid(ctx context.Context, createdBy int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM sale_orders
WHERE status = 'confirmed' AND payment_status <> 'paid'
  AND ($1 = 0 OR created_by = $1)
ORDER BY created_at DESC, id DESC`, createdBy)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// ListOverdue returns unpaid orders whose due date has passed as of asOf.
// Same day-boundary rule as Order.Overdue: due today is still on time.
func (r *Repository) ListOverdue(ctx context.Context, asOf time.Time, createdBy int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM sale_orders
WHERE status = 'confirmed' AND payment_status <> 'paid'
  AND due_date IS NOT NULL AND due_date < date_trunc('day', $1::timestamptz)
  AND ($2 = 0 OR created_by = $2)
ORDER BY due_date ASC, id ASC`, asOf, createdBy)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *Repository) loadLines(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, warehouse_id, qty, unit_price, stock_withdrawn
FROM sale_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.WarehouseID, &l.Qty, &l.UnitPrice, &l.StockWithdrawn); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) loadPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, amount, method, reference, notes, created_by, created_at
FROM sale_payments WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Reference, &p.Notes, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM sale_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, order_id, product_id, warehouse_id, qty, unit_price, stock_withdrawn
FROM sale_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.WarehouseID, &l.Qty, &l.UnitPrice, &l.StockWithdrawn); err != nil {
			return Order{}, err
		}
		order.Lines = append(order.Lines, l)
	}
	return order, rows.Err()
}

func (r *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_orders (number, customer_id, status, payment_status, payment_method, amount_total, amount_paid, amount_remaining, discount, due_date, paid_at, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW()) RETURNING id`,
		o.Number, o.CustomerID, string(o.Status), string(o.PaymentStatus), nullMethod(o.PaymentMethod),
		o.Total, o.Paid, o.Remaining, o.Discount, o.DueDate, o.PaidAt, o.Notes, o.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateOrder(ctx context.Context, o Order) error {
	_, err := r.tx.Exec(ctx, `UPDATE sale_orders SET customer_id=$2, status=$3, payment_status=$4, payment_method=$5, amount_total=$6, amount_paid=$7, amount_remaining=$8, discount=$9, due_date=$10, paid_at=$11, notes=$12, updated_at=NOW()
WHERE id=$1`,
		o.ID, o.CustomerID, string(o.Status), string(o.PaymentStatus), nullMethod(o.PaymentMethod),
		o.Total, o.Paid, o.Remaining, o.Discount, o.DueDate, o.PaidAt, o.Notes)
	return err
}

func (r *txRepository) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_lines (order_id, product_id, warehouse_id, qty, unit_price, stock_withdrawn)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		l.OrderID, l.ProductID, l.WarehouseID, l.Qty, l.UnitPrice, l.StockWithdrawn).Scan(&id)
	return id, err
}

func (r *txRepository) DeleteLines(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM sale_lines WHERE order_id=$1`, orderID)
	return err
}

func (r *txRepository) SetLineWithdrawn(ctx context.Context, lineID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE sale_lines SET stock_withdrawn=TRUE WHERE id=$1`, lineID)
	return err
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_payments (order_id, amount, method, reference, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`,
		p.OrderID, p.Amount, string(p.Method), p.Reference, p.Notes, p.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) NextNumber(ctx context.Context, kind string, day time.Time) (int64, error) {
	return shared.NextDailySequence(ctx, r.tx, kind, day)
}

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	var method *string
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.Status, &o.PaymentStatus, &method,
		&o.Total, &o.Paid, &o.Remaining, &o.Discount, &o.DueDate, &o.PaidAt, &o.Notes,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("%w: sale order", shared.ErrNotFound)
		}
		return Order{}, err
	}
	if method != nil {
		m := PaymentMethod(*method)
		o.PaymentMethod = &m
	}
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func nullMethod(m *PaymentMethod) any {
	if m == nil {
		return nil
	}
	return string(*m)
}
