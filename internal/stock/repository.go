package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/audit"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction with the ledger primitives so
// other modules (sales, transfers) can mutate stock inside their own
// transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock: repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetEntry loads an entry without locking.
func (r *Repository) GetEntry(ctx context.Context, productID, warehouseID int64) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT id, product_id, warehouse_id, quantity_on_hand, quantity_reserved, alert_level, location, created_at, updated_at
FROM stock_entries WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID))
}

// ListEntries lists all entries of a warehouse ordered by product.
func (r *Repository) ListEntries(ctx context.Context, warehouseID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, quantity_on_hand, quantity_reserved, alert_level, location, created_at, updated_at
FROM stock_entries WHERE warehouse_id=$1 ORDER BY product_id`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListMovements lists movement records, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, kind, qty, unit_price, reason, created_by, created_at
FROM stock_movements
WHERE ($1 = 0 OR product_id = $1)
  AND ($2 = 0 OR warehouse_id = $2)
  AND ($3 = '' OR kind = $3)
  AND created_at >= COALESCE($4, '-infinity'::timestamptz)
  AND created_at <= COALESCE($5, 'infinity'::timestamptz)
ORDER BY created_at DESC, id DESC
LIMIT $6`, filter.ProductID, filter.WarehouseID, string(filter.Kind), nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var mv Movement
		var createdBy *int64
		if err := rows.Scan(&mv.ID, &mv.ProductID, &mv.WarehouseID, &mv.Kind, &mv.Qty, &mv.UnitPrice, &mv.Reason, &createdBy, &mv.CreatedAt); err != nil {
			return nil, err
		}
		if createdBy != nil {
			mv.CreatedBy = *createdBy
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, productID, warehouseID int64) (Entry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT id, product_id, warehouse_id, quantity_on_hand, quantity_reserved, alert_level, location, created_at, updated_at
FROM stock_entries WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID))
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_entries (product_id, warehouse_id, quantity_on_hand, quantity_reserved, alert_level, location, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		entry.ProductID, entry.WarehouseID, entry.OnHand, entry.Reserved, entry.AlertLevel, entry.Location).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateEntryQuantities(ctx context.Context, id, onHand, reserved int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_entries SET quantity_on_hand=$2, quantity_reserved=$3, updated_at=NOW() WHERE id=$1`, id, onHand, reserved)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, warehouse_id, kind, qty, unit_price, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		mv.ProductID, mv.WarehouseID, string(mv.Kind), mv.Qty, mv.UnitPrice, mv.Reason, nullID(mv.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertAuditEvent(ctx context.Context, ev audit.Event) error {
	return audit.Insert(ctx, r.tx, ev)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	err := row.Scan(&entry.ID, &entry.ProductID, &entry.WarehouseID, &entry.OnHand, &entry.Reserved, &entry.AlertLevel, &entry.Location, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
