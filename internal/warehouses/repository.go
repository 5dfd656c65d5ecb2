package warehouses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// Repository persists warehouses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	return scanWarehouse(r.pool.QueryRow(ctx, `SELECT id, code, name, address, active, created_at, updated_at
FROM warehouses WHERE id=$1`, id))
}

func (r *Repository) GetByCode(ctx context.Context, code string) (Warehouse, error) {
	return scanWarehouse(r.pool.QueryRow(ctx, `SELECT id, code, name, address, active, created_at, updated_at
FROM warehouses WHERE code=$1`, code))
}

func (r *Repository) List(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, address, active, created_at, updated_at
FROM warehouses ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	warehouses := []Warehouse{}
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

func (r *Repository) Insert(ctx context.Context, w Warehouse) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (code, name, address, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id`,
		w.Code, w.Name, w.Address, w.Active).Scan(&id)
	return id, err
}

func (r *Repository) Update(ctx context.Context, w Warehouse) error {
	_, err := r.pool.Exec(ctx, `UPDATE warehouses SET code=$2, name=$3, address=$4, active=$5, updated_at=NOW() WHERE id=$1`,
		w.ID, w.Code, w.Name, w.Address, w.Active)
	return err
}

func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE warehouses SET active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// Stats aggregates entries and values stock at the products' purchase price.
func (r *Repository) Stats(ctx context.Context, id int64) (Stats, error) {
	stats := Stats{WarehouseID: id}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(e.quantity_on_hand), 0), COALESCE(SUM(e.quantity_reserved), 0),
COALESCE(SUM(e.quantity_on_hand * p.purchase_price), 0)
FROM stock_entries e
JOIN products p ON p.id = e.product_id
WHERE e.warehouse_id=$1`, id).
		Scan(&stats.ProductCount, &stats.TotalOnHand, &stats.Reserved, &stats.StockValue)
	return stats, err
}

func scanWarehouse(row interface{ Scan(dest ...any) error }) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, fmt.Errorf("%w: warehouse", shared.ErrNotFound)
	}
	return w, err
}
