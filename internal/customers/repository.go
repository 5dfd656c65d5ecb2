package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, name, email, phone, address, notes, created_by, created_at, updated_at
FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("%w: customer", shared.ErrNotFound)
	}
	return c, err
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Customer, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, phone, address, notes, created_by, created_at, updated_at
FROM customers
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
  AND ($2 = 0 OR created_by = $2)
ORDER BY name
LIMIT $3 OFFSET $4`, filter.Search, filter.CreatedBy, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	customers := []Customer{}
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *Repository) Insert(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (name, email, phone, address, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		c.Name, c.Email, c.Phone, c.Address, c.Notes, c.CreatedBy).Scan(&id)
	return id, err
}

func (r *Repository) Update(ctx context.Context, c Customer) error {
	_, err := r.pool.Exec(ctx, `UPDATE customers SET name=$2, email=$3, phone=$4, address=$5, notes=$6, updated_at=NOW() WHERE id=$1`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.Notes)
	return err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	return err
}
