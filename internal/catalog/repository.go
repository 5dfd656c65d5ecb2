package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/shared"
)

const productColumns = `p.id, p.sku, p.name, p.description, p.category_id, p.supplier_id, p.purchase_price, p.sale_price, p.active, p.created_at, p.updated_at,
COALESCE((SELECT SUM(e.quantity_on_hand) FROM stock_entries e WHERE e.product_id = p.id), 0) AS stock_total,
COALESCE((SELECT SUM(e.quantity_reserved) FROM stock_entries e WHERE e.product_id = p.id), 0) AS stock_reserved`

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id=$1`, id))
}

func (r *Repository) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.sku=$1`, sku))
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products p
WHERE ($1 = 0 OR p.category_id = $1)
  AND ($2 = 0 OR p.supplier_id = $2)
  AND ($3 = '' OR p.name ILIKE '%' || $3 || '%' OR p.sku ILIKE '%' || $3 || '%')
  AND (NOT $4 OR p.active)
ORDER BY p.name
LIMIT $5 OFFSET $6`,
		filter.CategoryID, filter.SupplierID, filter.Search, filter.ActiveOnly, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, description, category_id, supplier_id, purchase_price, sale_price, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		p.SKU, p.Name, p.Description, p.CategoryID, p.SupplierID, p.PurchasePrice, p.SalePrice, p.Active).Scan(&id)
	return id, err
}

func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `UPDATE products SET sku=$2, name=$3, description=$4, category_id=$5, supplier_id=$6, purchase_price=$7, sale_price=$8, active=$9, updated_at=NOW()
WHERE id=$1`,
		p.ID, p.SKU, p.Name, p.Description, p.CategoryID, p.SupplierID, p.PurchasePrice, p.SalePrice, p.Active)
	return err
}

func (r *Repository) DeactivateProduct(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE products SET active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// ListLowStock joins products against entries whose availability dropped to
// the alert level.
func (r *Repository) ListLowStock(ctx context.Context, warehouseID int64) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, e.warehouse_id, e.quantity_on_hand - e.quantity_reserved, e.alert_level
FROM stock_entries e
JOIN products p ON p.id = e.product_id
WHERE p.active
  AND e.alert_level > 0
  AND e.quantity_on_hand - e.quantity_reserved <= e.alert_level
  AND ($1 = 0 OR e.warehouse_id = $1)
ORDER BY p.name, e.warehouse_id`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LowStockItem{}
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.WarehouseID, &item.Available, &item.AlertLevel); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at FROM categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, fmt.Errorf("%w: category", shared.ErrNotFound)
	}
	return c, err
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) InsertCategory(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, description, created_at) VALUES ($1,$2,NOW()) RETURNING id`,
		c.Name, c.Description).Scan(&id)
	return id, err
}

func (r *Repository) UpdateCategory(ctx context.Context, c Category) error {
	_, err := r.pool.Exec(ctx, `UPDATE categories SET name=$2, description=$3 WHERE id=$1`, c.ID, c.Name, c.Description)
	return err
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	return err
}

func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, name, contact, email, phone, address, created_at FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Contact, &s.Email, &s.Phone, &s.Address, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("%w: supplier", shared.ErrNotFound)
	}
	return s, err
}

func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, contact, email, phone, address, created_at FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	suppliers := []Supplier{}
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Contact, &s.Email, &s.Phone, &s.Address, &s.CreatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *Repository) InsertSupplier(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, contact, email, phone, address, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		s.Name, s.Contact, s.Email, s.Phone, s.Address).Scan(&id)
	return id, err
}

func (r *Repository) UpdateSupplier(ctx context.Context, s Supplier) error {
	_, err := r.pool.Exec(ctx, `UPDATE suppliers SET name=$2, contact=$3, email=$4, phone=$5, address=$6 WHERE id=$1`,
		s.ID, s.Name, s.Contact, s.Email, s.Phone, s.Address)
	return err
}

func (r *Repository) DeleteSupplier(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id=$1`, id)
	return err
}

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.SupplierID,
		&p.PurchasePrice, &p.SalePrice, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		&p.StockTotal, &p.StockReserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	return p, err
}
