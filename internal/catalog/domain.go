package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Supplier is a product source.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a sellable item. Quantities live in the stock ledger, never
// here; StockTotal and StockReserved are summed from the ledger on reads.
type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	SupplierID    *int64          `json:"supplier_id,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	StockTotal    int64           `json:"stock_total"`
	StockReserved int64           `json:"stock_reserved"`
}

// Margin is the per-unit profit at the listed prices.
func (p Product) Margin() decimal.Decimal {
	return p.SalePrice.Sub(p.PurchasePrice)
}

// StockAvailable is the quantity open to new reservations across all
// warehouses.
func (p Product) StockAvailable() int64 {
	if avail := p.StockTotal - p.StockReserved; avail > 0 {
		return avail
	}
	return 0
}

// OutOfStock reports whether nothing is left to sell anywhere.
func (p Product) OutOfStock() bool {
	return p.StockAvailable() <= 0
}

// LowStockItem pairs a product with a warehouse entry at or below its alert
// level.
type LowStockItem struct {
	ProductID   int64  `json:"product_id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	WarehouseID int64  `json:"warehouse_id"`
	Available   int64  `json:"available"`
	AlertLevel  int64  `json:"alert_level"`
}

// ProductRequest creates or updates a product.
type ProductRequest struct {
	SKU           string          `json:"sku" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description,omitempty"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	SupplierID    *int64          `json:"supplier_id,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Active        *bool           `json:"active,omitempty"`
}

// CategoryRequest creates or updates a category.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// SupplierRequest creates or updates a supplier.
type SupplierRequest struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID int64
	SupplierID int64
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}
