package warehouses

import (
	"time"

	"github.com/shopspring/decimal"
)

// Warehouse is a physical stock location.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats aggregates a warehouse's stock position. Value is priced at the
// products' purchase price.
type Stats struct {
	WarehouseID  int64           `json:"warehouse_id"`
	ProductCount int64           `json:"product_count"`
	TotalOnHand  int64           `json:"total_on_hand"`
	Reserved     int64           `json:"reserved"`
	StockValue   decimal.Decimal `json:"stock_value"`
}

// Request creates or updates a warehouse.
type Request struct {
	Code    string `json:"code" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Address string `json:"address,omitempty"`
	Active  *bool  `json:"active,omitempty"`
}
