package transfers

import "time"

// Status enumerates the transfer lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Transfer moves quantities of one or more products between two warehouses.
// Stock only changes at confirmation; a draft holds nothing.
type Transfer struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	SourceID    int64      `json:"source_warehouse_id"`
	DestID      int64      `json:"dest_warehouse_id"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	ConfirmedBy *int64     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Lines       []Line     `json:"lines,omitempty"`
}

// Line is one product quantity within a transfer.
type Line struct {
	ID         int64 `json:"id"`
	TransferID int64 `json:"transfer_id"`
	ProductID  int64 `json:"product_id"`
	Qty        int64 `json:"qty"`
}

// CreateRequest describes a new draft transfer.
type CreateRequest struct {
	SourceID int64         `json:"source_warehouse_id" validate:"required,gt=0"`
	DestID   int64         `json:"dest_warehouse_id" validate:"required,gt=0"`
	Notes    string        `json:"notes,omitempty"`
	Lines    []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// LineRequest describes one requested transfer line.
type LineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Qty       int64 `json:"qty" validate:"required,gt=0"`
}

// ListFilter narrows transfer listings.
type ListFilter struct {
	Status      Status
	WarehouseID int64 // matches source or destination
	Limit       int
	Offset      int
}
