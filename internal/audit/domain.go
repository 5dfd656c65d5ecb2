package audit

import "time"

// Action enumerates the kinds of material state changes kept in the trail.
type Action string

const (
	ActionCreation      Action = "creation"
	ActionModification  Action = "modification"
	ActionDeletion      Action = "deletion"
	ActionSale          Action = "sale"
	ActionStockMovement Action = "stock_movement"
	ActionLogin         Action = "login"
	ActionLogout        Action = "logout"
)

// Event is an immutable record of who did what to which entity. Events are
// appended and never updated or deleted.
type Event struct {
	ID       int64          `json:"id"`
	ActorID  int64          `json:"actor_id"`
	Action   Action         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID int64          `json:"entity_id"`
	Details  map[string]any `json:"details"`
	At       time.Time      `json:"at"`
}

// Filter narrows timeline listings.
type Filter struct {
	ActorID  int64
	Entity   string
	Action   Action
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}
