package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Result wraps a timeline page with paging information.
type Result struct {
	Events  []Event `json:"events"`
	Page    int     `json:"page"`
	HasNext bool    `json:"has_next"`
}

// Service provides read access to the audit timeline.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs the audit query service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Timeline lists events, newest first, with optional filters and paging.
func (s *Service) Timeline(ctx context.Context, filter Filter) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("audit: service not configured")
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.pool.Query(ctx, `SELECT id, actor_id, action, entity, entity_id, details, created_at
FROM audit_events
WHERE ($1 = 0 OR actor_id = $1)
  AND ($2 = '' OR entity = $2)
  AND ($3 = '' OR action = $3)
  AND created_at >= COALESCE($4, '-infinity'::timestamptz)
  AND created_at <= COALESCE($5, 'infinity'::timestamptz)
ORDER BY created_at DESC, id DESC
OFFSET $6 LIMIT $7`,
		filter.ActorID, filter.Entity, string(filter.Action),
		nullTime(filter.From), nullTime(filter.To), offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var actorID *int64
		var entityID *int64
		var details []byte
		if err := rows.Scan(&ev.ID, &actorID, &ev.Action, &ev.Entity, &entityID, &details, &ev.At); err != nil {
			return Result{}, err
		}
		if actorID != nil {
			ev.ActorID = *actorID
		}
		if entityID != nil {
			ev.EntityID = *entityID
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &ev.Details); err != nil {
				return Result{}, err
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	hasNext := len(events) > pageSize
	if hasNext {
		events = events[:pageSize]
	}
	return Result{Events: events, Page: page, HasNext: hasNext}, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
