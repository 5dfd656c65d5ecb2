package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both pgxpool.Pool and pgx.Tx, so events can be written
// standalone or inside an enclosing domain transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder appends events to the trail. Failures propagate to the caller;
// losing the audit trail silently is treated as a correctness failure.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Insert writes one event using the given executor. State-machine operations
// call it with their own transaction so the event commits or rolls back with
// the mutation it describes.
func Insert(ctx context.Context, db DBTX, ev Event) error {
	if ev.Action == "" || ev.Entity == "" {
		return errors.New("audit: event requires action and entity")
	}
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO audit_events (actor_id, action, entity, entity_id, details, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`, nullID(ev.ActorID), string(ev.Action), ev.Entity, nullID(ev.EntityID), details)
	return err
}

// PGRecorder records events against the shared connection pool. Used for
// actions without an enclosing transaction, such as login and logout.
type PGRecorder struct {
	db DBTX
}

// NewPGRecorder returns a Recorder backed by PostgreSQL.
func NewPGRecorder(db DBTX) *PGRecorder {
	return &PGRecorder{db: db}
}

// Record persists the event.
func (r *PGRecorder) Record(ctx context.Context, ev Event) error {
	if r == nil || r.db == nil {
		return errors.New("audit: recorder not initialised")
	}
	return Insert(ctx, r.db, ev)
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
