package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RowQuerier is satisfied by pgx transactions and pools alike.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextDailySequence atomically increments and returns the per-day counter for
// the given kind. Document numbers derived from it stay unique under
// concurrent creation, unlike counting same-day rows.
func NextDailySequence(ctx context.Context, q RowQuerier, kind string, day time.Time) (int64, error) {
	var seq int64
	err := q.QueryRow(ctx, `INSERT INTO daily_sequences (kind, day, value)
VALUES ($1, $2, 1)
ON CONFLICT (kind, day) DO UPDATE SET value = daily_sequences.value + 1
RETURNING value`, kind, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("shared: next %s sequence: %w", kind, err)
	}
	return seq, nil
}

// FormatDailyNumber renders a document number such as V202601150001 or
// TRF202601150001 from a prefix, a calendar day and a daily sequence value.
func FormatDailyNumber(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.Format("20060102"), seq)
}
