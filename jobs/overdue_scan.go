package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OverdueScanJob finds confirmed sales whose due date passed without full
// payment and mails a summary to the alert address. Overdue is computed from
// due_date at scan time; nothing is written back to the orders.
type OverdueScanJob struct {
	Pool       *pgxpool.Pool
	Logger     *slog.Logger
	Client     *Client
	AlertEmail string
	clock      func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(pool *pgxpool.Pool, logger *slog.Logger, client *Client, alertEmail string) *OverdueScanJob {
	return &OverdueScanJob{
		Pool:       pool,
		Logger:     logger,
		Client:     client,
		AlertEmail: alertEmail,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type overdueRow struct {
	Number    string
	Remaining string
	DaysLate  int
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("overdue scan: handler not configured")
	}
	now := j.clock()

	// Day-boundary rule matches sales.Order.Overdue: due today is still on time.
	rows, err := j.Pool.Query(ctx, `SELECT number, amount_remaining::text,
GREATEST(0, EXTRACT(DAY FROM date_trunc('day', $1::timestamptz) - date_trunc('day', due_date)))::int
FROM sale_orders
WHERE status = 'confirmed' AND payment_status <> 'paid'
  AND due_date IS NOT NULL AND due_date < date_trunc('day', $1::timestamptz)
ORDER BY due_date`, now)
	if err != nil {
		return fmt.Errorf("overdue scan: %w", err)
	}
	defer rows.Close()

	var overdue []overdueRow
	for rows.Next() {
		var row overdueRow
		if err := rows.Scan(&row.Number, &row.Remaining, &row.DaysLate); err != nil {
			return fmt.Errorf("overdue scan: %w", err)
		}
		overdue = append(overdue, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("overdue scan: %w", err)
	}

	j.Logger.Info("overdue scan completed", slog.Int("overdue", len(overdue)))
	if len(overdue) == 0 || j.Client == nil || j.AlertEmail == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d sale(s) overdue as of %s:\n\n", len(overdue), now.Format("2006-01-02"))
	for _, row := range overdue {
		fmt.Fprintf(&b, "  %s  remaining %s  %d day(s) late\n", row.Number, row.Remaining, row.DaysLate)
	}
	return j.Client.EnqueueMail(ctx, j.AlertEmail, "Overdue sales report", b.String())
}
