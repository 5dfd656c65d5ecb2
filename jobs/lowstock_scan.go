package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LowStockScanJob finds stock entries whose availability dropped to the
// alert level and mails a replenishment summary.
type LowStockScanJob struct {
	Pool       *pgxpool.Pool
	Logger     *slog.Logger
	Client     *Client
	AlertEmail string
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger, client *Client, alertEmail string) *LowStockScanJob {
	return &LowStockScanJob{Pool: pool, Logger: logger, Client: client, AlertEmail: alertEmail}
}

// Handle executes the low-stock scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("low-stock scan: handler not configured")
	}

	rows, err := j.Pool.Query(ctx, `SELECT p.sku, p.name, w.code, e.quantity_on_hand - e.quantity_reserved, e.alert_level
FROM stock_entries e
JOIN products p ON p.id = e.product_id
JOIN warehouses w ON w.id = e.warehouse_id
WHERE p.active
  AND e.alert_level > 0
  AND e.quantity_on_hand - e.quantity_reserved <= e.alert_level
ORDER BY p.name, w.code`)
	if err != nil {
		return fmt.Errorf("low-stock scan: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	count := 0
	for rows.Next() {
		var sku, name, warehouse string
		var available, alertLevel int64
		if err := rows.Scan(&sku, &name, &warehouse, &available, &alertLevel); err != nil {
			return fmt.Errorf("low-stock scan: %w", err)
		}
		count++
		fmt.Fprintf(&b, "  %s (%s) @ %s: %d available, alert at %d\n", name, sku, warehouse, available, alertLevel)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("low-stock scan: %w", err)
	}

	j.Logger.Info("low-stock scan completed", slog.Int("items", count))
	if count == 0 || j.Client == nil || j.AlertEmail == "" {
		return nil
	}
	body := fmt.Sprintf("%d stock entr(ies) at or below alert level:\n\n%s", count, b.String())
	return j.Client.EnqueueMail(ctx, j.AlertEmail, "Low stock report", body)
}
