package transfers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/stock"
)

const transferColumns = `id, number, source_warehouse_id, dest_warehouse_id, status, notes, created_by, confirmed_by, confirmed_at, created_at, updated_at`

// Repository persists transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	stock.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction covering
// the transfer rows and the stock ledger.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("transfers: repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapped := &txRepository{TxRepository: stock.NewTxRepository(tx), tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetTransfer loads one transfer with its lines.
func (r *Repository) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	transfer, err := scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id=$1`, id))
	if err != nil {
		return Transfer{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, transfer_id, product_id, qty FROM transfer_lines WHERE transfer_id=$1 ORDER BY id`, id)
	if err != nil {
		return Transfer{}, err
	}
	transfer.Lines, err = collectLines(rows)
	if err != nil {
		return Transfer{}, err
	}
	return transfer, nil
}

// List returns transfers matching the filter, newest first, without lines.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM transfers
WHERE ($1 = '' OR status = $1)
  AND ($2 = 0 OR source_warehouse_id = $2 OR dest_warehouse_id = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`, string(filter.Status), filter.WarehouseID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	transfers := []Transfer{}
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}

func (r *txRepository) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	transfer, err := scanTransfer(r.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Transfer{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, transfer_id, product_id, qty FROM transfer_lines WHERE transfer_id=$1 ORDER BY id`, id)
	if err != nil {
		return Transfer{}, err
	}
	transfer.Lines, err = collectLines(rows)
	if err != nil {
		return Transfer{}, err
	}
	return transfer, nil
}

func (r *txRepository) InsertTransfer(ctx context.Context, tr Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transfers (number, source_warehouse_id, dest_warehouse_id, status, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		tr.Number, tr.SourceID, tr.DestID, string(tr.Status), tr.Notes, tr.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateTransfer(ctx context.Context, tr Transfer) error {
	_, err := r.tx.Exec(ctx, `UPDATE transfers SET status=$2, notes=$3, confirmed_by=$4, confirmed_at=$5, updated_at=NOW() WHERE id=$1`,
		tr.ID, string(tr.Status), tr.Notes, tr.ConfirmedBy, tr.ConfirmedAt)
	return err
}

func (r *txRepository) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transfer_lines (transfer_id, product_id, qty) VALUES ($1,$2,$3) RETURNING id`,
		l.TransferID, l.ProductID, l.Qty).Scan(&id)
	return id, err
}

func (r *txRepository) NextNumber(ctx context.Context, kind string, day time.Time) (int64, error) {
	return shared.NextDailySequence(ctx, r.tx, kind, day)
}

func scanTransfer(row interface{ Scan(dest ...any) error }) (Transfer, error) {
	var tr Transfer
	err := row.Scan(&tr.ID, &tr.Number, &tr.SourceID, &tr.DestID, &tr.Status, &tr.Notes,
		&tr.CreatedBy, &tr.ConfirmedBy, &tr.ConfirmedAt, &tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, fmt.Errorf("%w: transfer", shared.ErrNotFound)
		}
		return Transfer{}, err
	}
	return tr, nil
}

func collectLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TransferID, &l.ProductID, &l.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
