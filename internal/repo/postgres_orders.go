package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

var ErrNotFound = errors.New("order not found")

type PostgresOrderRepo struct {
	db *sql.DB
}

func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// InitSchema creates the orders table. Schema evolution beyond this is
// handled out of process.
func InitSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			order_id   TEXT PRIMARY KEY,
			order_text TEXT NOT NULL,
			cp_amount  INTEGER NOT NULL CHECK (cp_amount > 0),
			order_type TEXT NOT NULL CHECK (order_type IN ('unsafe', 'fund', 'safe_slow', 'safe_fast')),
			status     TEXT NOT NULL CHECK (status IN ('pending', 'assigned', 'completed', 'failed')),
			worker_id  BIGINT,
			reply_message_id BIGINT,
			photos     JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
		CREATE INDEX IF NOT EXISTS idx_orders_worker ON orders(worker_id);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepo) UpsertOrder(ctx context.Context, o model.Order) error {
	photos, err := json.Marshal(o.Photos)
	if err != nil {
		return fmt.Errorf("encode photos: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, order_text, cp_amount, order_type, status,
		                    worker_id, reply_message_id, photos, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), NULLIF($7, 0), $8, $9, now())
		ON CONFLICT (order_id) DO UPDATE SET
			status = excluded.status,
			worker_id = excluded.worker_id,
			reply_message_id = excluded.reply_message_id,
			photos = excluded.photos,
			updated_at = now()
	`, o.OrderID, o.Text, o.CPAmount, string(o.OrderType), string(o.Status),
		o.WorkerID, o.ReplyMessageID, photos, o.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.OrderID, err)
	}
	return nil
}

func (r *PostgresOrderRepo) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT order_id, order_text, cp_amount, order_type, status,
		       worker_id, reply_message_id, photos, created_at
		FROM orders
		WHERE order_id = $1
	`, orderID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	return o, err
}

func (r *PostgresOrderRepo) ListByUser(ctx context.Context, workerID int64, limit, offset int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, order_text, cp_amount, order_type, status,
		       worker_id, reply_message_id, photos, created_at
		FROM orders
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, workerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *PostgresOrderRepo) ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, order_text, cp_amount, order_type, status,
		       worker_id, reply_message_id, photos, created_at
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o         model.Order
		orderType string
		status    string
		workerID  sql.NullInt64
		replyID   sql.NullInt64
		photos    []byte
		createdAt time.Time
	)

	if err := row.Scan(
		&o.OrderID,
		&o.Text,
		&o.CPAmount,
		&orderType,
		&status,
		&workerID,
		&replyID,
		&photos,
		&createdAt,
	); err != nil {
		return model.Order{}, err
	}

	o.OrderType = model.OrderType(orderType)
	o.Status = model.Status(status)
	o.CreatedAt = createdAt
	if workerID.Valid {
		o.WorkerID = workerID.Int64
	}
	if replyID.Valid {
		o.ReplyMessageID = replyID.Int64
	}
	if err := json.Unmarshal(photos, &o.Photos); err != nil {
		return model.Order{}, fmt.Errorf("decode photos for %s: %w", o.OrderID, err)
	}
	return o, nil
}

func collectOrders(rows *sql.Rows) ([]model.Order, error) {
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
