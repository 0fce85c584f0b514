// README: Worker store backed by PostgreSQL.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wasil/internal/types"
)

var ErrNotFound = errors.New("worker not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Worker, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, last_delivered_at, unfreeze_progress, created_at
		FROM workers
		WHERE id = $1`, string(id),
	)

	var w Worker
	var lastDelivered *time.Time
	err := row.Scan(&w.ID, &w.Name, &lastDelivered, &w.UnfreezeProgress, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.LastDeliveredAt = lastDelivered
	return &w, nil
}

// UpdateDeliveryMeta persists the freeze bookkeeping fields.
func (s *Store) UpdateDeliveryMeta(ctx context.Context, id types.ID, lastDeliveredAt *time.Time, unfreezeProgress int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE workers
		SET last_delivered_at = $1, unfreeze_progress = $2
		WHERE id = $3`,
		lastDeliveredAt, unfreezeProgress, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeliveredCount is the worker's lifetime count of delivered orders.
func (s *Store) DeliveredCount(ctx context.Context, id types.ID) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE delivery_worker_id = $1 AND status = 'delivered'`, string(id),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
