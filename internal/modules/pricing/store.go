// README: Pricing store backed by PostgreSQL (zone flat fees).
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ZoneFlatFee returns the legacy flat fee for a named delivery zone.
// The second return is false when the zone is unknown.
func (s *Store) ZoneFlatFee(ctx context.Context, zone string) (int64, bool, error) {
	row := s.db.QueryRow(ctx, `SELECT flat_fee FROM zones WHERE name = $1`, zone)
	var fee int64
	err := row.Scan(&fee)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return fee, true, nil
}
