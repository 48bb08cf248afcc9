package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/IntentMarket/internal/domain/stats"
	"github.com/Strob0t/IntentMarket/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks connectivity for health probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapErr(err, "ping")
	}
	return nil
}

// Counts returns marketplace totals in one round trip.
func (s *Store) Counts(ctx context.Context) (stats.Counts, error) {
	var c stats.Counts
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM agents),
			(SELECT count(*) FROM agents WHERE is_available),
			(SELECT count(*) FROM intents),
			(SELECT count(*) FROM intents WHERE status = 'open'),
			(SELECT count(*) FROM matches),
			(SELECT count(*) FROM matches WHERE status = 'accepted')`,
	).Scan(&c.Agents, &c.AvailableAgents, &c.Intents, &c.OpenIntents, &c.Matches, &c.AcceptedMatches)
	if err != nil {
		return stats.Counts{}, mapErr(err, "counts")
	}
	return c, nil
}
