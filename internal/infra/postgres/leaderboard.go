package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"llm-quiz-service/internal/domain"
)

// LeaderboardStore persists completed runs in Postgres. The serial id
// column preserves append order, so equal scores rank by insertion time
// like the flat-file backend.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

func (s *LeaderboardStore) Append(ctx context.Context, entry domain.LeaderboardEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leaderboard_entries (name, email, topic, score, total) VALUES ($1, $2, $3, $4, $5)`,
		entry.Name, entry.Email, entry.Topic, entry.Score, entry.Total,
	)
	if err != nil {
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, email, topic, score, total FROM leaderboard_entries ORDER BY score DESC, id ASC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.Name, &entry.Email, &entry.Topic, &entry.Score, &entry.Total); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
