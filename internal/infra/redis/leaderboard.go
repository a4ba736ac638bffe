package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"llm-quiz-service/internal/domain"
)

const leaderboardKey = "quiz:leaderboard"

// LeaderboardStore keeps the shared leaderboard as a Redis list of JSON
// rows (RPUSH per completed session). A list rather than a sorted set:
// duplicate participants stay distinct and ties keep their append order,
// matching the flat-file semantics.
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) Append(ctx context.Context, entry domain.LeaderboardEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal leaderboard entry: %w", err)
	}
	if err := s.client.RPush(ctx, leaderboardKey, payload).Err(); err != nil {
		return fmt.Errorf("push leaderboard entry: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.client.LRange(ctx, leaderboardKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(row), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}
