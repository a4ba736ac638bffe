// Package csvfile persists the shared leaderboard in a flat CSV file, the
// default backend for single-host deployments.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"llm-quiz-service/internal/domain"
)

var header = []string{"Name", "Email", "Topic", "Score", "Total"}

// Store is a file-backed implementation of app.LeaderboardStore. Writers
// are serialized by a mutex and each entry is appended as a single row
// under O_APPEND, so prior rows are never rewritten.
type Store struct {
	path string
	mu   sync.Mutex
}

// New ensures the table exists (creating it with only the header when
// absent) and returns the store.
func New(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensure() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat leaderboard file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create leaderboard dir: %w", err)
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create leaderboard file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write leaderboard header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append adds one row, preserving all prior rows.
func (s *Store) Append(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensure(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open leaderboard file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		entry.Name,
		entry.Email,
		entry.Topic,
		strconv.Itoa(entry.Score),
		strconv.Itoa(entry.Total),
	}); err != nil {
		return fmt.Errorf("append leaderboard row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// TopN reads the full table and returns the first n entries sorted by
// score descending. The sort is stable: ties keep their append order.
func (s *Store) TopN(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

func (s *Store) readAll() ([]domain.LeaderboardEntry, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open leaderboard file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard file: %w", err)
	}

	var entries []domain.LeaderboardEntry
	for i, row := range rows {
		if i == 0 || len(row) != len(header) {
			continue
		}
		score, err := strconv.Atoi(row[3])
		if err != nil {
			continue
		}
		total, err := strconv.Atoi(row[4])
		if err != nil {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Name:  row[0],
			Email: row[1],
			Topic: row[2],
			Score: score,
			Total: total,
		})
	}
	return entries, nil
}
