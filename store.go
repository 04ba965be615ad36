package main

import (
	"context"
	"sort"
	"sync"
)

// RecordStore is the durable tier behind the participant registry. Load
// returns errNotFound for unknown ids; Save must be complete before any
// success reply that depends on it is sent.
type RecordStore interface {
	Load(ctx context.Context, id string) (storedRecord, error)
	Save(ctx context.Context, rec storedRecord) error
	TopScores(ctx context.Context, n int) ([]storedRecord, error)
	Close() error
}

// memoryStore keeps records for the lifetime of the process. Used when no
// database is configured, and by tests.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]storedRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records: make(map[string]storedRecord),
	}
}

func (s *memoryStore) Load(ctx context.Context, id string) (storedRecord, error) {
	if err := ctx.Err(); err != nil {
		return storedRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return storedRecord{}, errNotFound
	}
	return rec, nil
}

func (s *memoryStore) Save(ctx context.Context, rec storedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec
	return nil
}

func (s *memoryStore) TopScores(ctx context.Context, n int) ([]storedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]storedRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sortByScore(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *memoryStore) Close() error {
	return nil
}

// sortByScore orders records by parsed score descending, name ascending as a
// tiebreak so leaderboards are stable.
func sortByScore(recs []storedRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a := parseIntField(recs[i].Score, 0)
		b := parseIntField(recs[j].Score, 0)
		if a != b {
			return a > b
		}
		return recs[i].Name < recs[j].Name
	})
}
