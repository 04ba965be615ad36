package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const playerBucket = "players"

// boltStore is the default durable tier, a single-file BoltDB database with
// one bucket of JSON-encoded player records.
type boltStore struct {
	db *bbolt.DB
}

func openBoltStore(path string) (*boltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &boltStore{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *boltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *boltStore) Save(ctx context.Context, rec storedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("player id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal player record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(playerBucket))
		if bucket == nil {
			return fmt.Errorf("player bucket is missing")
		}
		return bucket.Put([]byte(rec.ID), payload)
	})
}

func (s *boltStore) Load(ctx context.Context, id string) (storedRecord, error) {
	if err := ctx.Err(); err != nil {
		return storedRecord{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storedRecord{}, fmt.Errorf("player id is required")
	}

	var rec storedRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(playerBucket))
		if bucket == nil {
			return fmt.Errorf("player bucket is missing")
		}
		payload := bucket.Get([]byte(id))
		if payload == nil {
			return errNotFound
		}
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("unmarshal player record: %w", err)
		}
		return nil
	})
	if err != nil {
		return storedRecord{}, err
	}

	return rec, nil
}

func (s *boltStore) TopScores(ctx context.Context, n int) ([]storedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []storedRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(playerBucket))
		if bucket == nil {
			return fmt.Errorf("player bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(payload, &rec); err != nil {
				return nil // skip corrupt entries rather than failing the scan
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortByScore(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *boltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(playerBucket))
		if err != nil {
			return fmt.Errorf("create player bucket: %w", err)
		}
		return nil
	})
}
