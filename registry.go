package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const maxNameLength = 20

// Registry owns the in-memory player record set and bridges every mutation
// to the durable store. It is not self-locking: the session coordinator
// serializes all access.
type Registry struct {
	store        RecordStore
	initialScore int

	players map[string]*PlayerRecord // player id -> live record
	conns   map[string]string        // connection id -> player id
}

func newRegistry(store RecordStore, initialScore int) *Registry {
	return &Registry{
		store:        store,
		initialScore: initialScore,
		players:      make(map[string]*PlayerRecord),
		conns:        make(map[string]string),
	}
}

// login validates the name, rehydrates or creates the record, binds the
// connection, and persists before returning. isNew reports whether a fresh
// identity was minted.
func (r *Registry) login(ctx context.Context, connID, playerID, name string) (rec *PlayerRecord, isNew bool, err error) {
	if name == "" {
		return nil, false, fmt.Errorf("%w: player name is required", errValidation)
	}
	if len([]rune(name)) > maxNameLength {
		return nil, false, fmt.Errorf("%w: player name must be at most %d characters", errValidation, maxNameLength)
	}

	if playerID != "" {
		if existing, ok := r.players[playerID]; ok {
			rec = existing
		} else {
			stored, loadErr := r.store.Load(ctx, playerID)
			switch {
			case loadErr == nil:
				rec = decodeRecord(stored, r.initialScore)
			case errors.Is(loadErr, errNotFound):
				// unknown id, mint a fresh identity below
			default:
				// An unreadable store must not fork the identity away from
				// its durable record.
				return nil, false, fmt.Errorf("%w: %v", errPersistence, loadErr)
			}
		}
	}

	if rec == nil {
		rec = &PlayerRecord{
			ID:            uuid.NewString(),
			Score:         r.initialScore,
			PendingChoice: ChoiceNone,
		}
		isNew = true
	}

	rec.Name = name

	if err := r.store.Save(ctx, encodeRecord(rec)); err != nil {
		return nil, false, fmt.Errorf("%w: %v", errPersistence, err)
	}

	r.players[rec.ID] = rec
	r.conns[connID] = rec.ID

	return rec, isNew, nil
}

// boundID resolves a connection to its player id.
func (r *Registry) boundID(connID string) (string, bool) {
	id, ok := r.conns[connID]
	return id, ok
}

// bound reports whether any live connection maps to the player.
func (r *Registry) bound(id string) bool {
	for _, playerID := range r.conns {
		if playerID == id {
			return true
		}
	}
	return false
}

// connsFor returns every connection id bound to the player. Usually one,
// but a reconnect can briefly overlap the old connection.
func (r *Registry) connsFor(id string) []string {
	var out []string
	for connID, playerID := range r.conns {
		if playerID == id {
			out = append(out, connID)
		}
	}
	return out
}

// get looks up the in-memory record, falling back to rehydration from the
// durable tier.
func (r *Registry) get(ctx context.Context, id string) (*PlayerRecord, error) {
	if rec, ok := r.players[id]; ok {
		return rec, nil
	}

	stored, err := r.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("%w: %v", errPersistence, err)
	}

	rec := decodeRecord(stored, r.initialScore)
	r.players[id] = rec
	return rec, nil
}

// mutate applies fn to the record and persists the result. If the write
// fails the in-memory state is rolled back so memory never acknowledges
// state the store missed.
func (r *Registry) mutate(ctx context.Context, id string, fn func(*PlayerRecord)) error {
	rec, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	before := rec.snapshot()
	fn(rec)

	if err := r.store.Save(ctx, encodeRecord(rec)); err != nil {
		*rec = before
		return fmt.Errorf("%w: %v", errPersistence, err)
	}

	return nil
}

// release unbinds the connection and, when no other connection still maps
// to the player, flushes a final write and drops the in-memory copy. The
// flush is best-effort: the durable copy was already written after the last
// gameplay mutation.
func (r *Registry) release(ctx context.Context, connID string, cfg *Config) {
	id, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)

	if r.bound(id) {
		return
	}

	if rec, ok := r.players[id]; ok {
		if err := r.store.Save(ctx, encodeRecord(rec)); err != nil {
			logf(cfg, "STORE: Final flush for %s failed: %v", id, err)
		}
		delete(r.players, id)
	}
}
