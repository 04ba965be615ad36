package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestBoltStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.db")
	store, err := openBoltStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec := encodeRecord(&PlayerRecord{
		ID:            "p1",
		Name:          "Alice",
		Score:         95,
		CurrentRound:  2,
		PendingChoice: ChoiceNone,
		TotalGames:    4,
	})

	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "Alice" || loaded.Score != "95" || loaded.TotalGames != "4" {
		t.Fatalf("unexpected record: %+v", loaded)
	}
}

func TestBoltStoreLoadNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.db")
	store, err := openBoltStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	_, err = store.Load(context.Background(), "missing")
	if !errors.Is(err, errNotFound) {
		t.Fatalf("expected errNotFound, got %v", err)
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.db")
	ctx := context.Background()

	store, err := openBoltStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Save(ctx, encodeRecord(&PlayerRecord{ID: "p1", Name: "Alice", Score: 77})); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := openBoltStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if loaded.Score != "77" {
		t.Fatalf("expected score 77, got %s", loaded.Score)
	}
}

func TestBoltStoreTopScores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.db")
	store, err := openBoltStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, p := range []*PlayerRecord{
		{ID: "p1", Name: "Alice", Score: 90},
		{ID: "p2", Name: "Bob", Score: 120},
		{ID: "p3", Name: "Carol", Score: 105},
	} {
		if err := store.Save(ctx, encodeRecord(p)); err != nil {
			t.Fatalf("save %s: %v", p.ID, err)
		}
	}

	top, err := store.TopScores(ctx, 2)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Name != "Bob" || top[1].Name != "Carol" {
		t.Fatalf("expected Bob then Carol, got %s then %s", top[0].Name, top[1].Name)
	}
}
