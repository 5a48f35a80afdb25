package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/conorfennell/wordstage/internal/domain"
)

func sampleCards() []domain.Card {
	next := time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC)
	return []domain.Card{
		{English: "cat", Target: "gato", Stage: domain.Apprentice3, NextReview: &next, LastReviewFailures: 2},
		{English: "dog", Target: "perro"},
		{English: "fire", Target: "fuego", Stage: domain.Burned},
	}
}

func assertCards(t *testing.T, got, expected []domain.Card) {
	t.Helper()
	if diff := cmp.Diff(expected, got, cmpopts.IgnoreFields(domain.Card{}, "ID"), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Loaded cards mismatch (-expected +got):\n%s", diff)
	}
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is not found", func(t *testing.T) {
		backend := NewFileBackend(filepath.Join(t.TempDir(), "data.yaml"))
		_, err := backend.Load(ctx)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		dir := t.TempDir()
		backend := NewFileBackend(filepath.Join(dir, "nested", "data.yaml"))
		if err := backend.Save(ctx, sampleCards()); err != nil {
			t.Fatalf("Save() returned an unexpected error: %v", err)
		}

		got, err := backend.Load(ctx)
		if err != nil {
			t.Fatalf("Load() returned an unexpected error: %v", err)
		}
		assertCards(t, got, sampleCards())

		entries, err := os.ReadDir(filepath.Join(dir, "nested"))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("Expected only the data file after save, found %d entries", len(entries))
		}
	})

	t.Run("loads the original layout", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.yaml")
		content := `cards:
- english: cat
  target: gato
  stage: 2
  nextReview: 2024-03-10 16:00:00
  lastReviewFailures: 1
- english: dog
  target: perro
- english: fire
  target: fuego
  stage: 8
  nextReview: null
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := NewFileBackend(path).Load(ctx)
		if err != nil {
			t.Fatalf("Load() returned an unexpected error: %v", err)
		}
		next := time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC)
		assertCards(t, got, []domain.Card{
			{English: "cat", Target: "gato", Stage: domain.Apprentice3, NextReview: &next, LastReviewFailures: 1},
			{English: "dog", Target: "perro"},
			{English: "fire", Target: "fuego", Stage: domain.Burned},
		})
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.yaml")
		if err := os.WriteFile(path, []byte("cards: [unterminated"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := NewFileBackend(path).Load(ctx)
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected a decode error, got %v", err)
		}
	})

	t.Run("save overwrites", func(t *testing.T) {
		backend := NewFileBackend(filepath.Join(t.TempDir(), "data.yaml"))
		if err := backend.Save(ctx, sampleCards()); err != nil {
			t.Fatal(err)
		}
		if err := backend.Save(ctx, sampleCards()[:1]); err != nil {
			t.Fatal(err)
		}
		got, err := backend.Load(ctx)
		if err != nil {
			t.Fatal(err)
		}
		assertCards(t, got, sampleCards()[:1])
	})
}

func TestDB(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "wordstage.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	defer db.Close()

	if _, err := db.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound from a fresh database, got %v", err)
	}

	if err := db.Save(ctx, sampleCards()); err != nil {
		t.Fatalf("Save() returned an unexpected error: %v", err)
	}
	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	assertCards(t, got, sampleCards())

	if err := db.Save(ctx, nil); err != nil {
		t.Fatalf("Save() of an empty set returned an unexpected error: %v", err)
	}
	got, err = db.Load(ctx)
	if err != nil {
		t.Fatalf("Expected an empty saved set to load without error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no cards, got %d", len(got))
	}
}
