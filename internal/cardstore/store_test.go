package cardstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conorfennell/wordstage/internal/cardid"
	"github.com/conorfennell/wordstage/internal/domain"
	"github.com/conorfennell/wordstage/internal/storage"
)

// memoryBackend keeps the last saved set and can be told to fail.
type memoryBackend struct {
	cards   []domain.Card
	saved   bool
	saves   int
	saveErr error
}

func (m *memoryBackend) Load(ctx context.Context) ([]domain.Card, error) {
	if !m.saved {
		return nil, storage.ErrNotFound
	}
	return append([]domain.Card(nil), m.cards...), nil
}

func (m *memoryBackend) Save(ctx context.Context, cards []domain.Card) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cards = cards
	m.saved = true
	return nil
}

func openStore(t *testing.T, backend *memoryBackend) *Store {
	t.Helper()
	s, err := Open(context.Background(), backend, nil)
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	return s
}

func TestOpen(t *testing.T) {
	t.Run("not found is an empty store", func(t *testing.T) {
		s := openStore(t, &memoryBackend{})
		if s.Len() != 0 {
			t.Errorf("Expected an empty store, got %d cards", s.Len())
		}
	})

	t.Run("load error is returned", func(t *testing.T) {
		_, err := Open(context.Background(), failingLoader{}, nil)
		if err == nil {
			t.Fatal("Expected an error from a failing backend")
		}
	})

	t.Run("loaded cards get ids and are normalized", func(t *testing.T) {
		backend := &memoryBackend{saved: true, cards: []domain.Card{
			{English: "cat", Target: "gato", Stage: domain.Stage(11), LastReviewFailures: -1},
			{English: "cat", Target: "gato"},
			{English: "dog", Target: "perro"},
		}}
		s := openStore(t, backend)

		if s.Len() != 2 {
			t.Fatalf("Expected the duplicate to be dropped, got %d cards", s.Len())
		}
		cat := s.Cards()[0]
		if cat.ID != cardid.Of("cat", "gato") {
			t.Errorf("Expected id to be derived from the pair, got '%s'", cat.ID)
		}
		if cat.Stage != domain.Burned || cat.LastReviewFailures != 0 {
			t.Errorf("Expected stage clamped and failures reset, got %v / %d", cat.Stage, cat.LastReviewFailures)
		}
	})
}

type failingLoader struct{}

func (failingLoader) Load(ctx context.Context) ([]domain.Card, error) {
	return nil, errors.New("disk on fire")
}

func (failingLoader) Save(ctx context.Context, cards []domain.Card) error { return nil }

func TestAdd(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{}
	s := openStore(t, backend)

	card, added, err := s.Add(ctx, " cat ", "gato")
	if err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if !added || card.English != "cat" {
		t.Fatalf("Expected a new trimmed card, got added=%v card=%+v", added, card)
	}
	if card.Stage != domain.Apprentice1 || !card.Unreviewed() {
		t.Errorf("Expected a new card at stage 0 and unreviewed, got %+v", card)
	}
	if backend.saves != 1 || len(backend.cards) != 1 {
		t.Errorf("Expected one save with one card, got %d saves and %d cards", backend.saves, len(backend.cards))
	}

	again, added, err := s.Add(ctx, "cat", "gato")
	if err != nil {
		t.Fatalf("Expected a duplicate to be ignored without error, got %v", err)
	}
	if added || again != card {
		t.Error("Expected the duplicate to return the existing card")
	}
	if s.Len() != 1 || backend.saves != 1 {
		t.Errorf("Expected no new card and no save, got %d cards and %d saves", s.Len(), backend.saves)
	}

	if _, _, err := s.Add(ctx, "  ", "gato"); !errors.Is(err, ErrInvalidCard) {
		t.Errorf("Expected ErrInvalidCard for a blank side, got %v", err)
	}

	got, ok := s.Get(card.ID)
	if !ok || got != card {
		t.Error("Expected Get to return the added card")
	}
}

func TestAddAll(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{}
	s := openStore(t, backend)

	added, err := s.AddAll(ctx, []Pair{
		{English: "cat", Target: "gato"},
		{English: "dog", Target: "perro"},
		{English: "cat", Target: "gato"},
		{English: "", Target: "nada"},
	})
	if added != 2 {
		t.Errorf("Expected 2 cards added, got %d", added)
	}
	if !errors.Is(err, ErrInvalidCard) {
		t.Errorf("Expected the blank pair to be reported, got %v", err)
	}
	if backend.saves != 1 {
		t.Errorf("Expected a single save, got %d", backend.saves)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{}
	s := openStore(t, backend)

	cat, _, _ := s.Add(ctx, "cat", "gato")
	dog, _, _ := s.Add(ctx, "dog", "perro")
	bird, _, _ := s.Add(ctx, "bird", "pájaro")

	if err := s.Remove(ctx, dog.ID); err != nil {
		t.Fatalf("Remove() returned an unexpected error: %v", err)
	}
	cards := s.Cards()
	if len(cards) != 2 || cards[0] != cat || cards[1] != bird {
		t.Errorf("Expected cat and bird to remain in order, got %v", cards)
	}
	if _, ok := s.Get(dog.ID); ok {
		t.Error("Expected the removed card to be gone")
	}
	if err := s.Remove(ctx, dog.ID); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound, got %v", err)
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{saveErr: errors.New("read-only filesystem")}
	s := openStore(t, backend)

	card, added, err := s.Add(ctx, "cat", "gato")
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Expected ErrPersist, got %v", err)
	}
	if !added || s.Len() != 1 {
		t.Error("Expected the card to stay in memory after a failed save")
	}

	next := time.Now()
	card.NextReview = &next
	backend.saveErr = nil
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Expected a retry to succeed, got %v", err)
	}
	if len(backend.cards) != 1 || backend.cards[0].NextReview == nil {
		t.Error("Expected the pending state to be persisted on retry")
	}
}
