// Package cardstore owns the canonical in-memory card list and the boundary
// where it is loaded from and saved to a Backend.
package cardstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/wordstage/internal/cardid"
	"github.com/conorfennell/wordstage/internal/domain"
	"github.com/conorfennell/wordstage/internal/storage"
)

var (
	// ErrPersist marks a failure to write the card set. The in-memory state is
	// kept, so the caller can retry or warn.
	ErrPersist = errors.New("failed to persist cards")

	// ErrInvalidCard is returned when a card is missing a side.
	ErrInvalidCard = errors.New("invalid card")

	// ErrCardNotFound is returned when removing an unknown id.
	ErrCardNotFound = errors.New("card not found")
)

// Backend performs the byte I/O for a Store. Load returns storage.ErrNotFound
// when nothing was ever saved.
type Backend interface {
	Load(ctx context.Context) ([]domain.Card, error)
	Save(ctx context.Context, cards []domain.Card) error
}

// Store is the canonical card collection. Cards are handed out as pointers so
// a review session mutates the same values the store persists.
type Store struct {
	backend  Backend
	logger   *slog.Logger
	validate *validator.Validate
	cards    []*domain.Card
	byID     map[string]*domain.Card
}

// Open loads the card set from backend. A backend with no data yields an
// empty store.
func Open(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend:  backend,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		byID:     make(map[string]*domain.Card),
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load cards: %w", err)
		}
		logger.Info("No saved cards, starting with an empty store")
	}

	for i := range loaded {
		card := loaded[i]
		card.ID = cardid.Of(card.English, card.Target)
		card.Stage = card.Stage.Clamp()
		if card.LastReviewFailures < 0 {
			card.LastReviewFailures = 0
		}
		if _, dup := s.byID[card.ID]; dup {
			logger.Warn("Dropping duplicate card on load", "english", card.English, "target", card.Target)
			continue
		}
		s.insert(&card)
	}

	logger.Debug("Card store opened", "cards", len(s.cards))
	return s, nil
}

func (s *Store) insert(card *domain.Card) {
	s.cards = append(s.cards, card)
	s.byID[card.ID] = card
}

// Cards returns the cards in insertion order. The slice is a copy; the cards
// are shared.
func (s *Store) Cards() []*domain.Card {
	out := make([]*domain.Card, len(s.cards))
	copy(out, s.cards)
	return out
}

// Len returns the number of cards.
func (s *Store) Len() int {
	return len(s.cards)
}

// Get looks a card up by id.
func (s *Store) Get(id string) (*domain.Card, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Pair is an (english, target) entry to add.
type Pair struct {
	English string
	Target  string
}

func (s *Store) newCard(p Pair) (*domain.Card, error) {
	card := &domain.Card{
		English: strings.TrimSpace(p.English),
		Target:  strings.TrimSpace(p.Target),
	}
	if err := s.validate.Struct(card); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}
	card.ID = cardid.Of(card.English, card.Target)
	return card, nil
}

// Add appends a new card and saves the store. Adding a pair that already
// exists is not an error: the existing card is returned with added false.
func (s *Store) Add(ctx context.Context, english, target string) (*domain.Card, bool, error) {
	card, err := s.newCard(Pair{English: english, Target: target})
	if err != nil {
		return nil, false, err
	}
	if existing, ok := s.byID[card.ID]; ok {
		s.logger.Debug("Ignoring duplicate card", "english", card.English, "target", card.Target)
		return existing, false, nil
	}

	s.insert(card)
	s.logger.Info("Card added", "id", card.ID, "english", card.English, "target", card.Target)
	return card, true, s.Save(ctx)
}

// AddAll adds every valid, new pair and saves once. Invalid pairs are skipped
// and reported in the returned error alongside the count of added cards.
func (s *Store) AddAll(ctx context.Context, pairs []Pair) (int, error) {
	var added int
	var errs []error
	for _, p := range pairs {
		card, err := s.newCard(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := s.byID[card.ID]; ok {
			continue
		}
		s.insert(card)
		added++
	}

	if added > 0 {
		if err := s.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return added, errors.Join(errs...)
}

// Remove deletes the card with the given id and saves the store.
func (s *Store) Remove(ctx context.Context, id string) error {
	card, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}

	delete(s.byID, id)
	for i, c := range s.cards {
		if c == card {
			s.cards = append(s.cards[:i], s.cards[i+1:]...)
			break
		}
	}
	s.logger.Info("Card removed", "id", id, "english", card.English)
	return s.Save(ctx)
}

// Save overwrites the backend with the whole card set.
func (s *Store) Save(ctx context.Context) error {
	snapshot := make([]domain.Card, len(s.cards))
	for i, c := range s.cards {
		snapshot[i] = *c
	}
	if err := s.backend.Save(ctx, snapshot); err != nil {
		s.logger.Error("Failed to save cards", "cards", len(snapshot), "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
