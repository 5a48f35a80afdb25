// Package review runs review sessions: it draws due cards into an active
// batch, poses them one at a time, and commits the results through the srs
// engine when the batch drains.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conorfennell/wordstage/internal/cardstore"
	"github.com/conorfennell/wordstage/internal/domain"
	"github.com/conorfennell/wordstage/internal/match"
	"github.com/conorfennell/wordstage/internal/srs"
)

// DefaultBatchSize is the number of cards drawn into a session.
const DefaultBatchSize = 20

var (
	// ErrSessionComplete is returned by Next when the active batch is empty.
	ErrSessionComplete = errors.New("review session complete")

	// ErrNoPrompt is returned by Check when no card is being shown.
	ErrNoPrompt = errors.New("no card is being reviewed")
)

// Mode selects how prompts are posed.
type Mode int

const (
	ModeEnglishToTarget Mode = iota
	ModeTargetToEnglish
	ModeBoth
)

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english-to-target", "":
		return ModeEnglishToTarget, nil
	case "target-to-english":
		return ModeTargetToEnglish, nil
	case "both":
		return ModeBoth, nil
	default:
		return 0, fmt.Errorf("unknown review direction %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeTargetToEnglish:
		return "target-to-english"
	case ModeBoth:
		return "both"
	default:
		return "english-to-target"
	}
}

// Prompt is the card currently asked and the side it is shown from.
type Prompt struct {
	Card      *domain.Card
	Direction domain.Direction
}

// Shown returns the text presented to the user.
func (p Prompt) Shown() string {
	return p.Direction.Shown(p.Card)
}

// Outcome is the result of checking an answer.
type Outcome struct {
	// Checked is false when the answer was blank and nothing happened.
	Checked bool
	Correct bool
	Card    *domain.Card
}

// Status reports the session counters.
type Status struct {
	InReview int
	Reviewed int
	Backlog  int
}

// Session is one review run over a card store. It is not safe for
// concurrent use.
type Session struct {
	store     *cardstore.Store
	engine    *srs.Engine
	logger    *slog.Logger
	BatchSize int
	Mode      Mode

	backlog   []*domain.Card
	active    []*domain.Card
	completed []*domain.Card
	current   *Prompt
	loaded    bool
}

// NewSession creates a session over store.
func NewSession(store *cardstore.Store, engine *srs.Engine, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:     store,
		engine:    engine,
		logger:    logger,
		BatchSize: DefaultBatchSize,
		Mode:      ModeEnglishToTarget,
	}
}

// Due recomputes the backlog from the full store.
func (s *Session) Due(now time.Time) []*domain.Card {
	s.backlog = s.engine.CardsToReview(s.store.Cards(), now)
	s.loaded = true
	return s.backlog
}

// Start fills the active batch up to BatchSize with cards drawn at random from
// the due backlog and returns how many were drawn.
func (s *Session) Start(now time.Time) int {
	if !s.loaded {
		s.Due(now)
	}

	rng := s.engine.Rand()
	drawn := 0
	for len(s.active) < s.BatchSize && len(s.backlog) > 0 {
		i := rng.IntN(len(s.backlog))
		card := s.backlog[i]
		s.backlog = append(s.backlog[:i], s.backlog[i+1:]...)

		card.LastReviewFailures = 0
		s.active = append(s.active, card)
		drawn++
	}

	s.logger.Info("Review session started", "drawn", drawn, "in_review", len(s.active), "backlog", len(s.backlog))
	return drawn
}

// Next shows the head of the active batch. Under ModeBoth the direction is
// drawn afresh every time a card is shown.
func (s *Session) Next() (Prompt, error) {
	if len(s.active) == 0 {
		s.current = nil
		return Prompt{}, ErrSessionComplete
	}

	dir := domain.EnglishToTarget
	switch s.Mode {
	case ModeTargetToEnglish:
		dir = domain.TargetToEnglish
	case ModeBoth:
		dir = domain.Direction(s.engine.Rand().IntN(2))
	}

	s.current = &Prompt{Card: s.active[0], Direction: dir}
	return *s.current, nil
}

// Current returns the prompt being shown, if any.
func (s *Session) Current() (Prompt, bool) {
	if s.current == nil {
		return Prompt{}, false
	}
	return *s.current, true
}

// Check grades answer against the current prompt. A correct card leaves the
// batch; a wrong one goes to the back of it and will be asked again.
func (s *Session) Check(answer string) (Outcome, error) {
	if strings.TrimSpace(answer) == "" {
		return Outcome{}, nil
	}
	if s.current == nil {
		return Outcome{}, ErrNoPrompt
	}

	prompt := *s.current
	s.current = nil
	s.active = s.active[1:]

	correct := match.Matches(prompt.Shown(), answer, prompt.Card)
	s.engine.ApplyOutcome(prompt.Card, correct)
	if correct {
		s.completed = append(s.completed, prompt.Card)
	} else {
		s.active = append(s.active, prompt.Card)
	}

	s.logger.Debug("Answer checked",
		"card", prompt.Card.ID,
		"direction", prompt.Direction.String(),
		"correct", correct,
		"failures", prompt.Card.LastReviewFailures,
	)
	return Outcome{Checked: true, Correct: correct, Card: prompt.Card}, nil
}

// Active reports whether cards are in review or waiting to be committed.
func (s *Session) Active() bool {
	return len(s.active) > 0 || len(s.completed) > 0
}

// Forget drops a card that was removed from the store from every session set.
func (s *Session) Forget(id string) {
	drop := func(cards []*domain.Card) []*domain.Card {
		out := cards[:0]
		for _, c := range cards {
			if c.ID != id {
				out = append(out, c)
			}
		}
		return out
	}
	s.backlog = drop(s.backlog)
	s.active = drop(s.active)
	s.completed = drop(s.completed)
	if s.current != nil && s.current.Card.ID == id {
		s.current = nil
	}
}

// Status returns the current counters.
func (s *Session) Status() Status {
	return Status{InReview: len(s.active), Reviewed: len(s.completed), Backlog: len(s.backlog)}
}

// End commits every completed card, recomputes the due backlog and saves the
// store. Cards still in the batch keep their previous schedule. A save error
// is returned with the in-memory state left committed.
func (s *Session) End(ctx context.Context, now time.Time) error {
	reviewed := len(s.completed)
	s.engine.Finalize(s.completed, now)
	s.completed = nil
	s.active = nil
	s.current = nil
	s.Due(now)

	s.logger.Info("Review session finished", "reviewed", reviewed, "due", len(s.backlog))

	if err := s.store.Save(ctx); err != nil {
		return fmt.Errorf("failed to save review results: %w", err)
	}
	return nil
}
