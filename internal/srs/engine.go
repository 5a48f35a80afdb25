package srs

import (
	"math/rand/v2"
	"time"

	"github.com/conorfennell/wordstage/internal/domain"
)

// DefaultWaits is the time a card waits at each stage before it can advance
// to the next one. Burned has no entry: it is terminal.
var DefaultWaits = []time.Duration{
	4 * time.Hour,        // Apprentice 1 -> Apprentice 2
	8 * time.Hour,        // Apprentice 2 -> Apprentice 3
	24 * time.Hour,       // Apprentice 3 -> Apprentice 4
	2 * 24 * time.Hour,   // Apprentice 4 -> Guru 1
	7 * 24 * time.Hour,   // Guru 1       -> Guru 2
	14 * 24 * time.Hour,  // Guru 2       -> Master
	28 * 24 * time.Hour,  // Master       -> Enlightened
	112 * 24 * time.Hour, // Enlightened  -> Burned
}

// Engine schedules cards through the stage table.
type Engine struct {
	Waits []time.Duration
	rng   *rand.Rand
}

// NewEngine returns an engine using DefaultWaits. A nil rng falls back to a
// randomly seeded source.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{Waits: DefaultWaits, rng: rng}
}

// Rand exposes the engine's random source so a session draws from the same stream.
func (e *Engine) Rand() *rand.Rand {
	return e.rng
}

// CardsToReview returns the cards that are due at now, shuffled.
// A card is due when it was never reviewed or its next review is not after now.
// Burned cards are never due.
func (e *Engine) CardsToReview(cards []*domain.Card, now time.Time) []*domain.Card {
	var due []*domain.Card
	for _, c := range cards {
		if c.Retired() {
			continue
		}
		if c.NextReview == nil || !c.NextReview.After(now) {
			due = append(due, c)
		}
	}

	e.rng.Shuffle(len(due), func(i, j int) {
		due[i], due[j] = due[j], due[i]
	})
	return due
}

// ApplyOutcome records a single answer. Only failures are tracked here; the
// stage and due date move once per session in Finalize.
func (e *Engine) ApplyOutcome(card *domain.Card, correct bool) {
	if !correct {
		card.LastReviewFailures++
	}
}

// NextStage computes the stage after a session with the given number of failures.
func (e *Engine) NextStage(stage domain.Stage, failures int) domain.Stage {
	if failures <= 0 {
		return (stage + 1).Clamp()
	}

	// ceil(failures / 2), doubled from Guru upwards.
	penalty := (failures + 1) / 2
	if stage >= domain.Guru1 {
		penalty *= 2
	}
	return (stage - domain.Stage(penalty)).Clamp()
}

// NextReview returns when a card that just reached stage is due again, or nil
// when the stage has no wait (the card is retired).
func (e *Engine) NextReview(stage domain.Stage, now time.Time) *time.Time {
	if stage < 0 || int(stage) >= len(e.Waits) {
		return nil
	}
	next := TruncateToHour(now.Add(e.Waits[stage]))
	return &next
}

// Finalize commits the net result of a session to each reviewed card.
func (e *Engine) Finalize(reviewed []*domain.Card, now time.Time) {
	for _, c := range reviewed {
		c.Stage = e.NextStage(c.Stage, c.LastReviewFailures)
		c.NextReview = e.NextReview(c.Stage, now)
	}
}

// TruncateToHour zeroes minutes, seconds and nanoseconds in t's own location.
// time.Truncate works on absolute time and would be off for zones with a
// non-hour UTC offset.
func TruncateToHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
