// Package writing implements the free-text writing exercise: choosing the
// words a student has to use, and scoring the text through an Evaluator.
package writing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/conorfennell/wordstage/internal/domain"
)

// DefaultWordCount is the number of words put in a writing exercise.
const DefaultWordCount = 10

var (
	ErrInvalidConfig   = errors.New("invalid writing evaluator configuration")
	ErrInvalidRequest  = errors.New("invalid writing request")
	ErrInvalidResponse = errors.New("invalid evaluation response")
)

// Levels lists the CEFR levels a text can be evaluated against.
var Levels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// Request is what the student submits for evaluation.
type Request struct {
	Level    string `json:"level" validate:"required,oneof=A1 A2 B1 B2 C1 C2"`
	WordList string `json:"word_list" validate:"required"`
	Text     string `json:"text" validate:"required"`
}

// Assessment is the feedback and score for one category.
type Assessment struct {
	Feedback string  `json:"feedback"`
	Score    float64 `json:"score" validate:"min=0,max=10"`
}

// Evaluation is the scored result of a writing exercise.
type Evaluation struct {
	Words     Assessment `json:"words"`
	Spelling  Assessment `json:"spelling"`
	Grammar   Assessment `json:"grammar"`
	Semantics Assessment `json:"semantics"`
	Summary   string     `json:"summary"`

	// CorrectedText is the student's text annotated with <s></s> around
	// removals and <b></b> around additions.
	CorrectedText string `json:"corrected_text"`
}

// FinalScore is the lowest of the category scores.
func (e *Evaluation) FinalScore() float64 {
	return min(e.Words.Score, e.Spelling.Score, e.Grammar.Score, e.Semantics.Score)
}

// Evaluator scores a writing request, typically through a language model.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Evaluation, error)
}

// SelectWords returns the n cards the student struggled with most, by
// failures in their last review. Ties keep store order.
func SelectWords(cards []*domain.Card, n int) []*domain.Card {
	sorted := slices.Clone(cards)
	slices.SortStableFunc(sorted, func(a, b *domain.Card) int {
		return b.LastReviewFailures - a.LastReviewFailures
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// FormatWordList renders one "∙ target → english" line per card.
func FormatWordList(cards []*domain.Card) string {
	lines := make([]string, 0, len(cards))
	for _, c := range cards {
		lines = append(lines, fmt.Sprintf("∙ %s → %s", c.Target, c.English))
	}
	return strings.Join(lines, "\n")
}

// Instructions is the exercise statement shown to the student.
func Instructions(wordList string) string {
	return "Write a short text in the target language using the words listed below. " +
		"You must use each word at least once.\n\n" + wordList
}
