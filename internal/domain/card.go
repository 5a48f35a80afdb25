package domain

import "time"

// Stage is the mastery stage of a card, from Apprentice 1 (0) up to Burned (8).
type Stage int

const (
	Apprentice1 Stage = iota
	Apprentice2
	Apprentice3
	Apprentice4
	Guru1
	Guru2
	Master
	Enlightened
	Burned
)

var stageNames = [...]string{
	"Apprentice 1", "Apprentice 2", "Apprentice 3", "Apprentice 4",
	"Guru 1", "Guru 2", "Master", "Enlightened", "Burned",
}

// String returns the display name of the stage.
func (s Stage) String() string {
	if s < Apprentice1 || s > Burned {
		return "Unknown"
	}
	return stageNames[s]
}

// Clamp forces the stage into [Apprentice1, Burned].
func (s Stage) Clamp() Stage {
	if s < Apprentice1 {
		return Apprentice1
	}
	if s > Burned {
		return Burned
	}
	return s
}

// Card is a single vocabulary entry: an English word and its translation in the
// target language, plus its review state.
type Card struct {
	ID      string
	English string `validate:"required"`
	Target  string `validate:"required"`
	Stage   Stage  `validate:"min=0,max=8"`

	// NextReview is nil for a card that was never reviewed, and for a burned one.
	NextReview *time.Time

	// LastReviewFailures counts wrong answers in the most recent session.
	LastReviewFailures int `validate:"min=0"`
}

// Retired reports whether the card has been burned and left the review cycle.
func (c *Card) Retired() bool {
	return c.Stage >= Burned
}

// Unreviewed reports whether the card has never been scheduled.
func (c *Card) Unreviewed() bool {
	return c.NextReview == nil && !c.Retired()
}

// Direction is the side of a card shown as the prompt.
type Direction int

const (
	EnglishToTarget Direction = iota
	TargetToEnglish
)

func (d Direction) String() string {
	if d == TargetToEnglish {
		return "target-to-english"
	}
	return "english-to-target"
}

// Shown returns the text displayed for the card in this direction.
func (d Direction) Shown(c *Card) string {
	if d == TargetToEnglish {
		return c.Target
	}
	return c.English
}

// Expected returns the side the user has to type.
func (d Direction) Expected(c *Card) string {
	if d == TargetToEnglish {
		return c.English
	}
	return c.Target
}
