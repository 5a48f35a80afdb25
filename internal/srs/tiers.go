package srs

import "github.com/conorfennell/wordstage/internal/domain"

// Tier groups stages the way progress is reported.
type Tier int

const (
	TierApprentice Tier = iota
	TierGuru
	TierMaster
	TierEnlightened
	TierBurned
)

var tierNames = [...]string{"Apprentice", "Guru", "Master", "Enlightened", "Burned"}

func (t Tier) String() string {
	if t < TierApprentice || t > TierBurned {
		return "Unknown"
	}
	return tierNames[t]
}

// TierOf maps a stage to its tier.
func TierOf(s domain.Stage) Tier {
	switch {
	case s <= domain.Apprentice4:
		return TierApprentice
	case s <= domain.Guru2:
		return TierGuru
	case s == domain.Master:
		return TierMaster
	case s == domain.Enlightened:
		return TierEnlightened
	default:
		return TierBurned
	}
}

// TierCounts holds the number of cards in each tier, indexed by Tier.
type TierCounts [TierBurned + 1]int

// CountByTier counts cards per tier.
func CountByTier(cards []*domain.Card) TierCounts {
	var counts TierCounts
	for _, c := range cards {
		counts[TierOf(c.Stage)]++
	}
	return counts
}
