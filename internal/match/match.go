package match

import (
	"regexp"
	"strings"

	"github.com/conorfennell/wordstage/internal/domain"
)

const optionSeparator = "/"

// parenthetical matches an optional clarification such as "(to run fast)".
var parenthetical = regexp.MustCompile(`\([^)]+\)`)

// Candidates expands an accepted answer into every form the user may type.
// Each "/"-separated option is accepted as written and with its
// parenthesized clarifications removed.
func Candidates(accepted string) []string {
	var out []string
	for _, option := range strings.Split(accepted, optionSeparator) {
		out = append(out,
			strings.TrimSpace(option),
			strings.TrimSpace(parenthetical.ReplaceAllString(option, "")),
		)
	}
	return out
}

// Matches reports whether typed is an accepted answer for card, given the
// text that was shown as the prompt. When shown is the english side the
// target side is expected, and the other way round.
func Matches(shown, typed string, card *domain.Card) bool {
	accepted := card.English
	if strings.TrimSpace(shown) == card.English {
		accepted = card.Target
	}

	typed = strings.TrimSpace(typed)
	for _, candidate := range Candidates(accepted) {
		if strings.EqualFold(typed, candidate) {
			return true
		}
	}
	return false
}
