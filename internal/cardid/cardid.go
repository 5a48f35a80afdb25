package cardid

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize joins the two sides of a card after cleaning each part.
// It trims whitespace and normalizes line endings but keeps case, so that
// "Run" and "run" stay distinct cards.
func Normalize(english, target string) string {
	normalizePart := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// Joined with a newline so "ab"+"c" and "a"+"bc" differ.
	return normalizePart(english) + "\n" + normalizePart(target)
}

// Of returns the stable identifier of an (english, target) pair as a hex SHA-256.
func Of(english, target string) string {
	sum := sha256.Sum256([]byte(Normalize(english, target)))
	return fmt.Sprintf("%x", sum)
}
