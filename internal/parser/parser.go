package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/wordstage/internal/cardstore"
)

const (
	englishPrefix = "E:"
	targetPrefix  = "T:"
	separator     = "---"
)

type state int

const (
	seeking state = iota
	readingEnglish
	readingTarget
	betweenSides
)

// ParseFile reads a deck file from the given path and extracts all pairs.
func ParseFile(path string) ([]cardstore.Pair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

func stripPrefix(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}

// Parse reads a deck from an io.Reader. Each entry is an "E:" line with the
// english side and a "T:" line with the target side; following lines continue
// the current side and "---" ends an entry. Entries missing a side are dropped.
func Parse(r io.Reader) ([]cardstore.Pair, error) {
	scanner := bufio.NewScanner(r)
	var pairs []cardstore.Pair
	var current cardstore.Pair
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, " "))
		switch currentState {
		case readingEnglish:
			current.English = content
		case readingTarget:
			current.Target = content
		}
		block = nil
	}

	finishPair := func() {
		flushBlock()
		if current.English != "" && current.Target != "" {
			pairs = append(pairs, current)
		}
		current = cardstore.Pair{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		isE := strings.HasPrefix(line, englishPrefix)
		isT := strings.HasPrefix(line, targetPrefix)

		switch {
		case strings.TrimSpace(line) == separator:
			finishPair()
		case isE:
			if currentState != seeking || current != (cardstore.Pair{}) { // A new english side always starts a new entry
				finishPair()
			}
			currentState = readingEnglish
			block = append(block, stripPrefix(line, englishPrefix))
		case isT:
			flushBlock()
			currentState = readingTarget
			block = append(block, stripPrefix(line, targetPrefix))
		case strings.TrimSpace(line) == "":
			// Blank lines end a side but not the entry.
			flushBlock()
			if currentState != seeking {
				currentState = betweenSides
			}
		case currentState == readingEnglish || currentState == readingTarget:
			block = append(block, line)
		}
	}

	finishPair() // Finish the very last entry in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return pairs, nil
}
