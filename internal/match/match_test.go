package match

import (
	"reflect"
	"testing"

	"github.com/conorfennell/wordstage/internal/domain"
)

func TestCandidates(t *testing.T) {
	testCases := []struct {
		name     string
		accepted string
		expected []string
	}{
		{
			name:     "Single word",
			accepted: "gato",
			expected: []string{"gato", "gato"},
		},
		{
			name:     "Parenthetical",
			accepted: "correr (to run fast)",
			expected: []string{"correr (to run fast)", "correr"},
		},
		{
			name:     "Alternatives",
			accepted: "big / large",
			expected: []string{"big", "big", "large", "large"},
		},
		{
			name:     "Several parentheticals",
			accepted: "(el) perro (m)",
			expected: []string{"(el) perro (m)", "perro"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Candidates(tc.accepted)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Expected candidates %q, but got %q", tc.expected, got)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	run := &domain.Card{English: "run", Target: "correr (to run fast)"}
	big := &domain.Card{English: "big/large", Target: "grande"}
	sized := &domain.Card{English: "big", Target: "big/large"}

	testCases := []struct {
		name     string
		shown    string
		typed    string
		card     *domain.Card
		expected bool
	}{
		{"full target with parenthetical", "run", "correr (to run fast)", run, true},
		{"target without parenthetical", "run", "correr", run, true},
		{"case insensitive", "run", "CORRER", run, true},
		{"typed answer is trimmed", "run", "  correr  ", run, true},
		{"shown text is trimmed", "run\n\n", "correr", run, true},
		{"wrong answer", "run", "andar", run, false},
		{"partial answer", "run", "corre", run, false},
		{"reverse direction", "correr (to run fast)", "run", run, true},
		{"reverse direction rejects target", "correr (to run fast)", "correr", run, false},
		{"english alternatives first", "grande", "big", big, true},
		{"english alternatives second", "grande", "large", big, true},
		{"slash alternatives on target", "big", "large", sized, true},
		{"slash alternatives on target first", "big", "big", sized, true},
		{"whole slash string is not accepted", "big", "big/large", sized, false},
		{"empty typed answer", "run", "", run, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.shown, tc.typed, tc.card); got != tc.expected {
				t.Errorf("Matches(%q, %q) = %v, expected %v", tc.shown, tc.typed, got, tc.expected)
			}
		})
	}
}
