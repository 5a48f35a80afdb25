package writing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/conorfennell/wordstage/internal/domain"
)

func TestSelectWords(t *testing.T) {
	cards := []*domain.Card{
		{English: "cat", Target: "gato", LastReviewFailures: 1},
		{English: "dog", Target: "perro", LastReviewFailures: 3},
		{English: "bird", Target: "pájaro"},
		{English: "fish", Target: "pez", LastReviewFailures: 1},
		{English: "horse", Target: "caballo", LastReviewFailures: 3},
	}

	got := SelectWords(cards, 4)
	expected := []string{"dog", "horse", "cat", "fish"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d words, got %d", len(expected), len(got))
	}
	for i, w := range expected {
		if got[i].English != w {
			t.Errorf("Position %d: expected '%s', got '%s'", i, w, got[i].English)
		}
	}
	if cards[0].English != "cat" {
		t.Error("Expected the input order to be left alone")
	}

	if all := SelectWords(cards, 10); len(all) != len(cards) {
		t.Errorf("Expected every card when n exceeds the set, got %d", len(all))
	}
}

func TestFormatWordList(t *testing.T) {
	cards := []*domain.Card{
		{English: "cat", Target: "gato"},
		{English: "dog", Target: "perro"},
	}
	expected := "∙ gato → cat\n∙ perro → dog"
	if got := FormatWordList(cards); got != expected {
		t.Errorf("Expected '%s', got '%s'", expected, got)
	}
	if !strings.HasSuffix(Instructions(expected), expected) {
		t.Error("Expected the instructions to end with the word list")
	}
}

func TestFinalScore(t *testing.T) {
	e := &Evaluation{
		Words:     Assessment{Score: 9},
		Spelling:  Assessment{Score: 6.5},
		Grammar:   Assessment{Score: 8},
		Semantics: Assessment{Score: 7},
	}
	if got := e.FinalScore(); got != 6.5 {
		t.Errorf("Expected the lowest score 6.5, got %v", got)
	}
}

const validResponse = `{
	"feedback_words": "You used every word.",
	"score_words": 10,
	"feedback_spelling": "One typo.",
	"score_spelling": 8,
	"feedback_grammar": "Mind the gender of gato.",
	"score_grammar": 6,
	"feedback_semantic": "Coherent.",
	"score_semantic": 9,
	"feedback_final": "Good work.",
	"text_corrected": "<s>la</s> <b>el</b> gato"
}`

func responseWith(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func validRequest() Request {
	return Request{Level: "B1", WordList: "∙ gato → cat", Text: "El gato duerme."}
}

func TestGeminiEvaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a structured response", func(t *testing.T) {
		var gotModel string
		var gotConfig *genai.GenerateContentConfig
		g := newGeminiEvaluator(nil, GeminiConfig{}, func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotConfig = config
			return responseWith(validResponse), nil
		})

		eval, err := g.Evaluate(ctx, validRequest())
		if err != nil {
			t.Fatalf("Evaluate() returned an unexpected error: %v", err)
		}
		if gotModel != DefaultModel {
			t.Errorf("Expected default model '%s', got '%s'", DefaultModel, gotModel)
		}
		if gotConfig.ResponseMIMEType != "application/json" || gotConfig.ResponseSchema == nil {
			t.Error("Expected a JSON schema constrained request")
		}
		if !strings.Contains(gotConfig.SystemInstruction.Parts[0].Text, "B1") {
			t.Error("Expected the level in the system instruction")
		}
		if eval.Grammar.Score != 6 || eval.FinalScore() != 6 {
			t.Errorf("Expected grammar score 6 and final score 6, got %v / %v", eval.Grammar.Score, eval.FinalScore())
		}
		if eval.CorrectedText != "<s>la</s> <b>el</b> gato" {
			t.Errorf("Unexpected corrected text '%s'", eval.CorrectedText)
		}
	})

	t.Run("invalid request", func(t *testing.T) {
		g := newGeminiEvaluator(nil, GeminiConfig{}, nil)
		req := validRequest()
		req.Level = "D9"
		if _, err := g.Evaluate(ctx, req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("score out of range", func(t *testing.T) {
		bad := strings.Replace(validResponse, `"score_words": 10`, `"score_words": 11`, 1)
		g := newGeminiEvaluator(nil, GeminiConfig{}, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return responseWith(bad), nil
		})
		if _, err := g.Evaluate(ctx, validRequest()); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("Expected ErrInvalidResponse, got %v", err)
		}
	})

	t.Run("malformed JSON is not retried", func(t *testing.T) {
		calls := 0
		g := newGeminiEvaluator(nil, GeminiConfig{MaxRetries: 3}, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			return responseWith("not json"), nil
		})
		if _, err := g.Evaluate(ctx, validRequest()); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("Expected ErrInvalidResponse, got %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected a single call, got %d", calls)
		}
	})

	t.Run("transport errors are retried", func(t *testing.T) {
		calls := 0
		g := newGeminiEvaluator(nil, GeminiConfig{MaxRetries: 2, RetryDelay: time.Millisecond}, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("503 unavailable")
			}
			return responseWith(validResponse), nil
		})
		if _, err := g.Evaluate(ctx, validRequest()); err != nil {
			t.Fatalf("Expected success after retries, got %v", err)
		}
		if calls != 3 {
			t.Errorf("Expected 3 calls, got %d", calls)
		}
	})

	t.Run("blocked content", func(t *testing.T) {
		g := newGeminiEvaluator(nil, GeminiConfig{}, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			resp := responseWith(validResponse)
			resp.Candidates[0].FinishReason = genai.FinishReasonSafety
			return resp, nil
		})
		if _, err := g.Evaluate(ctx, validRequest()); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("Expected ErrInvalidResponse, got %v", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		if _, err := NewGeminiEvaluator(ctx, nil, GeminiConfig{}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}
