package writing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

const systemPrompt = "You are a language teacher with many decades of experience behind you. " +
	"You are tasked with evaluating the writing of a student currently studying towards the %s level in the CEFR, " +
	"who was tasked with writing a short text in the target language using the words listed below. " +
	"Each word had to be used at least once. Consider the level of the student: for the same text, " +
	"scores should be lower as the level increases."

// GeminiConfig configures the Gemini evaluator.
type GeminiConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiEvaluator scores texts with a Gemini model constrained to a JSON schema.
type GeminiEvaluator struct {
	logger   *slog.Logger
	config   GeminiConfig
	validate *validator.Validate
	generate generateFunc
}

// NewGeminiEvaluator creates an evaluator backed by the Gemini API.
func NewGeminiEvaluator(ctx context.Context, logger *slog.Logger, config GeminiConfig) (*GeminiEvaluator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newGeminiEvaluator(logger, config, client.Models.GenerateContent), nil
}

func newGeminiEvaluator(logger *slog.Logger, config GeminiConfig, generate generateFunc) *GeminiEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 2 * time.Second
	}
	return &GeminiEvaluator{
		logger:   logger,
		config:   config,
		validate: validator.New(),
		generate: generate,
	}
}

// evaluationResponse is the JSON object the model is asked to produce.
type evaluationResponse struct {
	FeedbackWords    string  `json:"feedback_words" validate:"required"`
	ScoreWords       float64 `json:"score_words" validate:"min=0,max=10"`
	FeedbackSpelling string  `json:"feedback_spelling" validate:"required"`
	ScoreSpelling    float64 `json:"score_spelling" validate:"min=0,max=10"`
	FeedbackGrammar  string  `json:"feedback_grammar" validate:"required"`
	ScoreGrammar     float64 `json:"score_grammar" validate:"min=0,max=10"`
	FeedbackSemantic string  `json:"feedback_semantic" validate:"required"`
	ScoreSemantic    float64 `json:"score_semantic" validate:"min=0,max=10"`
	FeedbackFinal    string  `json:"feedback_final" validate:"required"`
	TextCorrected    string  `json:"text_corrected" validate:"required"`
}

func scoreSchema(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeNumber,
		Minimum:     genai.Ptr(0.0),
		Maximum:     genai.Ptr(10.0),
		Description: description,
	}
}

func feedbackSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

// responseSchema describes evaluationResponse to the model.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"feedback_words":    feedbackSchema("Whether each word in the list was used at least once. Be verbose, give concrete examples and address the student directly."),
			"score_words":       scoreSchema("Score for feedback_words. Be very strict, discounting points for each word that was not used."),
			"feedback_spelling": feedbackSchema("Feedback on the spelling of words in the text. Be verbose, give concrete examples and address the student directly."),
			"score_spelling":    scoreSchema("Score for feedback_spelling. Be very strict, discounting points for each spelling mistake."),
			"feedback_grammar":  feedbackSchema("Feedback on the grammar of the text, considering the level of the student. Address the student directly."),
			"score_grammar":     scoreSchema("Score for feedback_grammar. Be very strict, discounting points for each grammar mistake."),
			"feedback_semantic": feedbackSchema("Feedback on the semantics of the text: correct word usage and coherence, considering the level of the student. Address the student directly."),
			"score_semantic":    scoreSchema("Score for feedback_semantic. Be very strict, discounting points for each semantic mistake."),
			"feedback_final":    feedbackSchema("A summary of all other feedback with extra advice on how to improve. Address the student directly."),
			"text_corrected":    feedbackSchema("The corrected text as HTML. Only use <s></s> to strike out words that should be removed and <b></b> to highlight words that should be added. Copy unchanged parts as they are."),
		},
		Required: []string{
			"feedback_words", "score_words",
			"feedback_spelling", "score_spelling",
			"feedback_grammar", "score_grammar",
			"feedback_semantic", "score_semantic",
			"feedback_final", "text_corrected",
		},
		PropertyOrdering: []string{
			"feedback_words", "score_words",
			"feedback_spelling", "score_spelling",
			"feedback_grammar", "score_grammar",
			"feedback_semantic", "score_semantic",
			"feedback_final", "text_corrected",
		},
	}
}

func (g *GeminiEvaluator) contents(req Request) []*genai.Content {
	return []*genai.Content{
		genai.NewContentFromText("### Word list:\n\n"+req.WordList, genai.RoleUser),
		genai.NewContentFromText("### Student's text:\n\n"+req.Text, genai.RoleUser),
	}
}

func (g *GeminiEvaluator) generateConfig(req Request) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(fmt.Sprintf(systemPrompt, req.Level), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	}
}

// Evaluate sends the text to Gemini and parses the structured result.
// Transport errors are retried with exponential backoff; malformed or
// blocked responses are not.
func (g *GeminiEvaluator) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	if err := g.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	contents := g.contents(req)
	config := g.generateConfig(req)
	delay := g.config.RetryDelay

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.WarnContext(ctx, "Retrying Gemini call", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		g.logger.InfoContext(ctx, "Making Gemini API call",
			"model", g.config.Model,
			"level", req.Level,
			"attempt", attempt+1)

		resp, err := g.generate(ctx, g.config.Model, contents, config)
		if err != nil {
			lastErr = fmt.Errorf("failed to call Gemini: %w", err)
			continue
		}
		return g.parseResponse(resp)
	}
	return nil, lastErr
}

func (g *GeminiEvaluator) parseResponse(resp *genai.GenerateContentResponse) (*Evaluation, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", ErrInvalidResponse)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}
	return g.parseEvaluation(resp.Text())
}

func (g *GeminiEvaluator) parseEvaluation(text string) (*Evaluation, error) {
	var parsed evaluationResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}
	if err := g.validate.Struct(parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &Evaluation{
		Words:         Assessment{Feedback: parsed.FeedbackWords, Score: parsed.ScoreWords},
		Spelling:      Assessment{Feedback: parsed.FeedbackSpelling, Score: parsed.ScoreSpelling},
		Grammar:       Assessment{Feedback: parsed.FeedbackGrammar, Score: parsed.ScoreGrammar},
		Semantics:     Assessment{Feedback: parsed.FeedbackSemantic, Score: parsed.ScoreSemantic},
		Summary:       parsed.FeedbackFinal,
		CorrectedText: parsed.TextCorrected,
	}, nil
}
