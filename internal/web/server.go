// Package web exposes the card store, a review session and the writing
// exercise as a JSON HTTP API.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/wordstage/internal/cardstore"
	"github.com/conorfennell/wordstage/internal/domain"
	"github.com/conorfennell/wordstage/internal/review"
	"github.com/conorfennell/wordstage/internal/srs"
	"github.com/conorfennell/wordstage/internal/writing"
)

// Options configures a Server. Evaluator may be nil, in which case writing
// evaluation answers 503.
type Options struct {
	Evaluator writing.Evaluator
	WordCount int
	Level     string
	Now       func() time.Time
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	store     *cardstore.Store
	engine    *srs.Engine
	session   *review.Session
	evaluator writing.Evaluator
	logger    *slog.Logger
	router    *http.ServeMux
	wordCount int
	level     string
	now       func() time.Time

	// mu guards the store, the session and sessionID. The evaluator runs
	// without it.
	mu        sync.Mutex
	sessionID string
}

// NewServer creates and configures a new server.
func NewServer(store *cardstore.Store, engine *srs.Engine, session *review.Session, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WordCount <= 0 {
		opts.WordCount = writing.DefaultWordCount
	}
	if opts.Level == "" {
		opts.Level = "B1"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		store:     store,
		engine:    engine,
		session:   session,
		evaluator: opts.Evaluator,
		logger:    logger,
		router:    http.NewServeMux(),
		wordCount: opts.WordCount,
		level:     opts.Level,
		now:       opts.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /cards", s.handleListCards())
	s.router.HandleFunc("POST /cards", s.handleAddCard())
	s.router.HandleFunc("DELETE /cards/{id}", s.handleRemoveCard())
	s.router.HandleFunc("GET /stats", s.handleStats())

	s.router.HandleFunc("POST /review/start", s.handleStartReview())
	s.router.HandleFunc("GET /review/next", s.handleNextPrompt())
	s.router.HandleFunc("POST /review/check", s.handleCheckAnswer())

	s.router.HandleFunc("GET /writing/words", s.handleWritingWords())
	s.router.HandleFunc("POST /writing/evaluate", s.handleEvaluate())
}

type cardResponse struct {
	ID                 string     `json:"id"`
	English            string     `json:"english"`
	Target             string     `json:"target"`
	Stage              int        `json:"stage"`
	StageName          string     `json:"stage_name"`
	Tier               string     `json:"tier"`
	NextReview         *time.Time `json:"next_review"`
	LastReviewFailures int        `json:"last_review_failures"`
	Retired            bool       `json:"retired"`
}

func newCardResponse(c *domain.Card) cardResponse {
	return cardResponse{
		ID:                 c.ID,
		English:            c.English,
		Target:             c.Target,
		Stage:              int(c.Stage),
		StageName:          c.Stage.String(),
		Tier:               srs.TierOf(c.Stage).String(),
		NextReview:         c.NextReview,
		LastReviewFailures: c.LastReviewFailures,
		Retired:            c.Retired(),
	}
}

type statusResponse struct {
	InReview int `json:"in_review"`
	Reviewed int `json:"reviewed"`
	Backlog  int `json:"backlog"`
}

func newStatusResponse(st review.Status) statusResponse {
	return statusResponse{InReview: st.InReview, Reviewed: st.Reviewed, Backlog: st.Backlog}
}

// handleListCards returns every card in store order.
func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		cards := s.store.Cards()
		out := make([]cardResponse, 0, len(cards))
		for _, c := range cards {
			out = append(out, newCardResponse(c))
		}
		s.mu.Unlock()

		s.respondJSON(w, http.StatusOK, out)
	}
}

type addCardRequest struct {
	English string `json:"english"`
	Target  string `json:"target"`
}

// handleAddCard adds a card. A pair that already exists answers 200 with the
// existing card instead of 201.
func (s *Server) handleAddCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addCardRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		s.mu.Lock()
		card, added, err := s.store.Add(r.Context(), req.English, req.Target)
		var resp cardResponse
		if card != nil {
			resp = newCardResponse(card)
		}
		s.mu.Unlock()

		switch {
		case errors.Is(err, cardstore.ErrInvalidCard):
			s.respondError(w, r, http.StatusBadRequest, err.Error())
		case err != nil:
			s.logger.Error("Error saving new card", "error", err)
			s.respondError(w, r, http.StatusInternalServerError, "card added but could not be saved")
		case added:
			s.respondJSON(w, http.StatusCreated, resp)
		default:
			s.respondJSON(w, http.StatusOK, resp)
		}
	}
}

// handleRemoveCard deletes a card and drops it from the running session.
func (s *Server) handleRemoveCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		s.mu.Lock()
		err := s.store.Remove(r.Context(), id)
		if err == nil || errors.Is(err, cardstore.ErrPersist) {
			s.session.Forget(id)
		}
		s.mu.Unlock()

		switch {
		case errors.Is(err, cardstore.ErrCardNotFound):
			s.respondError(w, r, http.StatusNotFound, err.Error())
		case err != nil:
			s.logger.Error("Error saving after card removal", "id", id, "error", err)
			s.respondError(w, r, http.StatusInternalServerError, "card removed but could not be saved")
		default:
			s.respondJSON(w, http.StatusNoContent, nil)
		}
	}
}

type statsResponse struct {
	Total   int            `json:"total"`
	Due     int            `json:"due"`
	Tiers   map[string]int `json:"tiers"`
	Session statusResponse `json:"session"`
}

// handleStats reports the due count and how many cards sit in each tier.
func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		cards := s.store.Cards()
		due := len(s.engine.CardsToReview(cards, s.now()))
		counts := srs.CountByTier(cards)
		status := s.session.Status()
		s.mu.Unlock()

		tiers := make(map[string]int, len(counts))
		for t, n := range counts {
			tiers[srs.Tier(t).String()] = n
		}
		s.respondJSON(w, http.StatusOK, statsResponse{
			Total:   len(cards),
			Due:     due,
			Tiers:   tiers,
			Session: newStatusResponse(status),
		})
	}
}

type startResponse struct {
	SessionID string         `json:"session_id"`
	Drawn     int            `json:"drawn"`
	Status    statusResponse `json:"status"`
}

// handleStartReview starts a new session, or tops up the running one, and
// hands out a fresh session id. Any older id becomes stale.
func (s *Server) handleStartReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		now := s.now()
		if !s.session.Active() {
			s.session.Due(now)
		}
		drawn := s.session.Start(now)
		s.sessionID = uuid.NewString()
		resp := startResponse{
			SessionID: s.sessionID,
			Drawn:     drawn,
			Status:    newStatusResponse(s.session.Status()),
		}
		s.mu.Unlock()

		s.respondJSON(w, http.StatusOK, resp)
	}
}

type promptResponse struct {
	Complete  bool           `json:"complete"`
	CardID    string         `json:"card_id,omitempty"`
	Shown     string         `json:"shown,omitempty"`
	Direction string         `json:"direction,omitempty"`
	Status    statusResponse `json:"status"`
}

// handleNextPrompt shows the next card. When the batch has drained the
// results are committed and saved, and the response says the session is
// complete.
func (s *Server) handleNextPrompt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.validSession(r.URL.Query().Get("session")) {
			s.respondError(w, r, http.StatusConflict, "unknown or stale review session")
			return
		}

		prompt, err := s.session.Next()
		if errors.Is(err, review.ErrSessionComplete) {
			if s.session.Active() {
				if err := s.session.End(r.Context(), s.now()); err != nil {
					s.logger.Error("Error saving review results", "error", err)
					s.respondError(w, r, http.StatusInternalServerError, "review results could not be saved")
					return
				}
			}
			s.respondJSON(w, http.StatusOK, promptResponse{
				Complete: true,
				Status:   newStatusResponse(s.session.Status()),
			})
			return
		}

		s.respondJSON(w, http.StatusOK, promptResponse{
			CardID:    prompt.Card.ID,
			Shown:     prompt.Shown(),
			Direction: prompt.Direction.String(),
			Status:    newStatusResponse(s.session.Status()),
		})
	}
}

type checkRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type checkResponse struct {
	Checked  bool           `json:"checked"`
	Correct  bool           `json:"correct"`
	Expected string         `json:"expected,omitempty"`
	Card     *cardResponse  `json:"card,omitempty"`
	Status   statusResponse `json:"status"`
}

// handleCheckAnswer grades an answer against the card last shown. A blank
// answer is accepted and changes nothing.
func (s *Server) handleCheckAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.validSession(req.SessionID) {
			s.respondError(w, r, http.StatusConflict, "unknown or stale review session")
			return
		}

		prompt, shown := s.session.Current()
		outcome, err := s.session.Check(req.Answer)
		if errors.Is(err, review.ErrNoPrompt) {
			s.respondError(w, r, http.StatusConflict, err.Error())
			return
		}

		resp := checkResponse{
			Checked: outcome.Checked,
			Correct: outcome.Correct,
			Status:  newStatusResponse(s.session.Status()),
		}
		if outcome.Checked {
			card := newCardResponse(outcome.Card)
			resp.Card = &card
			if !outcome.Correct && shown {
				resp.Expected = prompt.Direction.Expected(prompt.Card)
			}
		}
		s.respondJSON(w, http.StatusOK, resp)
	}
}

// validSession reports whether id names the running session. Callers hold mu.
func (s *Server) validSession(id string) bool {
	return s.sessionID != "" && id == s.sessionID
}

type wordResponse struct {
	English string `json:"english"`
	Target  string `json:"target"`
}

type wordsResponse struct {
	Words        []wordResponse `json:"words"`
	WordList     string         `json:"word_list"`
	Instructions string         `json:"instructions"`
	Level        string         `json:"level"`
}

// handleWritingWords picks the words for a writing exercise. The count comes
// from ?n= or the configured default.
func (s *Server) handleWritingWords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := s.wordCount
		if raw := r.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 {
				s.respondError(w, r, http.StatusBadRequest, "n must be a positive integer")
				return
			}
			n = v
		}

		s.mu.Lock()
		selected := writing.SelectWords(s.store.Cards(), n)
		words := make([]wordResponse, 0, len(selected))
		for _, c := range selected {
			words = append(words, wordResponse{English: c.English, Target: c.Target})
		}
		wordList := writing.FormatWordList(selected)
		s.mu.Unlock()

		s.respondJSON(w, http.StatusOK, wordsResponse{
			Words:        words,
			WordList:     wordList,
			Instructions: writing.Instructions(wordList),
			Level:        s.level,
		})
	}
}

type evaluationResponse struct {
	*writing.Evaluation
	FinalScore float64 `json:"final_score"`
}

// handleEvaluate sends a text to the evaluator. The level defaults to the
// configured one.
func (s *Server) handleEvaluate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.evaluator == nil {
			s.respondError(w, r, http.StatusServiceUnavailable, "writing evaluation is not configured")
			return
		}

		var req writing.Request
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.Level == "" {
			req.Level = s.level
		}

		eval, err := s.evaluator.Evaluate(r.Context(), req)
		switch {
		case errors.Is(err, writing.ErrInvalidRequest):
			s.respondError(w, r, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			s.logger.Error("Error evaluating text", "error", err)
			s.respondError(w, r, http.StatusBadGateway, "the text could not be evaluated")
			return
		}

		s.respondJSON(w, http.StatusOK, evaluationResponse{Evaluation: eval, FinalScore: eval.FinalScore()})
	}
}
