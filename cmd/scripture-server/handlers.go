package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/conversation"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/logger"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/provider"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/store"
)

const (
	serviceName  = "Ask Scriptures AI Backend"
	maxBodyBytes = 1 << 20
)

type server struct {
	store     *store.Store
	guide     *conversation.Guide
	answerer  provider.Answerer
	catalog   insight.Catalog
	log       *logger.Logger
	exportDir string
	now       func() time.Time
}

func (s *server) routes(origins []string, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Stateless analytics, in the response envelopes the web client expects.
		r.Post("/sentiment", s.handleSentiment)
		r.Post("/topics", s.handleTopics)
		r.Post("/wisdom-points", s.handleWisdomPoints)
		r.Post("/gita-answer", s.handleGitaAnswer)

		r.Get("/achievements", s.handleListAchievements)
		r.Post("/achievements/evaluate", s.handleEvaluateAchievements)

		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile/learning-style", s.handleSetLearningStyle)
		r.Get("/stats", s.handleStats)

		r.Post("/ask", s.handleAsk)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Put("/active", s.handleSetActive)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleDeleteSession)
			r.Put("/{id}/title", s.handleSetTitle)
			r.Post("/{id}/messages", s.handleAsk)
		})

		r.Post("/export", s.handleExport)
	})

	return r
}

func (s *server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// --- stateless analytics ---

type textRequest struct {
	Text *string `json:"text"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"service":   serviceName,
	})
}

func (s *server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	text, err := insight.RequireText(req.Text)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	score := insight.SentimentScore(text)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"sentiment": insight.LabelForScore(score),
		"score":     score,
	})
}

func (s *server) handleTopics(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	text, err := insight.RequireText(req.Text)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"topics":  insight.ExtractTopics(text),
	})
}

type wisdomRequest struct {
	Question  *string  `json:"question"`
	Sentiment string   `json:"sentiment"`
	Topics    []string `json:"topics"`
}

func (s *server) handleWisdomPoints(w http.ResponseWriter, r *http.Request) {
	var req wisdomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	question, err := insight.RequireText(req.Question)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sentiment := insight.Neutral
	if req.Sentiment != "" {
		if sentiment, err = insight.ParseSentiment(req.Sentiment); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	topics, err := insight.ParseTopics(req.Topics)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	b := insight.ScoreWisdom(question, sentiment, topics)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"points":    b.Total,
		"breakdown": b,
	})
}

// gitaAnswerRequest is the web client's body: context is a list of [question, answer] pairs and
// top_interests a list of [topic, count] pairs (bare topic strings are accepted too).
type gitaAnswerRequest struct {
	Question           *string    `json:"question"`
	Context            [][]string `json:"context"`
	PersonalityContext *struct {
		CommunicationStyle string            `json:"communication_style"`
		TopInterests       []json.RawMessage `json:"top_interests"`
		DominantEmotion    string            `json:"dominant_emotion"`
	} `json:"personalityContext"`
}

func (g gitaAnswerRequest) toRequest() (provider.Request, error) {
	q, err := insight.RequireText(g.Question)
	if err != nil {
		return provider.Request{}, err
	}
	req := provider.Request{Question: q}
	for _, pair := range g.Context {
		if len(pair) < 2 {
			return provider.Request{}, fmt.Errorf("context entries must be [question, answer]: %w", insight.ErrInvalidInput)
		}
		req.Context = append(req.Context, provider.Exchange{Question: pair[0], Answer: pair[1]})
	}
	pc := g.PersonalityContext
	if pc == nil {
		return req, nil
	}
	p := &provider.Personality{DominantEmotion: insight.Neutral}
	if p.CommunicationStyle, err = insight.ParseLearningStyle(pc.CommunicationStyle); err != nil {
		return provider.Request{}, err
	}
	if pc.DominantEmotion != "" {
		if p.DominantEmotion, err = insight.ParseSentiment(pc.DominantEmotion); err != nil {
			return provider.Request{}, err
		}
	}
	for _, raw := range pc.TopInterests {
		name, err := interestName(raw)
		if err != nil {
			return provider.Request{}, err
		}
		t, err := insight.ParseTopic(name)
		if err != nil {
			return provider.Request{}, err
		}
		p.TopInterests = append(p.TopInterests, t)
	}
	req.Personality = p
	return req, nil
}

func interestName(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name, nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) == 0 {
		return "", fmt.Errorf("top_interests entries must be a topic or [topic, count]: %w", insight.ErrInvalidInput)
	}
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return "", fmt.Errorf("top_interests topic must be a string: %w", insight.ErrInvalidInput)
	}
	return name, nil
}

func (s *server) handleGitaAnswer(w http.ResponseWriter, r *http.Request) {
	var body gitaAnswerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ans, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"answer":           ans.Answer,
			"context":          ans.Context,
			"confidence":       ans.Confidence,
			"verse_references": ans.VerseReferences,
		},
	})
}

// --- achievements and profile ---

func (s *server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	held := map[string]bool{}
	for _, id := range s.store.Profile().Achievements {
		held[id] = true
	}
	type entry struct {
		insight.Achievement
		Unlocked bool `json:"unlocked"`
	}
	out := make([]entry, 0, len(s.catalog))
	for _, a := range s.catalog {
		out = append(out, entry{Achievement: a, Unlocked: held[a.ID]})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "achievements": out})
}

type evaluateRequest struct {
	Profile *insight.UserProfile `json:"profile"`
	Turn    insight.TurnData     `json:"turn"`
}

func (s *server) handleEvaluateAchievements(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Profile == nil {
		s.respondError(w, r, fmt.Errorf("profile is required: %w", insight.ErrInvalidInput))
		return
	}
	if req.Turn.Sentiment != "" {
		if _, err := insight.ParseSentiment(string(req.Turn.Sentiment)); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	if req.Turn.At.IsZero() {
		req.Turn.At = s.now()
	}
	unlocked := s.catalog.Evaluate(*req.Profile, req.Turn)
	if unlocked == nil {
		unlocked = []insight.Achievement{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "achievements": unlocked})
}

func (s *server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "profile": s.store.Profile()})
}

func (s *server) handleSetLearningStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LearningStyle *string `json:"learning_style"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	raw, err := insight.RequireText(req.LearningStyle)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ls, err := insight.ParseLearningStyle(raw)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.SetLearningStyle(r.Context(), ls); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "profile": s.store.Profile()})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": s.store.Stats()})
}

// --- sessions ---

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.store.Sessions()
	type summary struct {
		ID                string                 `json:"id"`
		Title             string                 `json:"title"`
		CreatedAt         time.Time              `json:"created_at"`
		LastActive        time.Time              `json:"last_active"`
		Messages          int                    `json:"messages"`
		Topics            store.TopicSet         `json:"topics"`
		DominantSentiment insight.SentimentLabel `json:"dominant_sentiment"`
	}
	out := make([]summary, 0, len(sessions))
	for _, cs := range sessions {
		out = append(out, summary{
			ID:                cs.ID,
			Title:             cs.Title,
			CreatedAt:         cs.CreatedAt,
			LastActive:        cs.LastActive,
			Messages:          len(cs.Messages),
			Topics:            cs.Topics,
			DominantSentiment: cs.DominantSentiment(),
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"sessions":          out,
		"active_session_id": s.store.ActiveSessionID(),
	})
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	id, err := s.store.CreateSession(r.Context(), req.Title)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	cs, err := s.store.Session(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "session": cs})
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.store.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "session": cs})
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *server) handleSetTitle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title *string `json:"title"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	title, err := insight.RequireText(req.Title)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.SetSessionTitle(r.Context(), id, title); err != nil {
		s.respondError(w, r, err)
		return
	}
	cs, err := s.store.Session(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "session": cs})
}

func (s *server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.SetActiveSession(r.Context(), req.SessionID); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "active_session_id": s.store.ActiveSessionID()})
}

// handleAsk runs one full turn. On /sessions/{id}/messages the session comes from the path,
// on /ask from the optional session_id field (empty means the active session).
func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question  *string `json:"question"`
		SessionID string  `json:"session_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	q, err := insight.RequireText(req.Question)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	id := req.SessionID
	if p := chi.URLParam(r, "id"); p != "" {
		id = p
	}
	res, err := s.guide.Ask(r.Context(), id, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "turn": res})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Overwrite        bool `json:"overwrite"`
		IncludeAnalytics bool `json:"include_analytics"`
		MaxBytes         int  `json:"max_bytes"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	if req.MaxBytes < 0 {
		s.respondError(w, r, fmt.Errorf("max_bytes must be >= 0: %w", insight.ErrInvalidInput))
		return
	}
	index, err := store.WriteSessionShards(s.store.Sessions(), store.ExportOptions{
		OutDir:           s.exportDir,
		MaxBytes:         req.MaxBytes,
		Overwrite:        req.Overwrite,
		IncludeAnalytics: req.IncludeAnalytics,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	indexPath := filepath.Join(s.exportDir, "journal_index.jsonl")
	if err := store.WriteExportIndex(indexPath, index, req.Overwrite); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.log.Info("journal exported", "sessions", len(index), "dir", s.exportDir)
	if index == nil {
		index = []store.ExportIndexRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "index": index, "index_file": indexPath})
}

// --- helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, insight.ErrInvalidInput)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps sentinel errors to status codes. Details of 500s are only logged.
func (s *server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"
	switch {
	case errors.Is(err, insight.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, insight.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	default:
		s.log.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	respondJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}
