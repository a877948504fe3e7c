package conversation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/logger"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/provider"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/store"
)

// ErrorReply is the assistant message recorded when no answer could be produced.
const ErrorReply = "I apologize, but I encountered an error while processing your question. Please try again."

// TurnResult is everything one Ask produced.
type TurnResult struct {
	SessionID    string                      `json:"session_id"`
	Question     insight.Message             `json:"question"`
	Reply        insight.Message             `json:"reply"`
	Wisdom       insight.WisdomBreakdown     `json:"wisdom"`
	Unlocked     []insight.Achievement       `json:"unlocked,omitempty"`
	Breakthrough *insight.BreakthroughMoment `json:"breakthrough,omitempty"`
	Title        string                      `json:"title"`
	// Abandoned is set when no answer could be produced. Reply is then ErrorReply, both messages
	// are recorded and the profile is unchanged.
	Abandoned bool `json:"abandoned"`
}

// Guide runs question turns against a store and an answerer.
type Guide struct {
	store    *store.Store
	answerer provider.Answerer
	catalog  insight.Catalog
	rng      insight.RandSource
	now      func() time.Time
	log      *logger.Logger

	// commitMu serializes evaluate-then-commit so achievements always see the latest profile.
	commitMu sync.Mutex
}

// Option configures a Guide.
type Option func(*Guide)

// WithCatalog replaces DefaultCatalog.
func WithCatalog(c insight.Catalog) Option { return func(g *Guide) { g.catalog = c } }

// WithRand sets the source used to pick session titles.
func WithRand(r insight.RandSource) Option { return func(g *Guide) { g.rng = r } }

// WithClock sets the clock stamped on messages and turns.
func WithClock(now func() time.Time) Option { return func(g *Guide) { g.now = now } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option { return func(g *Guide) { g.log = l } }

// NewGuide returns a Guide that records turns in s and answers with a.
func NewGuide(s *store.Store, a provider.Answerer, opts ...Option) *Guide {
	g := &Guide{
		store:    s,
		answerer: a,
		catalog:  insight.DefaultCatalog,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Ask answers question inside session sessionID. An empty sessionID uses the active session,
// creating one when there is none.
func (g *Guide) Ask(ctx context.Context, sessionID, question string) (TurnResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return TurnResult{}, fmt.Errorf("empty question: %w", insight.ErrInvalidInput)
	}

	sessionID, err := g.resolveSession(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	before, err := g.store.Session(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	req := provider.Request{
		Question:    question,
		Context:     recentExchanges(before, provider.MaxContextExchanges),
		Personality: g.personality(before),
	}
	log := g.log.With("session_id", sessionID)
	asked := g.now()

	var (
		sentiment insight.SentimentLabel
		topics    []insight.Topic
		answer    provider.Answer
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		sentiment = insight.ClassifySentiment(question)
		topics = insight.ExtractTopics(question)
		return nil
	})
	eg.Go(func() error {
		a, err := g.answerer.Answer(egCtx, req)
		if err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		answer = a
		return nil
	})
	answerErr := eg.Wait()

	if ctx.Err() != nil {
		return TurnResult{}, ctx.Err()
	}

	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	cur, err := g.store.Session(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	userMsg := insight.Message{
		Role:      insight.RoleUser,
		Content:   question,
		CreatedAt: asked,
	}

	if answerErr != nil {
		log.Error("turn abandoned", "error", answerErr)
		reply := insight.Message{
			Role:      insight.RoleAssistant,
			Content:   ErrorReply,
			CreatedAt: g.now(),
			Metadata:  &insight.MessageMetadata{Error: true},
		}
		if err := g.store.CommitTurn(ctx, sessionID, store.TurnCommit{Question: &userMsg, Assistant: &reply}); err != nil {
			return TurnResult{}, err
		}
		return TurnResult{
			SessionID: sessionID,
			Question:  userMsg,
			Reply:     reply,
			Title:     cur.Title,
			Abandoned: true,
		}, nil
	}

	wisdom := insight.ScoreWisdom(question, sentiment, topics)
	userMsg.Metadata = &insight.MessageMetadata{WisdomPoints: wisdom.Total}

	unlocked := g.catalog.EvaluateTurn(g.store.Profile(), wisdom.Total, insight.TurnData{
		Sentiment: sentiment,
		Topics:    topics,
		At:        asked,
	})
	ids := insight.AchievementIDs(unlocked)

	var breakthrough *insight.BreakthroughMoment
	if m, ok := insight.DetectBreakthrough(cur.SentimentHistory, sentiment, asked); ok {
		breakthrough = &m
	}

	title := cur.Title
	retitle := ""
	if cur.AnsweredTurns() == 0 {
		retitle = insight.TopicTitle(question, topics, g.rng)
		title = retitle
	}

	// The turn's analytics ride on the reply, so only answered turns feed the session
	// topic set and sentiment history.
	reply := insight.Message{
		Role:      insight.RoleAssistant,
		Content:   answer.Answer,
		CreatedAt: g.now(),
		Metadata: &insight.MessageMetadata{
			Sentiment:       sentiment,
			Topics:          topics,
			WisdomPoints:    wisdom.Total,
			Achievements:    ids,
			Confidence:      answer.Confidence,
			VerseReferences: answer.VerseReferences,
		},
	}

	err = g.store.CommitTurn(ctx, sessionID, store.TurnCommit{
		Question:  &userMsg,
		Assistant: &reply,
		Outcome: &store.TurnOutcome{
			WisdomPoints:   wisdom.Total,
			TopicDeltas:    insight.TopicDeltas(topics),
			AchievementIDs: ids,
			At:             asked,
		},
		Breakthrough: breakthrough,
		Title:        retitle,
	})
	if err != nil {
		return TurnResult{}, err
	}

	log.Info("turn committed",
		"sentiment", sentiment,
		"topics", topics,
		"points", wisdom.Total,
		"achievements", ids,
		"answer_source", answer.Source,
	)
	return TurnResult{
		SessionID:    sessionID,
		Question:     userMsg,
		Reply:        reply,
		Wisdom:       wisdom,
		Unlocked:     unlocked,
		Breakthrough: breakthrough,
		Title:        title,
	}, nil
}

func (g *Guide) resolveSession(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if active := g.store.ActiveSessionID(); active != "" {
		return active, nil
	}
	return g.store.CreateSession(ctx, "")
}

func (g *Guide) personality(cs *store.ChatSession) *provider.Personality {
	p := g.store.Profile()
	return &provider.Personality{
		CommunicationStyle: p.LearningStyle,
		TopInterests:       insight.TopInterests(p, 3),
		DominantEmotion:    cs.DominantSentiment(),
	}
}

// recentExchanges pairs each user message with the assistant reply that followed it and returns
// the last n pairs. Error placeholders are skipped.
func recentExchanges(cs *store.ChatSession, n int) []provider.Exchange {
	var out []provider.Exchange
	for i := 0; i+1 < len(cs.Messages); i++ {
		q, a := cs.Messages[i], cs.Messages[i+1]
		if q.Role != insight.RoleUser || a.Role != insight.RoleAssistant {
			continue
		}
		if a.Metadata != nil && a.Metadata.Error {
			continue
		}
		out = append(out, provider.Exchange{Question: q.Content, Answer: a.Content})
		i++
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
