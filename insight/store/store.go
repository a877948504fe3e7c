package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/logger"
)

// RecentAchievementsShown is how many of the latest achievements Stats reports.
const RecentAchievementsShown = 6

// TurnOutcome is what one answered user turn adds to the profile.
type TurnOutcome struct {
	WisdomPoints   int
	TopicDeltas    map[insight.Topic]int
	AchievementIDs []string
	At             time.Time
}

// TurnCommit groups the writes of one turn. Nil fields are skipped; an empty Title keeps
// the current title.
type TurnCommit struct {
	Question     *insight.Message
	Assistant    *insight.Message
	Outcome      *TurnOutcome
	Breakthrough *insight.BreakthroughMoment
	Title        string
}

// Stats is a read-only summary of the profile.
type Stats struct {
	TotalQuestions     int             `json:"total_questions"`
	WisdomPoints       int             `json:"wisdom_points"`
	Level              int             `json:"level"`
	LevelProgress      int             `json:"level_progress"`
	Sessions           int             `json:"sessions"`
	Achievements       int             `json:"achievements"`
	RecentAchievements []string        `json:"recent_achievements"`
	TopInterests       []insight.Topic `json:"top_interests"`
	LearningStyle      string          `json:"learning_style"`
}

type state struct {
	profile  insight.UserProfile
	sessions []*ChatSession // creation order; published sessions are never mutated
	active   string
}

func (s state) clone() state {
	return state{
		profile:  s.profile.Clone(),
		sessions: append([]*ChatSession(nil), s.sessions...),
		active:   s.active,
	}
}

func (s state) index(id string) int {
	for i, cs := range s.sessions {
		if cs.ID == id {
			return i
		}
	}
	return -1
}

// edit replaces session id with a private copy and returns it for mutation.
func (s *state) edit(id string) (*ChatSession, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("session %q: %w", id, insight.ErrNotFound)
	}
	cs := s.sessions[i].Clone()
	s.sessions[i] = cs
	return cs, nil
}

func (s state) snapshot() Snapshot {
	sessions := make([]ChatSession, len(s.sessions))
	for i, cs := range s.sessions {
		sessions[i] = *cs
	}
	return Snapshot{
		Version:         SnapshotVersion,
		Profile:         s.profile,
		Sessions:        sessions,
		ActiveSessionID: s.active,
	}
}

// Store is the session and profile state holder. It is safe for concurrent use.
// Every write is saved through the Persister before it becomes visible to readers.
type Store struct {
	mu        sync.RWMutex
	cur       state
	persister Persister
	now       func() time.Time
	newID     func() string
	log       *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the session id source. The default is a random UUID.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLogger sets the store logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open loads the persisted snapshot, or starts from an empty profile when there is none.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	if p == nil {
		p = NopPersister{}
	}
	s := &Store{
		persister: p,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.Nop(),
	}
	for _, o := range opts {
		o(s)
	}

	snap, found, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if !found {
		s.cur = state{profile: insight.NewUserProfile(s.now())}
		return s, nil
	}
	s.cur = fromSnapshot(snap, s.now())
	s.log.Info("state loaded", "sessions", len(s.cur.sessions), "total_questions", s.cur.profile.TotalQuestions)
	return s, nil
}

func fromSnapshot(snap Snapshot, now time.Time) state {
	p := snap.Profile
	if p.PreferredTopics == nil {
		p.PreferredTopics = map[insight.Topic]int{}
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	if p.LearningStyle == "" {
		p.LearningStyle = insight.StyleBalanced
	}
	if p.LastActive.IsZero() {
		p.LastActive = now
	}
	st := state{profile: p, active: snap.ActiveSessionID}
	for i := range snap.Sessions {
		cs := snap.Sessions[i]
		st.sessions = append(st.sessions, cs.Clone())
	}
	if st.active != "" && st.index(st.active) < 0 {
		st.active = ""
	}
	return st
}

func (s *Store) update(ctx context.Context, op string, fn func(next *state, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur.clone()
	if err := fn(&next, s.now()); err != nil {
		return err
	}
	if err := s.persister.Save(ctx, next.snapshot()); err != nil {
		s.log.Error("state save failed", "op", op, "error", err)
		return fmt.Errorf("%s: save state: %w", op, err)
	}
	s.cur = next
	return nil
}

// CreateSession starts a new session and makes it active. An empty title is replaced by a
// time-of-day title.
func (s *Store) CreateSession(ctx context.Context, title string) (string, error) {
	id := s.newID()
	err := s.update(ctx, "create session", func(next *state, now time.Time) error {
		title = strings.TrimSpace(title)
		if title == "" {
			title = insight.SessionTitleForTime(now)
		}
		next.sessions = append(next.sessions, &ChatSession{
			ID:                  id,
			Title:               title,
			CreatedAt:           now,
			LastActive:          now,
			Messages:            []insight.Message{},
			Topics:              TopicSet{},
			SentimentHistory:    []insight.SentimentLabel{},
			BreakthroughMoments: []insight.BreakthroughMoment{},
		})
		next.active = id
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("session created", "session_id", id)
	return id, nil
}

// AppendMessage adds msg to session id. Metadata topics join the session topic set and a
// metadata sentiment joins the sentiment history.
func (s *Store) AppendMessage(ctx context.Context, id string, msg insight.Message) error {
	if msg.Role != insight.RoleUser && msg.Role != insight.RoleAssistant {
		return fmt.Errorf("message role %q: %w", msg.Role, insight.ErrInvalidInput)
	}
	return s.update(ctx, "append message", func(next *state, now time.Time) error {
		cs, err := next.edit(id)
		if err != nil {
			return err
		}
		appendMessage(cs, msg, now)
		return nil
	})
}

func appendMessage(cs *ChatSession, msg insight.Message, now time.Time) {
	msg = msg.Clone()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	cs.Messages = append(cs.Messages, msg)
	cs.LastActive = now
	if md := msg.Metadata; md != nil {
		cs.Topics = cs.Topics.Union(md.Topics...)
		if md.Sentiment != "" {
			cs.SentimentHistory = append(cs.SentimentHistory, md.Sentiment)
		}
	}
}

// SetSessionTitle renames session id. Blank titles are rejected.
func (s *Store) SetSessionTitle(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("empty title: %w", insight.ErrInvalidInput)
	}
	return s.update(ctx, "set title", func(next *state, _ time.Time) error {
		cs, err := next.edit(id)
		if err != nil {
			return err
		}
		cs.Title = title
		return nil
	})
}

// DeleteSession removes session id. Unknown ids are ignored.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.RLock()
	known := s.cur.index(id) >= 0
	s.mu.RUnlock()
	if !known {
		return nil
	}
	return s.update(ctx, "delete session", func(next *state, _ time.Time) error {
		i := next.index(id)
		if i < 0 {
			return nil
		}
		next.sessions = append(next.sessions[:i:i], next.sessions[i+1:]...)
		if next.active == id {
			next.active = ""
		}
		return nil
	})
}

// SetActiveSession marks id as the current session. An empty id clears it.
func (s *Store) SetActiveSession(ctx context.Context, id string) error {
	return s.update(ctx, "set active", func(next *state, _ time.Time) error {
		if id != "" && next.index(id) < 0 {
			return fmt.Errorf("session %q: %w", id, insight.ErrNotFound)
		}
		next.active = id
		return nil
	})
}

// ActiveSessionID returns the current session id, or "" when none is active.
func (s *Store) ActiveSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.active
}

// AddBreakthrough records m on session id. A zero At is stamped with the store clock.
func (s *Store) AddBreakthrough(ctx context.Context, id string, m insight.BreakthroughMoment) error {
	return s.update(ctx, "add breakthrough", func(next *state, now time.Time) error {
		cs, err := next.edit(id)
		if err != nil {
			return err
		}
		if m.At.IsZero() {
			m.At = now
		}
		cs.BreakthroughMoments = append(cs.BreakthroughMoments, m)
		return nil
	})
}

// SetLearningStyle changes the preferred answer style of the profile.
func (s *Store) SetLearningStyle(ctx context.Context, ls insight.LearningStyle) error {
	if _, err := insight.ParseLearningStyle(string(ls)); err != nil {
		return err
	}
	return s.update(ctx, "set learning style", func(next *state, _ time.Time) error {
		next.profile.LearningStyle = ls
		return nil
	})
}

// ApplyTurnOutcome folds one answered turn into the profile.
func (s *Store) ApplyTurnOutcome(ctx context.Context, o TurnOutcome) error {
	if err := o.validate(); err != nil {
		return err
	}
	return s.update(ctx, "apply outcome", func(next *state, now time.Time) error {
		applyOutcome(&next.profile, o, now)
		return nil
	})
}

func (o TurnOutcome) validate() error {
	if o.WisdomPoints < 0 {
		return fmt.Errorf("negative wisdom points %d: %w", o.WisdomPoints, insight.ErrInvalidInput)
	}
	for t, d := range o.TopicDeltas {
		if d < 0 {
			return fmt.Errorf("negative delta %d for %s: %w", d, t, insight.ErrInvalidInput)
		}
	}
	return nil
}

func applyOutcome(p *insight.UserProfile, o TurnOutcome, now time.Time) {
	p.TotalQuestions++
	p.WisdomPoints += o.WisdomPoints
	for t, d := range o.TopicDeltas {
		p.PreferredTopics[t] += d
	}
	for _, id := range o.AchievementIDs {
		if !p.HasAchievement(id) {
			p.Achievements = append(p.Achievements, id)
		}
	}
	if o.At.IsZero() {
		o.At = now
	}
	p.LastActive = o.At
}

// CommitTurn applies every write of a finished turn to session id in one step.
func (s *Store) CommitTurn(ctx context.Context, id string, c TurnCommit) error {
	if c.Question != nil && c.Question.Role != insight.RoleUser {
		return fmt.Errorf("commit role %q: %w", c.Question.Role, insight.ErrInvalidInput)
	}
	if c.Assistant != nil && c.Assistant.Role != insight.RoleAssistant {
		return fmt.Errorf("commit role %q: %w", c.Assistant.Role, insight.ErrInvalidInput)
	}
	if c.Outcome != nil {
		if err := c.Outcome.validate(); err != nil {
			return err
		}
	}
	return s.update(ctx, "commit turn", func(next *state, now time.Time) error {
		cs, err := next.edit(id)
		if err != nil {
			return err
		}
		if c.Question != nil {
			appendMessage(cs, *c.Question, now)
		}
		if c.Assistant != nil {
			appendMessage(cs, *c.Assistant, now)
		}
		if c.Breakthrough != nil {
			m := *c.Breakthrough
			if m.At.IsZero() {
				m.At = now
			}
			cs.BreakthroughMoments = append(cs.BreakthroughMoments, m)
		}
		if t := strings.TrimSpace(c.Title); t != "" {
			cs.Title = t
		}
		if c.Outcome != nil {
			applyOutcome(&next.profile, *c.Outcome, now)
		}
		return nil
	})
}

// Profile returns a copy of the user profile.
func (s *Store) Profile() insight.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.profile.Clone()
}

// Session returns a copy of session id.
func (s *Store) Session(id string) (*ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.cur.index(id)
	if i < 0 {
		return nil, fmt.Errorf("session %q: %w", id, insight.ErrNotFound)
	}
	return s.cur.sessions[i].Clone(), nil
}

// Sessions returns every session, most recently active first.
func (s *Store) Sessions() []*ChatSession {
	s.mu.RLock()
	out := make([]*ChatSession, 0, len(s.cur.sessions))
	for _, cs := range s.cur.sessions {
		out = append(out, cs.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

// Stats summarizes the profile.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.cur.profile
	level, progress := insight.WisdomLevel(p.WisdomPoints)
	return Stats{
		TotalQuestions:     p.TotalQuestions,
		WisdomPoints:       p.WisdomPoints,
		Level:              level,
		LevelProgress:      progress,
		Sessions:           len(s.cur.sessions),
		Achievements:       len(p.Achievements),
		RecentAchievements: insight.RecentAchievements(p, RecentAchievementsShown),
		TopInterests:       insight.TopInterests(p, 3),
		LearningStyle:      string(p.LearningStyle),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.cur.snapshot()
	snap.Profile = snap.Profile.Clone()
	for i := range snap.Sessions {
		snap.Sessions[i] = *snap.Sessions[i].Clone()
	}
	return snap
}
