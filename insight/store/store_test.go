package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
)

var t0 = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("s%d", n)
	}
}

type flakyPersister struct {
	MemoryPersister
	fail bool
}

func (f *flakyPersister) Save(ctx context.Context, snap Snapshot) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryPersister.Save(ctx, snap)
}

func newTestStore(t *testing.T, p Persister) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	s, err := Open(context.Background(), p, WithClock(clock.Now), WithIDGenerator(seqIDs()))
	require.NoError(t, err)
	return s, clock
}

func userMsg(text string) insight.Message {
	s := insight.ClassifySentiment(text)
	topics := insight.ExtractTopics(text)
	return insight.Message{
		Role:    insight.RoleUser,
		Content: text,
		Metadata: &insight.MessageMetadata{
			Sentiment:    s,
			Topics:       topics,
			WisdomPoints: insight.WisdomPoints(text, s, topics),
		},
	}
}

func TestCreateSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, nil)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
	assert.Equal(t, id, s.ActiveSessionID())

	cs, err := s.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "Morning Contemplation 3/14", cs.Title)
	assert.Empty(t, cs.Messages)
	assert.True(t, cs.CreatedAt.Equal(t0))

	id2, err := s.CreateSession(ctx, "  My questions ")
	require.NoError(t, err)
	cs2, err := s.Session(id2)
	require.NoError(t, err)
	assert.Equal(t, "My questions", cs2.Title)
	assert.Equal(t, id2, s.ActiveSessionID())
}

func TestAppendMessage_UpdatesTopicsAndSentiment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clock := newTestStore(t, nil)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, s.AppendMessage(ctx, id, userMsg("I seek peace and feel grateful")))
	require.NoError(t, s.AppendMessage(ctx, id, insight.Message{Role: insight.RoleAssistant, Content: "Be still."}))
	require.NoError(t, s.AppendMessage(ctx, id, userMsg("How do I find peace in my duty?")))

	cs, err := s.Session(id)
	require.NoError(t, err)
	require.Len(t, cs.Messages, 3)
	assert.Equal(t, TopicSet{insight.Peace, insight.KarmaYoga, insight.Dharma}, cs.Topics)
	assert.Equal(t, []insight.SentimentLabel{insight.VeryPositive, insight.Positive}, cs.SentimentHistory)
	assert.True(t, cs.LastActive.Equal(t0.Add(time.Minute)))
	assert.True(t, cs.Messages[0].CreatedAt.Equal(t0.Add(time.Minute)))
}

func TestAppendMessage_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, nil)

	err := s.AppendMessage(ctx, "missing", userMsg("hi"))
	assert.ErrorIs(t, err, insight.ErrNotFound)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	err = s.AppendMessage(ctx, id, insight.Message{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, insight.ErrInvalidInput)
}

func TestSetSessionTitle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, nil)

	assert.ErrorIs(t, s.SetSessionTitle(ctx, "missing", "x"), insight.ErrNotFound)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, s.SetSessionTitle(ctx, id, "Inner Peace"))
	cs, err := s.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "Inner Peace", cs.Title)
	assert.ErrorIs(t, s.SetSessionTitle(ctx, id, "   "), insight.ErrInvalidInput)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := &MemoryPersister{}
	s, _ := newTestStore(t, p)

	a, err := s.CreateSession(ctx, "a")
	require.NoError(t, err)
	b, err := s.CreateSession(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, b, s.ActiveSessionID())

	saves := p.Saves()
	require.NoError(t, s.DeleteSession(ctx, "missing"))
	assert.Equal(t, saves, p.Saves(), "unknown id must not save")

	require.NoError(t, s.DeleteSession(ctx, b))
	assert.Equal(t, "", s.ActiveSessionID())
	_, err = s.Session(b)
	assert.ErrorIs(t, err, insight.ErrNotFound)

	require.NoError(t, s.SetActiveSession(ctx, a))
	assert.Equal(t, a, s.ActiveSessionID())
	assert.ErrorIs(t, s.SetActiveSession(ctx, b), insight.ErrNotFound)
}

func TestApplyTurnOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clock := newTestStore(t, nil)

	clock.Advance(time.Hour)
	require.NoError(t, s.ApplyTurnOutcome(ctx, TurnOutcome{
		WisdomPoints:   40,
		TopicDeltas:    map[insight.Topic]int{insight.Dharma: 1, insight.Suffering: 1},
		AchievementIDs: []string{"first_question", "first_question"},
	}))
	require.NoError(t, s.ApplyTurnOutcome(ctx, TurnOutcome{
		WisdomPoints:   10,
		TopicDeltas:    map[insight.Topic]int{insight.Dharma: 1},
		AchievementIDs: []string{"first_question", "consistent_seeker"},
		At:             t0.Add(2 * time.Hour),
	}))

	p := s.Profile()
	assert.Equal(t, 2, p.TotalQuestions)
	assert.Equal(t, 50, p.WisdomPoints)
	assert.Equal(t, map[insight.Topic]int{insight.Dharma: 2, insight.Suffering: 1}, p.PreferredTopics)
	assert.Equal(t, []string{"first_question", "consistent_seeker"}, p.Achievements)
	assert.True(t, p.LastActive.Equal(t0.Add(2*time.Hour)))
}

func TestApplyTurnOutcome_RejectsNegative(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, nil)

	err := s.ApplyTurnOutcome(ctx, TurnOutcome{WisdomPoints: -1})
	assert.ErrorIs(t, err, insight.ErrInvalidInput)
	err = s.ApplyTurnOutcome(ctx, TurnOutcome{TopicDeltas: map[insight.Topic]int{insight.Peace: -2}})
	assert.ErrorIs(t, err, insight.ErrInvalidInput)
	assert.Equal(t, 0, s.Profile().TotalQuestions)
}

func TestFailedSaveKeepsPreviousState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := &flakyPersister{}
	s, _ := newTestStore(t, p)

	id, err := s.CreateSession(ctx, "kept")
	require.NoError(t, err)

	p.fail = true
	err = s.AppendMessage(ctx, id, userMsg("I am sad"))
	require.Error(t, err)
	_, err = s.CreateSession(ctx, "lost")
	require.Error(t, err)
	require.Error(t, s.ApplyTurnOutcome(ctx, TurnOutcome{WisdomPoints: 10}))

	cs, err := s.Session(id)
	require.NoError(t, err)
	assert.Empty(t, cs.Messages)
	assert.Empty(t, cs.SentimentHistory)
	assert.Len(t, s.Sessions(), 1)
	assert.Equal(t, id, s.ActiveSessionID())
	assert.Equal(t, 0, s.Profile().TotalQuestions)
}

func TestCommitTurn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, nil)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, id, userMsg("I am sad")))

	bm := insight.BreakthroughMoment{Description: "Moved from negative to positive"}
	err = s.CommitTurn(ctx, id, TurnCommit{
		Assistant:    &insight.Message{Role: insight.RoleAssistant, Content: "Take heart."},
		Outcome:      &TurnOutcome{WisdomPoints: 10, AchievementIDs: []string{"first_question"}},
		Breakthrough: &bm,
		Title:        "Healing Journey",
	})
	require.NoError(t, err)

	cs, err := s.Session(id)
	require.NoError(t, err)
	assert.Len(t, cs.Messages, 2)
	assert.Equal(t, "Healing Journey", cs.Title)
	require.Len(t, cs.BreakthroughMoments, 1)
	assert.True(t, cs.BreakthroughMoments[0].At.Equal(t0))
	assert.Equal(t, 1, s.Profile().TotalQuestions)

	err = s.CommitTurn(ctx, id, TurnCommit{Assistant: &insight.Message{Role: insight.RoleUser}})
	assert.ErrorIs(t, err, insight.ErrInvalidInput)
	assert.ErrorIs(t, s.CommitTurn(ctx, "missing", TurnCommit{}), insight.ErrNotFound)
}

func TestSessions_SortedByLastActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clock := newTestStore(t, nil)

	a, err := s.CreateSession(ctx, "a")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	b, err := s.CreateSession(ctx, "b")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	require.NoError(t, s.AppendMessage(ctx, a, userMsg("hello")))

	got := s.Sessions()
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
	assert.Equal(t, b, got[1].ID)
}

func TestReadsAreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, nil)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, id, userMsg("peace")))

	cs, err := s.Session(id)
	require.NoError(t, err)
	cs.Messages[0].Content = "changed"
	cs.Topics[0] = insight.Success

	p := s.Profile()
	p.PreferredTopics[insight.Peace] = 99

	again, err := s.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "peace", again.Messages[0].Content)
	assert.Equal(t, insight.Peace, again.Topics[0])
	assert.Equal(t, 0, s.Profile().PreferredTopics[insight.Peace])
}

func TestStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, nil)

	_, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	require.NoError(t, s.ApplyTurnOutcome(ctx, TurnOutcome{
		WisdomPoints:   250,
		TopicDeltas:    map[insight.Topic]int{insight.Peace: 2, insight.Dharma: 1},
		AchievementIDs: ids,
	}))

	st := s.Stats()
	assert.Equal(t, 3, st.Level)
	assert.Equal(t, 50, st.LevelProgress)
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, 7, st.Achievements)
	assert.Equal(t, ids[1:], st.RecentAchievements)
	assert.Equal(t, []insight.Topic{insight.Peace, insight.Dharma}, st.TopInterests)
	assert.Equal(t, "balanced", st.LearningStyle)

	require.NoError(t, s.SetLearningStyle(ctx, insight.StyleDevotional))
	assert.Equal(t, "devotional", s.Stats().LearningStyle)
	assert.ErrorIs(t, s.SetLearningStyle(ctx, "visual"), insight.ErrInvalidInput)
}

func TestConcurrentWritesAndReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t, &MemoryPersister{})

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendMessage(ctx, id, userMsg("peace")))
		}()
		go func() {
			defer wg.Done()
			_ = s.Sessions()
			_ = s.Stats()
		}()
	}
	wg.Wait()

	cs, err := s.Session(id)
	require.NoError(t, err)
	assert.Len(t, cs.Messages, 20)
	assert.Len(t, cs.SentimentHistory, 20)
}
