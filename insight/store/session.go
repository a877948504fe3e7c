package store

import (
	"encoding/json"
	"time"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
)

// TopicSet is an insertion-ordered set of topics. It encodes as a JSON array.
type TopicSet []insight.Topic

// Union returns a new set holding s followed by every topic of ts not already present.
func (s TopicSet) Union(ts ...insight.Topic) TopicSet {
	out := append(TopicSet(nil), s...)
	for _, t := range ts {
		if !out.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s TopicSet) Has(t insight.Topic) bool {
	for _, x := range s {
		if x == t {
			return true
		}
	}
	return false
}

func (s TopicSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]insight.Topic(s))
}

// UnmarshalJSON drops duplicates, keeping first occurrence.
func (s *TopicSet) UnmarshalJSON(b []byte) error {
	var raw []insight.Topic
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = TopicSet(nil).Union(raw...)
	return nil
}

// ChatSession is one conversation thread.
type ChatSession struct {
	ID                  string                       `json:"id"`
	Title               string                       `json:"title"`
	CreatedAt           time.Time                    `json:"created_at"`
	LastActive          time.Time                    `json:"last_active"`
	Messages            []insight.Message            `json:"messages"`
	Topics              TopicSet                     `json:"topics"`
	SentimentHistory    []insight.SentimentLabel     `json:"sentiment_history"`
	BreakthroughMoments []insight.BreakthroughMoment `json:"breakthrough_moments"`
}

// Clone returns a deep copy of s.
func (s *ChatSession) Clone() *ChatSession {
	out := *s
	out.Messages = make([]insight.Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	out.Topics = append(TopicSet{}, s.Topics...)
	out.SentimentHistory = append([]insight.SentimentLabel{}, s.SentimentHistory...)
	out.BreakthroughMoments = append([]insight.BreakthroughMoment{}, s.BreakthroughMoments...)
	return &out
}

// UserQuestions returns the content of the last n user messages, oldest first.
func (s *ChatSession) UserQuestions(n int) []string {
	var out []string
	for i := len(s.Messages) - 1; i >= 0 && len(out) < n; i-- {
		if s.Messages[i].Role == insight.RoleUser {
			out = append(out, s.Messages[i].Content)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// AnsweredTurns counts assistant messages that are not error placeholders.
func (s *ChatSession) AnsweredTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == insight.RoleAssistant && (m.Metadata == nil || !m.Metadata.Error) {
			n++
		}
	}
	return n
}

func (s *ChatSession) DominantSentiment() insight.SentimentLabel {
	return insight.DominantSentiment(s.SentimentHistory)
}
