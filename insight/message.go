package insight

import (
	"fmt"
	"time"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageMetadata carries the analytics attached to a message.
// Sentiment is empty when the message carries no sentiment.
type MessageMetadata struct {
	Sentiment       SentimentLabel `json:"sentiment,omitempty"`
	Topics          []Topic        `json:"topics,omitempty"`
	WisdomPoints    int            `json:"wisdom_points,omitempty"`
	Achievements    []string       `json:"achievements,omitempty"`
	Confidence      float64        `json:"confidence,omitempty"`
	VerseReferences []string       `json:"verse_references,omitempty"`
	Error           bool           `json:"error,omitempty"`
}

// Message is one entry of a chat session. Messages are never edited after being appended.
type Message struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// Clone returns a copy of m that shares no slices with it.
func (m Message) Clone() Message {
	if m.Metadata == nil {
		return m
	}
	md := *m.Metadata
	md.Topics = append([]Topic(nil), m.Metadata.Topics...)
	md.Achievements = append([]string(nil), m.Metadata.Achievements...)
	md.VerseReferences = append([]string(nil), m.Metadata.VerseReferences...)
	m.Metadata = &md
	return m
}

// BreakthroughMoment marks a point in a session where the user's state shifted.
type BreakthroughMoment struct {
	At          time.Time `json:"at"`
	Description string    `json:"description"`
}

// DetectBreakthrough reports a breakthrough when the latest sentiment in history is on the
// negative side and current is on the positive side.
func DetectBreakthrough(history []SentimentLabel, current SentimentLabel, at time.Time) (BreakthroughMoment, bool) {
	if len(history) == 0 || current.Intensity() <= 0 {
		return BreakthroughMoment{}, false
	}
	prev := history[len(history)-1]
	if prev.Intensity() >= 0 {
		return BreakthroughMoment{}, false
	}
	return BreakthroughMoment{
		At:          at,
		Description: fmt.Sprintf("Moved from %s to %s", prev, current),
	}, true
}
