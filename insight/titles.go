package insight

import (
	"fmt"
	"strings"
	"time"
)

// RandSource picks an index in [0, n). *math/rand/v2.Rand satisfies it.
type RandSource interface {
	IntN(n int) int
}

// SessionTitleForTime names a new session after the time-of-day bucket of t,
// e.g. "Morning Contemplation 3/14".
func SessionTitleForTime(t time.Time) string {
	date := fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "Morning Contemplation " + date
	case h >= 12 && h < 17:
		return "Afternoon Reflection " + date
	case h >= 17 && h < 21:
		return "Evening Wisdom " + date
	default:
		return "Night Meditation " + date
	}
}

var topicTitles = map[Topic][]string{
	KarmaYoga:     {"Path of Action", "Sacred Service", "Selfless Work"},
	BhaktiYoga:    {"Path of Devotion", "Divine Love", "Surrender & Faith"},
	RajaYoga:      {"Inner Journey", "Meditation Mastery", "Mind & Focus"},
	JnanaYoga:     {"Wisdom Seeking", "Self-Knowledge", "Truth Inquiry"},
	Dharma:        {"Righteous Path", "Life Purpose", "Sacred Duty"},
	Peace:         {"Inner Peace", "Tranquility", "Calm Mind"},
	LifePurpose:   {"Life's Meaning", "Soul Purpose", "Divine Calling"},
	Relationships: {"Sacred Bonds", "Love & Connection", "Relationship Wisdom"},
	Suffering:     {"Through Difficulty", "Pain to Growth", "Healing Journey"},
	Spirituality:  {"Divine Connection", "Sacred Quest", "Spiritual Awakening"},
}

// TopicTitle titles a session after its first question: a random pick from the primary topic's
// titles when it has any, otherwise the first four words of the question, title-cased.
func TopicTitle(firstQuestion string, topics []Topic, rng RandSource) string {
	if len(topics) > 0 {
		if titles := topicTitles[topics[0]]; len(titles) > 0 {
			return titles[rng.IntN(len(titles))]
		}
	}
	words := strings.Fields(firstQuestion)
	if len(words) > 4 {
		words = words[:4]
	}
	return TitleCase(strings.Join(words, " "))
}

var placeholders = []string{
	"Share what's on your heart and mind...",
	"What spiritual wisdom do you seek today?",
	"How can the Gita guide you right now?",
	"What questions arise from your spiritual journey?",
	"Let's dive deeper into your spiritual exploration...",
	"What new insights have emerged for you?",
	"How has your understanding evolved?",
}

// Placeholder picks an input prompt.
func Placeholder(rng RandSource) string {
	return placeholders[rng.IntN(len(placeholders))]
}

// Suggestions are starter questions offered before the first session exists.
var Suggestions = []string{
	"What is the meaning of dharma in daily life?",
	"How can I find inner peace amidst chaos?",
	"What does the Gita say about handling difficult relationships?",
	"How do I know if I'm on the right spiritual path?",
	"What is the difference between action and inaction?",
	"How can I overcome fear and anxiety according to the Gita?",
	"How can I practice selfless service in my work?",
	"What is the secret of working without attachment?",
	"How do I cultivate pure devotion?",
	"What role does surrender play in spiritual growth?",
}
