// Package insight scores chat text (sentiment, topics, wisdom points) and evaluates achievements.
package insight

import (
	"fmt"
	"strings"
)

// SentimentLabel is one of five ordinal sentiment labels, symmetric around neutral.
type SentimentLabel string

const (
	VeryNegative SentimentLabel = "very_negative"
	Negative     SentimentLabel = "negative"
	Neutral      SentimentLabel = "neutral"
	Positive     SentimentLabel = "positive"
	VeryPositive SentimentLabel = "very_positive"
)

// SentimentLabels lists every label from most negative to most positive.
var SentimentLabels = []SentimentLabel{VeryNegative, Negative, Neutral, Positive, VeryPositive}

// Intensity maps the label onto -2..2. Unknown labels map to 0.
func (s SentimentLabel) Intensity() int {
	switch s {
	case VeryNegative:
		return -2
	case Negative:
		return -1
	case Positive:
		return 1
	case VeryPositive:
		return 2
	default:
		return 0
	}
}

// Valid reports whether s is one of the five known labels.
func (s SentimentLabel) Valid() bool {
	for _, l := range SentimentLabels {
		if s == l {
			return true
		}
	}
	return false
}

// ParseSentiment converts a wire value into a SentimentLabel.
func ParseSentiment(s string) (SentimentLabel, error) {
	l := SentimentLabel(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown sentiment %q: %w", s, ErrInvalidInput)
	}
	return l, nil
}

// Topic is one of the fixed topic identifiers of the keyword table.
type Topic string

const (
	KarmaYoga      Topic = "karma_yoga"
	BhaktiYoga     Topic = "bhakti_yoga"
	RajaYoga       Topic = "raja_yoga"
	JnanaYoga      Topic = "jnana_yoga"
	Dharma         Topic = "dharma"
	Peace          Topic = "peace"
	LifePurpose    Topic = "life_purpose"
	DeathMortality Topic = "death_mortality"
	Relationships  Topic = "relationships"
	Suffering      Topic = "suffering"
	Success        Topic = "success"
	Spirituality   Topic = "spirituality"
)

// topicKeywords is the topic table. Its order is the tie-break order of topic ranking.
var topicKeywords = []struct {
	topic    Topic
	keywords []string
}{
	{KarmaYoga, []string{"karma", "action", "duty", "work", "selfless", "service"}},
	{BhaktiYoga, []string{"devotion", "love", "god", "worship", "surrender", "faith"}},
	{RajaYoga, []string{"meditation", "focus", "concentration", "mind", "yoga", "practice"}},
	{JnanaYoga, []string{"knowledge", "wisdom", "understanding", "truth", "self-realization"}},
	{Dharma, []string{"dharma", "righteousness", "moral", "ethics", "purpose", "duty"}},
	{Peace, []string{"peace", "calm", "tranquil", "serene", "stillness", "quiet"}},
	{LifePurpose, []string{"meaning", "purpose", "direction", "calling", "destiny"}},
	{DeathMortality, []string{"death", "mortality", "afterlife", "soul", "eternal"}},
	{Relationships, []string{"relationship", "family", "friend", "love", "conflict"}},
	{Suffering, []string{"pain", "suffering", "grief", "loss", "sorrow", "difficulty"}},
	{Success, []string{"success", "achievement", "goal", "ambition", "material"}},
	{Spirituality, []string{"spiritual", "divine", "sacred", "holy", "transcendent"}},
}

// Topics returns every topic in declaration order.
func Topics() []Topic {
	out := make([]Topic, 0, len(topicKeywords))
	for _, tk := range topicKeywords {
		out = append(out, tk.topic)
	}
	return out
}

// TopicKeywords returns a copy of the keywords associated with t.
func TopicKeywords(t Topic) []string {
	for _, tk := range topicKeywords {
		if tk.topic == t {
			return append([]string(nil), tk.keywords...)
		}
	}
	return nil
}

// topicRank is the declaration index of t, or len(table) for unknown topics.
func topicRank(t Topic) int {
	for i, tk := range topicKeywords {
		if tk.topic == t {
			return i
		}
	}
	return len(topicKeywords)
}

// Valid reports whether t is a known topic.
func (t Topic) Valid() bool {
	return topicRank(t) < len(topicKeywords)
}

// ParseTopic converts a wire value into a Topic.
func ParseTopic(s string) (Topic, error) {
	t := Topic(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown topic %q: %w", s, ErrInvalidInput)
	}
	return t, nil
}

// ParseTopics parses a list of wire values, failing on the first unknown one.
func ParseTopics(in []string) ([]Topic, error) {
	out := make([]Topic, 0, len(in))
	for _, s := range in {
		t, err := ParseTopic(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Sentiment word lists. Each word contributes its weight at most once per text.
var (
	positiveWords     = []string{"happy", "peace", "joy", "grateful", "blessed", "love", "hope", "content"}
	negativeWords     = []string{"sad", "angry", "fear", "anxious", "worried", "stress", "confused", "lost"}
	veryPositiveWords = []string{"ecstatic", "blissful", "enlightened", "transcendent", "divine"}
	veryNegativeWords = []string{"despair", "hopeless", "devastated", "broken", "empty"}
)

var sentimentLexicon = []struct {
	words  []string
	weight int
}{
	{positiveWords, 1},
	{negativeWords, -1},
	{veryPositiveWords, 2},
	{veryNegativeWords, -2},
}

var (
	deepTopics = []Topic{LifePurpose, DeathMortality, JnanaYoga, Spirituality}

	inquiryPhrases = []string{"why", "how", "what is the meaning", "purpose"}
)
