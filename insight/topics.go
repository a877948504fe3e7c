package insight

import (
	"sort"
	"strings"
)

// MaxTopics is the maximum number of topics returned for one text.
const MaxTopics = 3

// TopicScore is the number of distinct keywords of Topic found in a text.
type TopicScore struct {
	Topic   Topic `json:"topic"`
	Matches int   `json:"matches"`
}

// ScoreTopics scores every topic against text and returns the matching ones, highest first.
// Ties keep the declaration order of the topic table.
func ScoreTopics(text string) []TopicScore {
	lower := strings.ToLower(text)
	var scores []TopicScore
	for _, tk := range topicKeywords {
		n := 0
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				n++
			}
		}
		if n > 0 {
			scores = append(scores, TopicScore{Topic: tk.topic, Matches: n})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Matches > scores[j].Matches
	})
	return scores
}

// ExtractTopics returns up to MaxTopics topics for text, ranked by ScoreTopics.
func ExtractTopics(text string) []Topic {
	scores := ScoreTopics(text)
	if len(scores) > MaxTopics {
		scores = scores[:MaxTopics]
	}
	out := make([]Topic, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Topic)
	}
	return out
}

// TopicDeltas turns the topics of one turn into per-topic frequency increments.
// A topic listed twice in the same turn still counts once.
func TopicDeltas(topics []Topic) map[Topic]int {
	if len(topics) == 0 {
		return nil
	}
	out := make(map[Topic]int, len(topics))
	for _, t := range topics {
		out[t] = 1
	}
	return out
}

func containsTopic(topics []Topic, t Topic) bool {
	for _, x := range topics {
		if x == t {
			return true
		}
	}
	return false
}
