package insight

import "strings"

const (
	baseWisdomPoints   = 10
	deepTopicBonus     = 15
	longQuestionWords  = 20
	longQuestionBonus  = 10
	essayQuestionWords = 50
	essayQuestionBonus = 20
	inquiryBonus       = 15
	intenseEmotionGain = 10
)

// WisdomBreakdown is the per-bonus composition of a wisdom score.
type WisdomBreakdown struct {
	Base       int `json:"base"`
	DeepTopics int `json:"deep_topics"`
	Length     int `json:"length"`
	Inquiry    int `json:"inquiry"`
	Emotion    int `json:"emotion"`
	Total      int `json:"total"`
}

// ScoreWisdom computes the wisdom points awarded for a question. All bonuses are additive and
// the total is never below the base of 10.
func ScoreWisdom(question string, sentiment SentimentLabel, topics []Topic) WisdomBreakdown {
	b := WisdomBreakdown{Base: baseWisdomPoints}

	for _, t := range topics {
		if containsTopic(deepTopics, t) {
			b.DeepTopics += deepTopicBonus
		}
	}

	words := WordCount(question)
	if words > longQuestionWords {
		b.Length += longQuestionBonus
	}
	if words > essayQuestionWords {
		b.Length += essayQuestionBonus
	}

	lower := strings.ToLower(question)
	for _, p := range inquiryPhrases {
		if strings.Contains(lower, p) {
			b.Inquiry = inquiryBonus
			break
		}
	}

	if sentiment == VeryPositive || sentiment == VeryNegative {
		b.Emotion = intenseEmotionGain
	}

	b.Total = b.Base + b.DeepTopics + b.Length + b.Inquiry + b.Emotion
	return b
}

// WisdomPoints is ScoreWisdom(...).Total.
func WisdomPoints(question string, sentiment SentimentLabel, topics []Topic) int {
	return ScoreWisdom(question, sentiment, topics).Total
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// WisdomLevel maps accumulated points to a level in 1..10 and the progress (0..99) towards
// the next level.
func WisdomLevel(points int) (level int, progress int) {
	if points < 0 {
		points = 0
	}
	level = points/100 + 1
	if level > 10 {
		level = 10
	}
	return level, points % 100
}
