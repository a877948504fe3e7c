package insight

import "strings"

// SentimentScore sums the weights of every lexicon word present in text.
// Presence is tested per word, so repeating a word does not add to the score.
func SentimentScore(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, list := range sentimentLexicon {
		for _, w := range list.words {
			if strings.Contains(lower, w) {
				score += list.weight
			}
		}
	}
	return score
}

// ClassifySentiment maps text onto one of the five sentiment labels. Empty text is neutral.
func ClassifySentiment(text string) SentimentLabel {
	return LabelForScore(SentimentScore(text))
}

// LabelForScore applies the label thresholds to a raw lexicon score.
func LabelForScore(score int) SentimentLabel {
	switch {
	case score >= 2:
		return VeryPositive
	case score == 1:
		return Positive
	case score <= -2:
		return VeryNegative
	case score == -1:
		return Negative
	default:
		return Neutral
	}
}

// DominantSentiment returns the most frequent label in history. Ties go to the label seen first;
// an empty history is neutral.
func DominantSentiment(history []SentimentLabel) SentimentLabel {
	if len(history) == 0 {
		return Neutral
	}
	counts := make(map[SentimentLabel]int, len(SentimentLabels))
	var order []SentimentLabel
	for _, s := range history {
		if _, ok := counts[s]; !ok {
			order = append(order, s)
		}
		counts[s]++
	}
	best := order[0]
	for _, s := range order[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}
