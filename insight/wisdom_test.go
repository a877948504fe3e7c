package insight

import (
	"strings"
	"testing"
)

func TestWisdomPoints_Scenario(t *testing.T) {
	t.Parallel()

	q := "Why do I suffer and what is my purpose in dealing with this grief?"
	s := ClassifySentiment(q)
	topics := ExtractTopics(q)
	b := ScoreWisdom(q, s, topics)

	if b.Total != 40 {
		t.Fatalf("Total=%d (%+v), want 40", b.Total, b)
	}
	if b.DeepTopics != 15 || b.Inquiry != 15 || b.Length != 0 || b.Emotion != 0 {
		t.Fatalf("breakdown=%+v", b)
	}
}

func TestWisdomPoints_Bonuses(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 21)
	essay := strings.Repeat("word ", 51)

	cases := []struct {
		name      string
		question  string
		sentiment SentimentLabel
		topics    []Topic
		want      int
	}{
		{"base", "tell me", Neutral, nil, 10},
		{"empty question", "", Neutral, nil, 10},
		{"twenty words is not long", strings.Repeat("word ", 20), Neutral, nil, 10},
		{"long", long, Neutral, nil, 20},
		{"essay", essay, Neutral, nil, 40},
		{"inquiry once", "how and why", Neutral, nil, 25},
		{"very negative", "x", VeryNegative, nil, 20},
		{"very positive", "x", VeryPositive, nil, 20},
		{"mild sentiment", "x", Positive, nil, 10},
		{"deep topics add per element", "x", Neutral, []Topic{Spirituality, JnanaYoga, Peace}, 40},
	}
	for _, tc := range cases {
		if got := WisdomPoints(tc.question, tc.sentiment, tc.topics); got != tc.want {
			t.Fatalf("%s: WisdomPoints=%d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestWisdomPoints_MonotoneInBonuses(t *testing.T) {
	t.Parallel()

	q := "what should I do"
	plain := WisdomPoints(q, Neutral, []Topic{Peace})
	deeper := WisdomPoints(q, Neutral, []Topic{Peace, LifePurpose})
	if deeper < plain {
		t.Fatalf("adding a deep topic lowered points: %d < %d", deeper, plain)
	}
	if got := WisdomPoints(q, VeryNegative, []Topic{Peace}); got < plain {
		t.Fatalf("intense sentiment lowered points: %d < %d", got, plain)
	}
	if got := WisdomPoints(q+" "+strings.Repeat("more ", 30), Neutral, []Topic{Peace}); got < plain {
		t.Fatalf("longer question lowered points: %d < %d", got, plain)
	}
}

func TestWisdomLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		points, level, progress int
	}{
		{0, 1, 0},
		{99, 1, 99},
		{100, 2, 0},
		{250, 3, 50},
		{999, 10, 99},
		{5000, 10, 0},
		{-5, 1, 0},
	}
	for _, tc := range cases {
		level, progress := WisdomLevel(tc.points)
		if level != tc.level || progress != tc.progress {
			t.Fatalf("WisdomLevel(%d)=(%d,%d), want (%d,%d)", tc.points, level, progress, tc.level, tc.progress)
		}
	}
}
