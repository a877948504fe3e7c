package insight

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractTopics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want []Topic
	}{
		{"empty", "", []Topic{}},
		{"no match", "hello there", []Topic{}},
		{"single topic", "I want peace and calm", []Topic{Peace}},
		{
			"ties keep table order",
			"Why do I suffer and what is my purpose in dealing with this grief?",
			[]Topic{Dharma, LifePurpose, Suffering},
		},
		{
			"higher count first",
			"meditation helps my mind focus; also karma",
			[]Topic{RajaYoga, KarmaYoga},
		},
		{
			"capped at three",
			"karma devotion meditation knowledge peace death",
			[]Topic{KarmaYoga, BhaktiYoga, RajaYoga},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractTopics(tc.text)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ExtractTopics(%q) mismatch (-want +got):\n%s", tc.text, diff)
			}
		})
	}
}

func TestScoreTopics_CountsDistinctKeywords(t *testing.T) {
	t.Parallel()

	scores := ScoreTopics("Calm calm CALM, serene stillness")
	if len(scores) != 1 {
		t.Fatalf("scores=%v", scores)
	}
	if scores[0].Topic != Peace || scores[0].Matches != 3 {
		t.Fatalf("scores[0]=%+v, want peace/3", scores[0])
	}
}

func TestExtractTopics_NeverMoreThanThree(t *testing.T) {
	t.Parallel()

	var text string
	for _, topic := range Topics() {
		for _, kw := range TopicKeywords(topic) {
			text += kw + " "
		}
	}
	if got := ExtractTopics(text); len(got) != MaxTopics {
		t.Fatalf("len=%d, want %d", len(got), MaxTopics)
	}
}

func TestParseTopics(t *testing.T) {
	t.Parallel()

	got, err := ParseTopics([]string{"peace", "Dharma"})
	if err != nil {
		t.Fatalf("ParseTopics: %v", err)
	}
	if diff := cmp.Diff([]Topic{Peace, Dharma}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseTopics([]string{"peace", "gardening"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v, want ErrInvalidInput", err)
	}
}

func TestTopicDeltas_DedupesWithinTurn(t *testing.T) {
	t.Parallel()

	got := TopicDeltas([]Topic{Peace, Peace, Dharma})
	if diff := cmp.Diff(map[Topic]int{Peace: 1, Dharma: 1}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if TopicDeltas(nil) != nil {
		t.Fatalf("expected nil deltas for no topics")
	}
}
