package insight

import (
	"testing"
	"time"
)

type fixedRand int

func (f fixedRand) IntN(n int) int { return int(f) % n }

func TestSessionTitleForTime(t *testing.T) {
	t.Parallel()

	day := func(h int) time.Time { return time.Date(2024, 3, 14, h, 0, 0, 0, time.UTC) }
	cases := []struct {
		hour int
		want string
	}{
		{5, "Morning Contemplation 3/14"},
		{11, "Morning Contemplation 3/14"},
		{12, "Afternoon Reflection 3/14"},
		{17, "Evening Wisdom 3/14"},
		{21, "Night Meditation 3/14"},
		{2, "Night Meditation 3/14"},
	}
	for _, tc := range cases {
		if got := SessionTitleForTime(day(tc.hour)); got != tc.want {
			t.Fatalf("hour %d: %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestTopicTitle(t *testing.T) {
	t.Parallel()

	if got := TopicTitle("anything", []Topic{Peace, Dharma}, fixedRand(1)); got != "Tranquility" {
		t.Fatalf("peace title=%q", got)
	}
	// success has no curated titles.
	if got := TopicTitle("what is true success in life", []Topic{Success}, fixedRand(0)); got != "What Is True Success" {
		t.Fatalf("fallback=%q", got)
	}
	if got := TopicTitle("hi there", nil, fixedRand(0)); got != "Hi There" {
		t.Fatalf("short fallback=%q", got)
	}
}

func TestTitleCase(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                 "",
		"hello world":      "Hello World",
		"what's up":        "What'S Up",
		"self-realization": "Self-Realization",
	}
	for in, want := range cases {
		if got := TitleCase(in); got != want {
			t.Fatalf("TitleCase(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestDedupeStrings(t *testing.T) {
	t.Parallel()

	got := DedupeStrings([]string{" BG 2.47 ", "bg 2.47", "", "BG 3.19"})
	if len(got) != 2 || got[0] != "BG 2.47" || got[1] != "BG 3.19" {
		t.Fatalf("got %v", got)
	}
}
