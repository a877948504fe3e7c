package insight

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LearningStyle is the user's preferred communication style for answers.
type LearningStyle string

const (
	StyleBalanced     LearningStyle = "balanced"
	StyleIntellectual LearningStyle = "intellectual"
	StyleDevotional   LearningStyle = "devotional"
	StylePractical    LearningStyle = "practical"
)

// ParseLearningStyle converts a wire value into a LearningStyle. Empty input means balanced.
func ParseLearningStyle(s string) (LearningStyle, error) {
	switch ls := LearningStyle(strings.ToLower(strings.TrimSpace(s))); ls {
	case "":
		return StyleBalanced, nil
	case StyleBalanced, StyleIntellectual, StyleDevotional, StylePractical:
		return ls, nil
	default:
		return "", fmt.Errorf("unknown learning style %q: %w", s, ErrInvalidInput)
	}
}

// UserProfile is the per-installation aggregate of a user's activity.
type UserProfile struct {
	TotalQuestions  int           `json:"total_questions"`
	WisdomPoints    int           `json:"wisdom_points"`
	Achievements    []string      `json:"achievements"`
	PreferredTopics map[Topic]int `json:"preferred_topics"`
	LastActive      time.Time     `json:"last_active"`
	LearningStyle   LearningStyle `json:"learning_style"`
}

// NewUserProfile returns an empty profile last active at now.
func NewUserProfile(now time.Time) UserProfile {
	return UserProfile{
		Achievements:    []string{},
		PreferredTopics: map[Topic]int{},
		LastActive:      now,
		LearningStyle:   StyleBalanced,
	}
}

// Clone returns a deep copy of p.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.Achievements = append([]string{}, p.Achievements...)
	out.PreferredTopics = make(map[Topic]int, len(p.PreferredTopics))
	for k, v := range p.PreferredTopics {
		out.PreferredTopics[k] = v
	}
	return out
}

// HasAchievement reports whether id was already unlocked.
func (p UserProfile) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// WithTurn projects the profile as it will look once a turn worth points on topics is applied.
// LastActive is left untouched so recency rules still see the previous activity.
func (p UserProfile) WithTurn(points int, topics []Topic) UserProfile {
	out := p.Clone()
	out.TotalQuestions++
	out.WisdomPoints += points
	for t, d := range TopicDeltas(topics) {
		out.PreferredTopics[t] += d
	}
	return out
}

// TopInterests returns up to n topics by descending frequency, ties in topic declaration order.
func TopInterests(p UserProfile, n int) []Topic {
	type tf struct {
		topic Topic
		freq  int
	}
	all := make([]tf, 0, len(p.PreferredTopics))
	for t, f := range p.PreferredTopics {
		if f > 0 {
			all = append(all, tf{t, f})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].freq != all[j].freq {
			return all[i].freq > all[j].freq
		}
		ri, rj := topicRank(all[i].topic), topicRank(all[j].topic)
		if ri != rj {
			return ri < rj
		}
		return all[i].topic < all[j].topic
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]Topic, 0, len(all))
	for _, x := range all {
		out = append(out, x.topic)
	}
	return out
}

// RecentAchievements returns the last n unlocked ids, oldest first.
func RecentAchievements(p UserProfile, n int) []string {
	if n <= 0 || len(p.Achievements) == 0 {
		return nil
	}
	start := len(p.Achievements) - n
	if start < 0 {
		start = 0
	}
	return append([]string(nil), p.Achievements[start:]...)
}
