package insight

import (
	"time"
)

// RuleKind selects how an achievement Rule is evaluated.
type RuleKind int

const (
	// RuleQuestionCount fires when TotalQuestions is exactly one of Counts.
	RuleQuestionCount RuleKind = iota + 1
	// RulePointsAtLeast fires when WisdomPoints >= Points.
	RulePointsAtLeast
	// RuleTopicFrequency fires when PreferredTopics[Topic] >= Frequency.
	RuleTopicFrequency
	// RuleSentimentWithTopic fires when the turn sentiment is in Sentiments and the turn topics contain Topic.
	RuleSentimentWithTopic
	// RuleSentimentAfterQuestions fires when the turn sentiment is in Sentiments and TotalQuestions > MinQuestions.
	RuleSentimentAfterQuestions
	// RuleRecentActivity fires when TotalQuestions > 0 and the turn happens within Window of LastActive.
	RuleRecentActivity
	// RuleTopicBreadth fires when the turn has at least MinTopics topics and one of them is in AnyOf.
	RuleTopicBreadth
)

// Rule is the condition of an achievement. Only the fields used by Kind are read.
type Rule struct {
	Kind         RuleKind
	Counts       []int
	Points       int
	Topic        Topic
	Frequency    int
	Sentiments   []SentimentLabel
	MinQuestions int
	Window       time.Duration
	MinTopics    int
	AnyOf        []Topic
}

// Achievement is a static, named unlockable.
type Achievement struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Rule        Rule   `json:"-"`
}

// TurnData is what the current turn contributes to achievement evaluation.
// A zero At is replaced by the wall clock.
type TurnData struct {
	Sentiment SentimentLabel `json:"sentiment"`
	Topics    []Topic        `json:"topics"`
	At        time.Time      `json:"at,omitempty"`
}

// Catalog is an ordered achievement table. Evaluation follows table order.
type Catalog []Achievement

// DefaultCatalog is the built-in achievement table.
var DefaultCatalog = Catalog{
	{
		ID: "first_question", Icon: "🌟", Title: "First Steps",
		Description: "Welcome to your spiritual journey!",
		Rule:        Rule{Kind: RuleQuestionCount, Counts: []int{1}},
	},
	{
		ID: "seeker_milestone", Icon: "🏆", Title: "Dedicated Seeker",
		Description: "Your commitment to growth shines!",
		Rule:        Rule{Kind: RuleQuestionCount, Counts: []int{10, 25, 50, 100}},
	},
	{
		ID: "wisdom_gatherer", Icon: "💎", Title: "Wisdom Gatherer",
		Description: "You've accumulated substantial spiritual insights!",
		Rule:        Rule{Kind: RulePointsAtLeast, Points: 500},
	},
	{
		ID: "deep_thinker", Icon: "🤔", Title: "Jnana Yogi",
		Description: "Your love for wisdom and knowledge is evident!",
		Rule:        Rule{Kind: RuleTopicFrequency, Topic: JnanaYoga, Frequency: 5},
	},
	{
		ID: "devoted_heart", Icon: "❤️", Title: "Bhakti Yogi",
		Description: "Your heart overflows with devotion!",
		Rule:        Rule{Kind: RuleTopicFrequency, Topic: BhaktiYoga, Frequency: 5},
	},
	{
		ID: "karma_warrior", Icon: "⚔️", Title: "Karma Yogi",
		Description: "You understand the path of selfless action!",
		Rule:        Rule{Kind: RuleTopicFrequency, Topic: KarmaYoga, Frequency: 5},
	},
	{
		ID: "peaceful_soul", Icon: "🕊️", Title: "Peaceful Soul",
		Description: "You radiate inner tranquility!",
		Rule:        Rule{Kind: RuleSentimentWithTopic, Sentiments: []SentimentLabel{VeryPositive}, Topic: Peace},
	},
	{
		ID: "resilient_spirit", Icon: "💪", Title: "Resilient Spirit",
		Description: "Your strength through challenges is inspiring!",
		Rule:        Rule{Kind: RuleSentimentAfterQuestions, Sentiments: []SentimentLabel{Negative, VeryNegative}, MinQuestions: 5},
	},
	{
		ID: "consistent_seeker", Icon: "📅", Title: "Consistent Seeker",
		Description: "Your daily spiritual practice is admirable!",
		Rule:        Rule{Kind: RuleRecentActivity, Window: 7 * 24 * time.Hour},
	},
	{
		ID: "wisdom_sage", Icon: "🧙‍♂️", Title: "Wisdom Sage",
		Description: "You've reached profound spiritual understanding!",
		Rule:        Rule{Kind: RulePointsAtLeast, Points: 1000},
	},
	{
		ID: "enlightened_conversation", Icon: "✨", Title: "Enlightened Conversation",
		Description: "Your questions touch the depths of spiritual wisdom!",
		Rule:        Rule{Kind: RuleTopicBreadth, MinTopics: 3, AnyOf: []Topic{Spirituality, LifePurpose}},
	},
}

// Evaluate returns the achievements newly unlocked by turn, in catalog order.
// Ids already present in profile.Achievements are never returned. Evaluate does not mutate profile.
func (c Catalog) Evaluate(profile UserProfile, turn TurnData) []Achievement {
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	var out []Achievement
	for _, a := range c {
		if profile.HasAchievement(a.ID) {
			continue
		}
		if a.Rule.holds(profile, profile, turn) {
			out = append(out, a)
		}
	}
	return out
}

// EvaluateTurn evaluates a turn worth points against before, the profile as it was before the
// turn. Count, points and topic rules see before.WithTurn(points, turn.Topics); recent activity
// is judged on before alone, so a first question is never a return visit.
func (c Catalog) EvaluateTurn(before UserProfile, points int, turn TurnData) []Achievement {
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	after := before.WithTurn(points, turn.Topics)
	var out []Achievement
	for _, a := range c {
		if before.HasAchievement(a.ID) {
			continue
		}
		if a.Rule.holds(after, before, turn) {
			out = append(out, a)
		}
	}
	return out
}

// Lookup returns the catalog entry for id.
func (c Catalog) Lookup(id string) (Achievement, bool) {
	for _, a := range c {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// EvaluateAchievements evaluates DefaultCatalog.
func EvaluateAchievements(profile UserProfile, turn TurnData) []Achievement {
	return DefaultCatalog.Evaluate(profile, turn)
}

// AchievementIDs extracts the ids of as in order.
func AchievementIDs(as []Achievement) []string {
	if len(as) == 0 {
		return nil
	}
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

// DisplayAchievement returns the catalog entry for id, or a generic entry titled after the id.
func DisplayAchievement(id string) Achievement {
	if a, ok := DefaultCatalog.Lookup(id); ok {
		return a
	}
	return Achievement{
		ID:          id,
		Icon:        "🌟",
		Title:       TitleCase(replaceUnderscores(id)),
		Description: "Achievement unlocked!",
	}
}

// holds checks r against p. prior is the profile consulted for recent activity.
func (r Rule) holds(p, prior UserProfile, turn TurnData) bool {
	switch r.Kind {
	case RuleQuestionCount:
		for _, n := range r.Counts {
			if p.TotalQuestions == n {
				return true
			}
		}
		return false
	case RulePointsAtLeast:
		return p.WisdomPoints >= r.Points
	case RuleTopicFrequency:
		return p.PreferredTopics[r.Topic] >= r.Frequency
	case RuleSentimentWithTopic:
		return containsSentiment(r.Sentiments, turn.Sentiment) && containsTopic(turn.Topics, r.Topic)
	case RuleSentimentAfterQuestions:
		return containsSentiment(r.Sentiments, turn.Sentiment) && p.TotalQuestions > r.MinQuestions
	case RuleRecentActivity:
		return prior.TotalQuestions > 0 && turn.At.Sub(prior.LastActive) <= r.Window
	case RuleTopicBreadth:
		if len(turn.Topics) < r.MinTopics {
			return false
		}
		for _, t := range turn.Topics {
			if containsTopic(r.AnyOf, t) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func containsSentiment(list []SentimentLabel, s SentimentLabel) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
