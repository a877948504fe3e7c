package provider

import (
	"fmt"
	"strings"
)

const guidePreamble = `You are an advanced AI spiritual guide with deep knowledge of the Bhagavad Gita and profound empathy for human spiritual journeys. You have perfect memory of previous conversations and can provide highly personalized guidance.`

const guideInstructions = `Please provide a comprehensive, empathetic response that:
1. Directly addresses the question using specific Gita verses (include chapter and verse numbers when possible)
2. Shows awareness of conversation continuity and personal growth
3. Connects ancient wisdom to modern life applications
4. Uses a warm, wise, and personally engaging tone
5. Includes practical spiritual exercises or reflections when appropriate
6. Acknowledges the user's spiritual journey and progress

Format your response with clear sections and use emotive language that resonates with the human heart while maintaining philosophical depth.`

// MaxContextExchanges is how many earlier exchanges are quoted in the prompt.
const MaxContextExchanges = 2

// BuildPrompt renders the single user prompt sent to the model.
func BuildPrompt(req Request) string {
	var ctxb strings.Builder

	exchanges := req.Context
	if len(exchanges) > MaxContextExchanges {
		exchanges = exchanges[len(exchanges)-MaxContextExchanges:]
	}
	if len(exchanges) > 0 {
		ctxb.WriteString("Recent conversation context:\n")
		for _, ex := range exchanges {
			fmt.Fprintf(&ctxb, "User previously asked: %s...\n", clip(ex.Question, 100))
			fmt.Fprintf(&ctxb, "I responded about: %s...\n", clip(ex.Answer, 150))
		}
		ctxb.WriteString("\n")
	}

	if p := req.Personality; p != nil {
		style := string(p.CommunicationStyle)
		if style == "" {
			style = "balanced"
		}
		fmt.Fprintf(&ctxb, "User's communication style: %s\n", style)
		if len(p.TopInterests) > 0 {
			names := make([]string, 0, len(p.TopInterests))
			for _, t := range p.TopInterests {
				names = append(names, string(t))
			}
			fmt.Fprintf(&ctxb, "Dominant interests: %s\n", strings.Join(names, ", "))
		}
		emotion := string(p.DominantEmotion)
		if emotion == "" {
			emotion = "neutral"
		}
		fmt.Fprintf(&ctxb, "Emotional tendency: %s\n\n", emotion)
	}

	var b strings.Builder
	b.WriteString(guidePreamble)
	b.WriteString("\n\n")
	b.WriteString(ctxb.String())
	b.WriteString("\n\nCurrent question: ")
	b.WriteString(req.Question)
	b.WriteString("\n\n")
	b.WriteString(guideInstructions)
	b.WriteString("\n\nResponse:")
	return b.String()
}

// clip returns the first n runes of s.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
