package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/fileutils"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/logger"
)

// Exchange is one earlier question and the answer it got.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Personality describes the asker so the guide can adapt its tone.
type Personality struct {
	CommunicationStyle insight.LearningStyle  `json:"communication_style"`
	TopInterests       []insight.Topic        `json:"top_interests"`
	DominantEmotion    insight.SentimentLabel `json:"dominant_emotion"`
}

// Request is one question with the recent exchanges and asker profile sent alongside it.
type Request struct {
	Question    string       `json:"question"`
	Context     []Exchange   `json:"context,omitempty"`
	Personality *Personality `json:"personality_context,omitempty"`
}

// Answer is a guide reply. Source names the backend that produced it.
type Answer struct {
	Answer          string   `json:"answer"`
	Context         string   `json:"context"`
	Confidence      float64  `json:"confidence"`
	VerseReferences []string `json:"verse_references,omitempty"`
	Source          string   `json:"source"`
}

// Answerer produces the guide's reply to a question. Failures wrap insight.ErrUpstreamFailure.
type Answerer interface {
	Answer(ctx context.Context, req Request) (Answer, error)
}

const (
	DefaultModel       = "llama3-70b-8192"
	DefaultTemperature = 0.8
	DefaultMaxTokens   = 600
	DefaultTopP        = 0.9
)

// modelAnswer is the structured reply requested when Structured is set.
type modelAnswer struct {
	Answer          string   `json:"answer" jsonschema:"required,description=The full answer shown to the user"`
	VerseReferences []string `json:"verse_references" jsonschema:"required,description=Gita verses cited, formatted like BG 2.47"`
}

// OpenAIAnswerer asks an OpenAI-compatible chat endpoint (OpenAI, Groq) for the answer.
type OpenAIAnswerer struct {
	Client      *openai.Client
	Model       string
	Temperature float64
	MaxTokens   int64
	TopP        float64
	Retry       RetryPolicy
	// Structured requests a JSON-schema reply. Leave off for endpoints without structured output.
	Structured bool
	// Label is reported as Answer.Context.
	Label string
	Log   *logger.Logger
}

func (a *OpenAIAnswerer) Answer(ctx context.Context, req Request) (Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Answer{}, fmt.Errorf("empty question: %w", insight.ErrInvalidInput)
	}
	log := a.Log
	if log == nil {
		log = logger.Nop()
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(orDefault(a.Model, DefaultModel)),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(BuildPrompt(req))},
		Temperature: openai.Float(orDefaultF(a.Temperature, DefaultTemperature)),
		MaxTokens:   openai.Int(orDefaultI(a.MaxTokens, DefaultMaxTokens)),
		TopP:        openai.Float(orDefaultF(a.TopP, DefaultTopP)),
	}
	if a.Structured {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "gita_answer",
					Description: openai.String("Guide answer with cited verses"),
					Schema:      GenerateSchema[modelAnswer](),
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	resp, err := CallWithRetry(ctx, a.Client, params, a.Retry)
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		return Answer{}, fmt.Errorf("chat completion: %v: %w", err, insight.ErrUpstreamFailure)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, fmt.Errorf("chat completion returned no choices: %w", insight.ErrUpstreamFailure)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if resp.Choices[0].FinishReason == "length" {
		log.Warn("answer truncated at max tokens", "model", params.Model, "max_tokens", params.MaxTokens.Value)
	}

	out := Answer{
		Context:    orDefault(a.Label, "Bhagavad Gita wisdom"),
		Confidence: 0.95,
		Source:     "model",
	}
	if a.Structured {
		var ma modelAnswer
		if err := fileutils.DecodeModelJSON(text, &ma); err != nil {
			return Answer{}, fmt.Errorf("decode structured answer: %v: %w", err, insight.ErrUpstreamFailure)
		}
		out.Answer = strings.TrimSpace(ma.Answer)
		out.VerseReferences = NormalizeVerseReferences(ma.VerseReferences)
	} else {
		out.Answer = text
		out.VerseReferences = ExtractVerseReferences(text)
	}
	if out.Answer == "" {
		return Answer{}, fmt.Errorf("empty answer: %w", insight.ErrUpstreamFailure)
	}
	log.Debug("answer received", "model", params.Model, "chars", len(out.Answer), "verses", len(out.VerseReferences))
	return out, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func orDefaultF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultI(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

// FallbackAnswerer tries Primary and falls back to Fallback when it fails.
// Cancellation of ctx is returned as is, without falling back.
type FallbackAnswerer struct {
	Primary  Answerer
	Fallback Answerer
	Log      *logger.Logger
}

func (f *FallbackAnswerer) Answer(ctx context.Context, req Request) (Answer, error) {
	log := f.Log
	if log == nil {
		log = logger.Nop()
	}
	var primaryErr error
	if f.Primary != nil {
		ans, err := f.Primary.Answer(ctx, req)
		if err == nil {
			return ans, nil
		}
		if ctx.Err() != nil || errors.Is(err, insight.ErrInvalidInput) {
			return Answer{}, err
		}
		primaryErr = err
		log.Warn("primary answerer failed, using fallback", "error", err)
	}
	if f.Fallback == nil {
		if primaryErr == nil {
			primaryErr = errors.New("no answerer configured")
		}
		return Answer{}, fmt.Errorf("%v: %w", primaryErr, insight.ErrUpstreamFailure)
	}
	ans, err := f.Fallback.Answer(ctx, req)
	if err != nil {
		return Answer{}, fmt.Errorf("fallback answerer: %v: %w", errors.Join(primaryErr, err), insight.ErrUpstreamFailure)
	}
	return ans, nil
}
