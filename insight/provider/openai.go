package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// NewClient builds a client for any OpenAI-compatible chat endpoint. An empty baseURL means the
// OpenAI default. SDK-level retries are disabled; CallWithRetry owns retrying.
func NewClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	client := openai.NewClient(opts...)
	return &client
}

// RetryPolicy lists how long to wait before each retry. Rate-limit and server errors draw on
// their own lists, so a call is attempted at most 1 + len(RateLimitWaits) + len(ServerErrorWaits) times.
type RetryPolicy struct {
	RateLimitWaits   []time.Duration
	ServerErrorWaits []time.Duration
}

// DefaultRetryPolicy suits an interactive chat where the user is waiting on the answer.
var DefaultRetryPolicy = RetryPolicy{
	RateLimitWaits:   []time.Duration{2 * time.Second, 5 * time.Second},
	ServerErrorWaits: []time.Duration{1 * time.Second, 3 * time.Second},
}

// CallWithRetry sends a chat completion request, retrying rate-limit and server errors per policy.
// Waits are cut short when ctx is done.
func CallWithRetry(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, policy RetryPolicy) (*openai.ChatCompletion, error) {
	var rateLimited, serverErrs int
	for attempt := 1; ; attempt++ {
		resp, err := client.Chat.Completions.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		var wait time.Duration
		switch {
		case isRateLimitError(err):
			if rateLimited >= len(policy.RateLimitWaits) {
				return nil, fmt.Errorf("failed after %d attempts: %w", attempt, err)
			}
			wait = policy.RateLimitWaits[rateLimited]
			rateLimited++
		case isServerError(err):
			if serverErrs >= len(policy.ServerErrorWaits) {
				return nil, fmt.Errorf("failed after %d attempts: %w", attempt, err)
			}
			wait = policy.ServerErrorWaits[serverErrs]
			serverErrs++
		default:
			return nil, err
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code == http.StatusTooManyRequests
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code >= 500
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// GenerateSchema reflects T into a strict JSON schema accepted by structured-output endpoints.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	ensureStrictObjects(schemaObj)
	return schemaObj
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureStrictObjects marks every object closed and every property required, recursively.
func ensureStrictObjects(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureStrictObjects(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		ensureStrictObjects(items)
	}
}
