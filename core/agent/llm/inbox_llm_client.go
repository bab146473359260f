package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"inbox_server/core/domain"
	"inbox_server/pkg/httputil"
	"inbox_server/pkg/metrics"
	"inbox_server/pkg/ratelimit"
	"inbox_server/pkg/resilience"
)

const (
	opComplete     = "complete"
	opCompleteJSON = "complete_json"
)

const (
	DefaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 2048
	defaultTimeout   = 60 * time.Second
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("llm returned no choices")

// Client talks to any OpenAI-compatible chat completion endpoint. Every call is
// bounded by a per-attempt timeout, a retry policy and a shared circuit breaker.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	retry       resilience.RetryPolicy
	breaker     *gobreaker.CircuitBreaker
	pacer       *ratelimit.Limiter
	log         zerolog.Logger
}

type ClientConfig struct {
	APIKey      string
	BaseURL     string // empty for api.openai.com
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Retry       resilience.RetryPolicy
	Logger      zerolog.Logger

	// RequestsPerSecond paces calls across every clone of the client; 0 disables.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient defaults to a pooled client sized by MaxConcurrent.
	HTTPClient    *http.Client
	MaxConcurrent int
}

func NewClientWithConfig(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = resilience.DefaultRetryPolicy()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = cfg.HTTPClient
	if oc.HTTPClient == nil {
		oc.HTTPClient = httputil.NewClient(httputil.LLMClientConfig(timeout, cfg.MaxConcurrent))
	}

	log := cfg.Logger.With().Str("component", "llm").Str("model", model).Logger()

	pacer := ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond, BurstSize: cfg.Burst})
	if pacer.Unlimited() {
		log.Debug().Msg("model calls are not paced")
	} else {
		log.Debug().Float64("rps", cfg.RequestsPerSecond).Int("burst", cfg.Burst).Msg("model calls paced")
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		retry:       retry,
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerConfig("llm-api"), log),
		pacer:       pacer,
		log:         log,
	}
}

// WithModel returns a client sharing transport, breaker and retry policy but using
// a different model name and temperature. An empty model keeps the current one.
func (c *Client) WithModel(model string, temperature float64) *Client {
	clone := *c
	if model != "" {
		clone.model = model
	}
	clone.temperature = float32(temperature)
	clone.log = c.log.With().Str("model", clone.model).Logger()
	return &clone
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the system instruction followed by the conversation turns.
func (c *Client) Complete(ctx context.Context, system string, turns []domain.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: t.Content,
		})
	}

	return c.chat(ctx, opComplete, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.requestTemperature(),
	})
}

// CompleteJSON returns a JSON object response from the model.
func (c *Client) CompleteJSON(ctx context.Context, instruction string) (string, error) {
	return c.chat(ctx, opCompleteJSON, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: instruction,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.requestTemperature(),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
}

// requestTemperature maps 0 to the smallest positive float: the request field is
// omitempty, so a literal 0 would fall back to the server default.
func (c *Client) requestTemperature() float32 {
	if c.temperature <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return c.temperature
}

func (c *Client) chat(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	var content string
	start := time.Now()

	err := resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		if err := c.pacer.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}
		result, err := c.breaker.Execute(func() (interface{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return c.client.CreateChatCompletion(attemptCtx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || !isRetryable(err) {
				return resilience.Permanent(err)
			}
			return err
		}

		resp := result.(openai.ChatCompletionResponse)
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, func(attempt int, err error) {
		metrics.IncrementLLMRetry(op)
		c.log.Warn().Err(err).Int("attempt", attempt).Str("operation", op).Msg("llm call failed, retrying")
	})
	if err != nil {
		metrics.RecordLLMCall(op, metrics.StatusError, time.Since(start))
		return "", fmt.Errorf("llm completion (%s): %w", c.model, err)
	}
	metrics.RecordLLMCall(op, metrics.StatusOK, time.Since(start))

	c.log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("chars", len(content)).
		Msg("llm completion")
	return content, nil
}

// isRetryable treats rate limits, server errors and transport failures as
// transient; other 4xx responses are permanent.
func isRetryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return true
	}
	return status == 0 || status >= 500
}
