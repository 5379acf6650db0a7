package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/metrics"
	"github.com/stockwise/stockwizard/pkg/logger"
	"github.com/stockwise/stockwizard/pkg/workerpool"
)

// Client talks to any OpenAI-compatible chat completions endpoint (OpenAI,
// Ollama's /v1, vLLM, ...). It never retries.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	pool        *workerpool.Pool
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

func NewClient(cfg Config, pool *workerpool.Pool) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger.Info("LLM client initialized",
		zap.String("base_url", clientConfig.BaseURL),
		zap.String("model", cfg.Model),
		zap.Int("pool_size", pool.Size()),
	)

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		pool:        pool,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Invoke sends prompt as a single user message and returns the trimmed
// completion text. An engine that answers with no choices or only whitespace
// yields "" and no error.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := workerpool.Do(ctx, c.pool, func(ctx context.Context) (*CompletionResponse, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	metrics.CompletionDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}

	metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	out := &CompletionResponse{
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = strings.TrimSpace(resp.Choices[0].Message.Content)
	}

	logger.Debug("LLM completion generated",
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.Int("choices", len(resp.Choices)),
		zap.Duration("latency", time.Since(start)),
	)

	return out, nil
}
