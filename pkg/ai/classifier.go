// Package ai talks to an OpenAI-compatible chat endpoint and turns a URL
// feature summary into a phishing probability.
//
// The client is a no-op unless configured:
//
//	ai:
//	  enabled: true
//	  api_key: "sk-..."      # or a dummy value for self-hosted endpoints
//	  base_url: ""           # set for Ollama/vLLM style gateways
//	  model: "gpt-4o-mini"
//	  max_tokens: 400
//	  temperature: 0.1
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
)

const systemPrompt = `You are a phishing-detection classifier. You receive a factual description of a URL and the signals collected about it. Respond with a JSON object only: {"probability": <0.0-1.0 likelihood the URL is a phishing page>, "reasons": [<short strings naming the signals that drove your estimate>]}.`

// Classification is the parsed model verdict.
type Classification struct {
	Probability float64  `json:"probability"`
	Reasons     []string `json:"reasons"`
}

// Client wraps the go-openai chat API. A keyless or disabled configuration
// yields a client whose IsEnabled reports false; callers skip it entirely.
type Client struct {
	client  *openai.Client
	log     *logger.Logger
	cfg     config.AIConfig
	enabled bool
}

func NewClient(cfg config.AIConfig, log *logger.Logger) *Client {
	log = log.WithComponent("ai")

	if !cfg.Enabled || cfg.APIKey == "" {
		log.Debugw("AI classifier disabled", "enabled", cfg.Enabled, "has_key", cfg.APIKey != "")
		return &Client{log: log, cfg: cfg}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	log.Infow("AI classifier initialized",
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
		"max_tokens", cfg.MaxTokens)

	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		log:     log,
		cfg:     cfg,
		enabled: true,
	}
}

func (c *Client) IsEnabled() bool {
	return c.enabled
}

// Classify sends the feature description to the model and parses its verdict.
// The returned probability is clamped to [0,1] regardless of what the model
// claims.
func (c *Client) Classify(ctx context.Context, description string) (*Classification, error) {
	if !c.enabled {
		return nil, fmt.Errorf("ai client not enabled")
	}

	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: description},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}

	content := resp.Choices[0].Message.Content

	var verdict Classification
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		c.log.Debugw("Model reply was not valid JSON", "content", content)
		return nil, fmt.Errorf("parse model reply: %w", err)
	}

	if verdict.Probability < 0 {
		verdict.Probability = 0
	} else if verdict.Probability > 1 {
		verdict.Probability = 1
	}

	c.log.Debugw("Classification completed",
		"probability", verdict.Probability,
		"reasons", len(verdict.Reasons),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())

	return &verdict, nil
}

func (c *Client) Close() error {
	c.enabled = false
	return nil
}
