// Package openai is a minimal chat-completions client used as an alternate
// text provider for the storyboard writer.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

const defaultTimeout = 60 * time.Second

const defaultModel = "gpt-4o-mini"

var modelCanonical = map[string]string{
	"gpt-4o-mini":   "gpt-4o-mini",
	"gpt-4o":        "gpt-4o",
	"gpt-4.1-mini":  "gpt-4.1-mini",
	"gpt-3.5-turbo": "gpt-3.5-turbo",
}

var modelAliases = map[string]string{
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt4o":                  "gpt-4o",
	"gpt-3.5":                "gpt-3.5-turbo",
	"gpt-35-turbo":           "gpt-3.5-turbo",
}

type Options struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Logger       infra.Logger
}

type Client struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	logger       infra.Logger
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	logger := opts.Logger.With().Str("component", "openai").Logger()
	model, reason := NormalizeModel(opts.Model)
	if reason != "" {
		logger.Warn().Str("requested", opts.Model).Str("resolved", model).Str("reason", reason).Msg("openai: model normalized")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		logger:       logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends one system and one user message and returns the reply,
// which is constrained to a JSON object.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	payload := chatRequest{
		Model:          c.model,
		Temperature:    0.7,
		ResponseFormat: &chatFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: openai request: %w", domain.ErrUpstreamProvider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("%w: openai status %d: %s", domain.ErrUpstreamProvider, resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("%w: openai status %d", domain.ErrUpstreamProvider, resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode openai response: %w", domain.ErrUpstreamProvider, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", domain.ErrUpstreamProvider)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: openai returned an empty message", domain.ErrUpstreamProvider)
	}
	return text, nil
}

// NormalizeModel maps loose model names onto supported identifiers. The
// second value is "alias" or "defaulted" when the input was rewritten.
func NormalizeModel(name string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultModel, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if canonical, ok := modelCanonical[normalized]; ok {
		return canonical, ""
	}
	if alias, ok := modelAliases[normalized]; ok {
		return alias, "alias"
	}
	return defaultModel, "defaulted"
}
