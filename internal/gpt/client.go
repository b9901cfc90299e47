// Package gpt turns an operator instruction plus flight context into a
// short announcement script using an OpenAI-compatible chat endpoint.
package gpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// Announcements are a sentence or two read aloud; a low temperature keeps
// the wording close to the instruction.
const (
	scriptTemperature = 0.3
	scriptMaxTokens   = 200
	requestTimeout    = 20 * time.Second
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Client posts chat-completion requests to a single deployment URL, e.g.
// https://<resource>.openai.azure.com/openai/deployments/<dep>/chat/completions?api-version=2024-02-01.
//
// Missing credentials are not an error at construction; every request then
// fails with domain.ErrMissingCredentials.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *logger.Logger
}

// NewClient creates a chat client for the given deployment URL and key.
func NewClient(endpoint, apiKey string, log *logger.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

// Configured reports whether both endpoint and key are set.
func (c *Client) Configured() bool {
	return c.endpoint != "" && c.apiKey != ""
}

// complete sends the conversation and returns the trimmed reply.
func (c *Client) complete(ctx context.Context, messages []message) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("gpt: %w: chat endpoint or key not set", domain.ErrMissingCredentials)
	}

	body, err := json.Marshal(chatRequest{
		Messages:    messages,
		Temperature: scriptTemperature,
		MaxTokens:   scriptMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gpt: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gpt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gpt: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gpt: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gpt: %s: %s", resp.Status, truncate(string(raw), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("gpt: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("gpt: response has no choices")
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("gpt: empty reply")
	}
	c.log.Debug("gpt: %d messages -> %d chars", len(messages), len(reply))
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
