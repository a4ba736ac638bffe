// Package llm is a thin client for a chat-completions endpoint. It covers
// the two requests the quiz flow needs: expanding a short topic into an
// article and generating formatted MCQ blocks from context text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint (proxies, tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// New builds a client for the given model. The default temperature of 0.7
// favors moderate creativity for both article expansion and question
// generation.
func New(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ExpandTopic asks the model for an informative article about the topic,
// which becomes the context text for question generation. The result is
// trusted as-is; length and content are not validated locally.
func (c *Client) ExpandTopic(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf("Write a 300-word informative article about the topic: '%s'", topic)
	return c.complete(ctx, prompt)
}

// GenerateQuestions asks the model for n multiple-choice questions in the
// fixed template and returns the raw text verbatim. The template is a
// prompt instruction only; the parser deals with deviations.
func (c *Client) GenerateQuestions(ctx context.Context, contextText string, n int) (string, error) {
	prompt := fmt.Sprintf(`
Based on the following content, generate %d multiple-choice questions.

Use this format:
Question: ...
A. ...
B. ...
C. ...
D. ...
Answer: ...
Explanation: ...

Content:
%s
`, n, contextText)
	return c.complete(ctx, prompt)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := completionRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("completion API error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
