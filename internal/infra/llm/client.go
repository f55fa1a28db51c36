// Package llm implements the model-service client used for classification,
// sentiment, and priority scoring. The service speaks a messages API; each
// analysis sends one prompt and parses a JSON object out of the reply.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
)

const apiVersion = "2023-06-01"

// Client calls the model service over HTTP. Failures carry their HTTP status
// so the error classifier can decide retryability.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a model-service client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    "https://api.anthropic.com",
		apiKey:     apiKey,
		model:      "claude-sonnet-4-20250514",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns a category verdict for the item.
func (c *Client) Classify(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error) {
	const system = "You triage customer feedback. Reply with a JSON object " +
		`{"label": one of "bug"|"billing"|"feature_request"|"complaint"|"praise"|"other", "rationale": short string}.`
	var out struct {
		Label     string `json:"label"`
		Rationale string `json:"rationale"`
	}
	if err := c.analyze(ctx, system, item, &out); err != nil {
		return domain.Verdict{}, err
	}
	if out.Label == "" {
		return domain.Verdict{}, fmt.Errorf("model returned no classification label")
	}
	return domain.Verdict{
		Kind:      domain.VerdictClassification,
		Label:     out.Label,
		Rationale: out.Rationale,
		Model:     c.model,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Sentiment returns a sentiment verdict for the item.
func (c *Client) Sentiment(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error) {
	const system = "You judge the sentiment of customer feedback. Reply with a JSON object " +
		`{"label": one of "positive"|"neutral"|"negative", "rationale": short string}.`
	var out struct {
		Label     string `json:"label"`
		Rationale string `json:"rationale"`
	}
	if err := c.analyze(ctx, system, item, &out); err != nil {
		return domain.Verdict{}, err
	}
	if out.Label == "" {
		return domain.Verdict{}, fmt.Errorf("model returned no sentiment label")
	}
	return domain.Verdict{
		Kind:      domain.VerdictSentiment,
		Label:     out.Label,
		Rationale: out.Rationale,
		Model:     c.model,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Score returns a 1-100 priority verdict for the item.
func (c *Client) Score(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error) {
	const system = "You score how urgently customer feedback needs human follow-up. Reply with a " +
		`JSON object {"score": integer 1-100, "rationale": short string}. 100 is a live outage.`
	var out struct {
		Score     int    `json:"score"`
		Rationale string `json:"rationale"`
	}
	if err := c.analyze(ctx, system, item, &out); err != nil {
		return domain.Verdict{}, err
	}
	return domain.Verdict{
		Kind:      domain.VerdictPriority,
		Score:     out.Score,
		Rationale: out.Rationale,
		Model:     c.model,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) analyze(ctx context.Context, system string, item domain.FeedbackItem, out any) error {
	prompt := fmt.Sprintf("Channel: %s\nSubject: %s\n\n%s", item.Channel, item.Subject, item.Body)
	text, err := c.complete(ctx, system, prompt)
	if err != nil {
		return err
	}
	raw, err := extractJSON(text)
	if err != nil {
		return fmt.Errorf("model reply: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("model reply: %w", err)
	}
	return nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// complete sends one messages-API request and returns the reply text.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", call.NewHTTPError(resp.StatusCode, string(body),
			call.ParseRetryAfter(resp.Header.Get("Retry-After")))
	}

	var mr messagesResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	for _, block := range mr.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("model returned no text content")
}

// extractJSON pulls the first JSON object out of a model reply, tolerating
// prose around it.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in %q", text)
	}
	return text[start : end+1], nil
}
