// Package ticket implements the tracking-system client. Errors carry their
// HTTP status and Retry-After so the call classifier can route them.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
)

// Fields are the ticket creation payload.
type Fields struct {
	Project     string   `json:"project"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Priority    string   `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Config holds ticket-service connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Project string        `yaml:"project"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client is an HTTP client for the ticket service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a ticket-service client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type ticketResponse struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// CreateTicket opens a ticket and returns its reference.
func (c *Client) CreateTicket(ctx context.Context, fields Fields) (*domain.TicketRef, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket fields: %w", err)
	}

	var tr ticketResponse
	if err := c.do(ctx, http.MethodPost, "/api/tickets", payload, &tr); err != nil {
		return nil, err
	}
	return &domain.TicketRef{
		ID:     tr.ID,
		Key:    tr.Key,
		URL:    tr.URL,
		Status: tr.Status,
	}, nil
}

// GetTicketStatus reads the current status of a ticket.
func (c *Client) GetTicketStatus(ctx context.Context, id string) (string, error) {
	var tr ticketResponse
	if err := c.do(ctx, http.MethodGet, "/api/tickets/"+id, nil, &tr); err != nil {
		return "", err
	}
	return tr.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ticket call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return call.NewHTTPError(resp.StatusCode, string(respBody),
			call.ParseRetryAfter(resp.Header.Get("Retry-After")))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
