// Package llm drafts presenter scripts with a hosted chat model. Any endpoint
// that speaks the OpenAI chat completions wire format works.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

var (
	// ErrMissingAPIKey is returned before any request when no key is configured.
	ErrMissingAPIKey = errors.New("llm: missing API key")
	ErrEmptyDraft    = errors.New("llm: model returned an empty draft")
)

// APIError is a non-2xx answer from the model endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: endpoint answered %d: %s", e.Status, e.Body)
}

// Retryable reports whether the same draft may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// DraftRequest asks for one script.
type DraftRequest struct {
	// Brief sets the presenter persona and house rules.
	Brief       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Draft is the model's script and how it ended.
type Draft struct {
	Text  string
	Model string
	// Cut is set when the model stopped at the token limit.
	Cut bool
}

// Drafter writes scripts from a brief and a prompt.
type Drafter interface {
	Draft(ctx context.Context, req DraftRequest) (Draft, error)
}

// Config configures a Client. Empty fields use the package defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a Drafter backed by a chat completions endpoint.
type Client struct {
	apiKey   string
	endpoint string
	model    string
	http     *http.Client
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint, err := url.JoinPath(base, "chat", "completions")
	if err != nil {
		return nil, fmt.Errorf("llm: base url %q: %w", base, err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{apiKey: cfg.APIKey, endpoint: endpoint, model: model, http: hc}, nil
}

// Model is the model name sent with every draft.
func (c *Client) Model() string { return c.model }

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string     `json:"model"`
	Messages    []chatTurn `json:"messages"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatTurn `json:"message"`
		FinishReason string   `json:"finish_reason"`
	} `json:"choices"`
}

// Draft sends the brief as the system turn and the prompt as the user turn.
func (c *Client) Draft(ctx context.Context, req DraftRequest) (Draft, error) {
	if c.apiKey == "" {
		return Draft{}, ErrMissingAPIKey
	}

	turns := make([]chatTurn, 0, 2)
	if req.Brief != "" {
		turns = append(turns, chatTurn{Role: "system", Content: req.Brief})
	}
	turns = append(turns, chatTurn{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    turns,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("llm: encode draft request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Draft{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Draft{}, fmt.Errorf("llm: draft request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Draft{}, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Draft{}, fmt.Errorf("llm: decode draft: %w", err)
	}
	if len(payload.Choices) == 0 {
		return Draft{}, ErrEmptyDraft
	}
	choice := payload.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return Draft{}, ErrEmptyDraft
	}

	model := payload.Model
	if model == "" {
		model = c.model
	}
	return Draft{Text: text, Model: model, Cut: choice.FinishReason == "length"}, nil
}
