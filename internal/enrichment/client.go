package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/models"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "gpt-4o-mini"
	DefaultTimeout   = 120 * time.Second
	DefaultBackoff   = time.Second
	DefaultMaxTokens = 2000
)

// Config configures the completion client. Zero values take the defaults above.
// Temperature and MaxRetries are used as given: a zero MaxRetries means a single attempt.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	// Timeout bounds each attempt, not the whole call.
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the wait before the first retry; it doubles on each further retry.
	Backoff time.Duration
}

// Enricher produces a narrative for a structured analysis request.
type Enricher interface {
	Enrich(ctx context.Context, req models.NarrativeRequest) (Narrative, error)
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg    Config
	client *resty.Client
}

// Ensure Client implements Enricher
var _ Enricher = (*Client)(nil)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a completion client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Client{
		cfg: cfg,
		client: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetAuthToken(cfg.APIKey).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "Subreddit-Analyzer/1.0"),
	}
}

// IsEnabled reports whether an API key is configured
func (c *Client) IsEnabled() bool {
	return c.cfg.APIKey != ""
}

// Enrich sends the request to the completion endpoint and returns the validated narrative.
// Rate limiting, 5xx responses and attempt timeouts are retried with exponential backoff;
// quota exhaustion and malformed responses fail immediately.
func (c *Client) Enrich(ctx context.Context, req models.NarrativeRequest) (Narrative, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Narrative{}, fmt.Errorf("failed to marshal narrative request: %w", err)
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: string(payload)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var text string
	attempts := 0
	for {
		attempts++
		text, err = c.complete(ctx, body)
		if err == nil {
			break
		}

		var remoteErr *Error
		if !errors.As(err, &remoteErr) {
			return Narrative{}, err
		}
		remoteErr.Attempts = attempts

		if !retryable(remoteErr) || attempts > c.cfg.MaxRetries {
			return Narrative{}, remoteErr
		}

		wait := c.backoff(attempts)
		logrus.WithFields(logrus.Fields{
			"community": req.Community,
			"attempt":   attempts,
			"status":    remoteErr.StatusCode,
			"wait":      wait.String(),
		}).Warnf("Completion request failed, retrying: %v", remoteErr.Kind)

		if err := sleep(ctx, wait); err != nil {
			return Narrative{}, fmt.Errorf("narrative enrichment cancelled: %w", err)
		}
	}

	raw, err := ParseCompletion(text)
	if err != nil {
		var parseErr *Error
		if errors.As(err, &parseErr) {
			parseErr.Attempts = attempts
		}
		return Narrative{}, err
	}

	return ValidateNarrative(raw), nil
}

// backoff returns the wait before the retry following the given attempt: base, 2*base, 4*base...
func (c *Client) backoff(attempt int) time.Duration {
	return c.cfg.Backoff << (attempt - 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// complete performs a single attempt and classifies its failure.
func (c *Client) complete(ctx context.Context, body chatRequest) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(attemptCtx).
		SetBody(body).
		Post("/chat/completions")

	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("narrative enrichment cancelled: %w", ctx.Err())
		}
		if isTimeout(err) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", &Error{Kind: ErrRemoteTimeout, Err: err}
		}
		return "", &Error{Kind: ErrRemoteServerError, Err: err}
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusPaymentRequired:
		return "", &Error{Kind: ErrRemoteQuotaExhausted, StatusCode: status}
	case status == http.StatusTooManyRequests:
		return "", &Error{Kind: ErrRemoteRateLimited, StatusCode: status}
	case status >= 500:
		return "", &Error{Kind: ErrRemoteServerError, StatusCode: status}
	case status < 200 || status >= 300:
		return "", &Error{Kind: ErrRemoteRejected, StatusCode: status, Err: fmt.Errorf("%s", truncate(string(resp.Body()), 200))}
	}

	var completion chatResponse
	if err := json.Unmarshal(resp.Body(), &completion); err != nil {
		return "", &Error{Kind: ErrMalformedResponse, StatusCode: status, Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &Error{Kind: ErrMalformedResponse, StatusCode: status, Err: errors.New("no choices returned")}
	}

	return completion.Choices[0].Message.Content, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length] + "..."
}
