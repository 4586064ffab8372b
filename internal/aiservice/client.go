/*
Package aiservice talks to the OpenRouter chat-completions API on behalf of the
diet, exercise and dashboard features, and turns the model's free-form replies
into typed results.
*/
package aiservice

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
	"unicode/utf8"

	"VibeHealth_V0.1/internal/observability"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// --- OpenRouter Configuration ---
const (
	defaultAPIURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultVisionModel = "qwen/qwen-2.5-vl-7b-instruct:free"
	defaultTextModel   = "qwen/qwen3-4b:free"
	defaultTimeout     = 60 * time.Second
	maxErrorBodyBytes  = 64 << 10
)

// Config carries the endpoint, credentials and model selection for a Client.
type Config struct {
	APIKey      string
	APIURL      string
	VisionModel string
	TextModel   string
	Timeout     time.Duration
	Referer     string
	Title       string
}

// Client issues single-attempt chat-completion calls. A Client without an API key
// runs offline and answers every operation with canned content.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a Client, filling unset Config fields with defaults.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = defaultVisionModel
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaultTextModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "aiservice").Logger(),
	}
}

// Offline reports whether the client has no API key and serves canned responses.
func (c *Client) Offline() bool {
	return c.cfg.APIKey == ""
}

// --- Structs for OpenRouter Request ---

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// GenerationError is any failure to obtain usable text from the model: transport
// errors, timeouts, non-2xx statuses and empty completions.
type GenerationError struct {
	Operation string
	// Status is the HTTP status code, zero when no response was received.
	Status int
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: AI service error (status %d): %s", e.Operation, e.Status, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: AI service error: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: AI service error: %s", e.Operation, e.Detail)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationFailure reports whether err came from the model call or from parsing its output.
func IsGenerationFailure(err error) bool {
	var genErr *GenerationError
	var parseErr *ParseError
	return errors.As(err, &genErr) || errors.As(err, &parseErr)
}

// complete sends one chat-completion request and returns the first choice's content.
func (c *Client) complete(ctx context.Context, operation, model, prompt, dataURL string) (string, error) {
	parts := make([]contentPart, 0, 2)
	if dataURL != "" {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}})
	}
	parts = append(parts, contentPart{Type: "text", Text: prompt})

	payloadBytes, err := json.Marshal(chatPayload{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	c.logger.Info().Str("operation", operation).Str("model", model).Msg("Calling OpenRouter API...")
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.ObserveModelCall(operation, "transport_error", time.Since(start))
		c.logger.Warn().Err(err).Str("operation", operation).Msg("OpenRouter request failed")
		return "", &GenerationError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*maxErrorBodyBytes))
	if err != nil {
		observability.ObserveModelCall(operation, "transport_error", time.Since(start))
		return "", &GenerationError{Operation: operation, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		observability.ObserveModelCall(operation, "http_error", time.Since(start))
		detail := describeAPIError(body)
		c.logger.Warn().Int("status", resp.StatusCode).Str("operation", operation).Str("detail", detail).Msg("OpenRouter returned non-200 status")
		return "", &GenerationError{Operation: operation, Status: resp.StatusCode, Detail: detail}
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		observability.ObserveModelCall(operation, "empty", time.Since(start))
		return "", &GenerationError{Operation: operation, Detail: fmt.Sprintf("no choices returned from AI: %s", truncate(string(body), 200))}
	}

	observability.ObserveModelCall(operation, "ok", time.Since(start))
	return content.String(), nil
}

// describeAPIError maps OpenRouter's error envelope to a message fit for end users.
func describeAPIError(body []byte) string {
	raw := truncate(strings.TrimSpace(string(body)), maxErrorBodyBytes)
	if !gjson.ValidBytes(body) {
		return raw
	}

	msg := gjson.GetBytes(body, "error.message").String()
	code := gjson.GetBytes(body, "error.code").Int()
	lower := strings.ToLower(msg)

	switch {
	case code == http.StatusPaymentRequired || strings.Contains(lower, "limit exceeded"):
		return "The OpenRouter API key has exceeded its spend limit. Check the key limit in the OpenRouter settings."
	case strings.Contains(lower, "rate limit") || strings.Contains(msg, "429"):
		return "The AI service is busy. Please try again shortly. (Rate Limit)"
	case strings.Contains(lower, "token"):
		return "The input is too long to process. (Token Limit)"
	case msg != "":
		return msg
	default:
		return raw
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
