package extract

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/warp/exit-engine/logger"
)

// HTTPService talks to an OpenAI-compatible chat completions API through
// go-openai. Ollama, OpenAI, OpenRouter and self-hosted gateways all speak
// this shape; only the base URL and key differ.
type HTTPService struct {
	config  ServiceConfig
	client  *openai.Client
	attempt time.Duration

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

var errNoChoices = errors.New("no choices in response")

// NewHTTPService creates an HTTPService for cfg.
func NewHTTPService(cfg ServiceConfig) *HTTPService {
	attempt := cfg.HTTPTimeout
	if attempt <= 0 {
		attempt = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oc.BaseURL = BaseURL(cfg.Endpoint)
	}
	headers := map[string]string{}
	if cfg.Provider == "openrouter" {
		headers["X-Title"] = "Hostel Exit Engine"
	}
	oc.HTTPClient = &http.Client{Transport: &hintTransport{base: http.DefaultTransport, headers: headers}}

	return &HTTPService{
		config:  cfg,
		client:  openai.NewClientWithConfig(oc),
		attempt: attempt,
		Backoff: time.Second,
	}
}

// BaseURL turns a configured endpoint into a go-openai base URL. A full
// ".../chat/completions" URL is accepted for older configs.
func BaseURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	return strings.TrimSuffix(endpoint, "/chat/completions")
}

func (s *HTTPService) Name() string {
	return s.config.Provider + "/" + s.config.Model
}

// Extract sends the instruction and returns the raw message content.
// Transport errors, 429 and 5xx are retried with exponential backoff,
// honoring Retry-After on 429; other statuses fail immediately.
func (s *HTTPService) Extract(ctx context.Context, instruction string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: instruction},
		},
		Temperature: float32(s.config.Temperature),
		MaxTokens:   s.config.MaxTokens,
	}
	if s.config.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	logger.ExternalServiceCall(s.Name(), "chat.completions", "instruction_len", len(instruction))
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		hint := &responseHint{}
		content, err := s.send(context.WithValue(ctx, hintKey{}, hint), req)
		if err == nil {
			logger.ExternalServiceResult(s.Name(), "chat.completions", time.Since(start), nil,
				"attempts", attempt+1, "response_len", len(content))
			return content, nil
		}
		lastErr = err

		status := statusCode(err, hint)
		if attempt == s.config.MaxRetries || !shouldRetry(ctx, status) {
			break
		}

		wait := s.Backoff * time.Duration(1<<attempt)
		if status == http.StatusTooManyRequests && hint.retryAfter > 0 {
			wait = hint.retryAfter
		}
		logger.Debug("retrying extraction", "service", s.Name(), "attempt", attempt+1, "status", status, "wait", wait)

		select {
		case <-ctx.Done():
			logger.ExternalServiceResult(s.Name(), "chat.completions", time.Since(start), ctx.Err())
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	logger.ExternalServiceResult(s.Name(), "chat.completions", time.Since(start), lastErr)
	return "", lastErr
}

// send makes one attempt under its own timeout.
func (s *HTTPService) send(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.attempt)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(attemptCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// statusCode reports the HTTP status behind a failed attempt, or 0 when
// the request never got an HTTP answer.
func statusCode(err error, hint *responseHint) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode
	}
	if hint != nil && hint.status >= http.StatusBadRequest {
		return hint.status
	}
	return 0
}

func shouldRetry(ctx context.Context, status int) bool {
	if ctx.Err() != nil {
		return false
	}
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

// ===== TRANSPORT =====

type hintKey struct{}

// responseHint carries what go-openai errors leave out.
type responseHint struct {
	status     int
	retryAfter time.Duration
}

// hintTransport adds fixed headers and records status and Retry-After into
// the responseHint found on the request context.
type hintTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *hintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if hint, ok := req.Context().Value(hintKey{}).(*responseHint); ok {
		hint.status = resp.StatusCode
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds >= 0 {
			hint.retryAfter = time.Duration(seconds) * time.Second
		}
	}
	return resp, nil
}
