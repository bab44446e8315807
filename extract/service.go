package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Service is the external structured-extraction boundary: instruction text
// in, raw text out. Implementations make no promise about the format of
// what they return.
type Service interface {
	Extract(ctx context.Context, instruction string) (string, error)
	Name() string
}

// ServiceConfig selects and configures a Service backend.
type ServiceConfig struct {
	Provider    string // "static", "openai", "ollama", "openrouter", "custom"
	Model       string
	Endpoint    string // API base URL, e.g. http://localhost:11434/v1
	APIKey      string
	MaxRetries  int
	Temperature float64
	MaxTokens   int
	JSONMode    bool          // request response_format json_object
	HTTPTimeout time.Duration // per attempt; the orchestrator bounds the whole call
}

// NewService creates the backend named by cfg.Provider, filling in
// provider defaults for endpoint, model and API key. OpenAI uses the
// go-openai default base URL.
func NewService(cfg ServiceConfig) (Service, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "static":
		return NewStaticService(), nil

	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = "http://localhost:11434/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "qwen2.5:1.5b-instruct"
		}

	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.Model == "" {
			cfg.Model = "gpt-4o-mini"
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key (extraction.api_key or OPENAI_API_KEY)")
		}

	case "openrouter":
		if cfg.Endpoint == "" {
			cfg.Endpoint = "https://openrouter.ai/api/v1"
		}
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
		}
		if cfg.Model == "" {
			cfg.Model = "qwen/qwen-2.5-7b-instruct"
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openrouter provider requires an API key (extraction.api_key or OPENROUTER_API_KEY)")
		}

	case "custom":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("custom provider requires an endpoint")
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("custom provider requires a model")
		}

	default:
		return nil, fmt.Errorf("unknown extraction provider: %q (supported: static, ollama, openai, openrouter, custom)", cfg.Provider)
	}

	cfg.Provider = strings.ToLower(cfg.Provider)
	return NewHTTPService(cfg), nil
}

// =============================================================================
// STATIC SERVICE - canned answer for demos and local development
// =============================================================================

// StaticResponse is the canned answer of the static backend.
const StaticResponse = `{
  "intent": "REGULAR_EXIT",
  "reason": "Personal work",
  "leave_datetime": "2025-12-21T10:00:00",
  "return_datetime": "2025-12-21T18:00:00",
  "room_type": "4_seater",
  "emergency_contact": "9999999999"
}`

// StaticService always answers with a fixed response.
type StaticService struct {
	Response string
}

// NewStaticService returns a StaticService answering StaticResponse.
func NewStaticService() *StaticService {
	return &StaticService{Response: StaticResponse}
}

func (s *StaticService) Name() string { return "static" }

func (s *StaticService) Extract(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Response, nil
}
