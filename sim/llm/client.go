package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvBaseURL = "LM_STUDIO_BASE_URL"
	EnvModel   = "LM_STUDIO_MODEL"
	EnvAPIKey  = "LM_STUDIO_API_KEY"
)

// Defaults for a local LM Studio server.
const (
	DefaultBaseURL = "http://localhost:1234/v1"
	DefaultModel   = "openai/gpt-oss-20b"
	DefaultTimeout = 6 * time.Second
)

// ClientConfig configures Client.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`

	// Disabled turns the client into a template-only capability.
	Disabled bool `yaml:"disabled"`
}

// ConfigFromEnv fills empty fields of cfg from the environment, then from defaults.
func ConfigFromEnv(cfg ClientConfig) ClientConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv(EnvBaseURL)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv(EnvModel)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
// It is safe for concurrent use.
type Client struct {
	*Templates

	baseURL    string
	model      string
	apiKey     string
	enabled    bool
	httpClient *http.Client
}

// NewClient creates a client. The timeout bounds every Generate call.
func NewClient(cfg ClientConfig) *Client {
	cfg = ConfigFromEnv(cfg)
	return &Client{
		Templates:  NewTemplates(),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		enabled:    !cfg.Disabled,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Available reports whether the client is enabled.
func (c *Client) Available() bool {
	return c.enabled
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the system prompt followed by messages and returns the
// first choice's content, trimmed.
func (c *Client) Generate(ctx context.Context, system string, messages []Message, maxTokens int, temperature float64) (string, error) {
	if !c.enabled {
		return "", ErrUnavailable
	}
	payload := chatRequest{
		Model:       c.model,
		Messages:    append([]Message{{Role: RoleSystem, Content: system}}, messages...),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("API error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", errors.New("no choices in API response")
	}
	text := strings.TrimSpace(chat.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion")
	}
	logrus.Debugf("llm: %d chars from %s in %s", len(text), c.model, time.Since(start).Round(time.Millisecond))
	return text, nil
}

// Probe checks that the server answers GET /models. It does not change
// Available; callers decide whether to disable the client.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probing %s: status %d", c.baseURL, resp.StatusCode)
	}
	return nil
}

var _ Capability = (*Client)(nil)
