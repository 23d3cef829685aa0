package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/v1/", Model: "test-model", APIKey: "k", Timeout: time.Second})
}

func TestClient_Generate_SendsChatCompletion(t *testing.T) {
	// GIVEN a server that records the request and answers one choice
	var got chatRequest
	var auth, path string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  Morning, Bob.  "}}]}`))
	})

	// WHEN generating
	text, err := c.Generate(context.Background(), "be brief", []Message{{Role: RoleUser, Content: "hi"}}, 60, 0.8)

	// THEN the system prompt leads the messages and the reply is trimmed
	require.NoError(t, err)
	assert.Equal(t, "Morning, Bob.", text)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer k", auth)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 60, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
}

func TestClient_Generate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "boom", "status 500"},
		{"api error", http.StatusOK, `{"error":{"message":"model not loaded"}}`, "model not loaded"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, "empty completion"},
		{"bad json", http.StatusOK, `{`, "parsing API response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			text, err := c.Generate(context.Background(), "s", nil, 10, 0.5)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, text)
		})
	}
}

func TestClient_Generate_Timeout(t *testing.T) {
	// GIVEN a server slower than the client timeout
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	c := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m", Timeout: 50 * time.Millisecond})

	// WHEN generating
	start := time.Now()
	_, err := c.Generate(context.Background(), "s", nil, 10, 0.5)

	// THEN the call fails promptly
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient(ClientConfig{Disabled: true})
	assert.False(t, c.Available())
	_, err := c.Generate(context.Background(), "s", nil, 10, 0.5)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotEmpty(t, c.Fallback("Alice", "Bob", "by snack shelves"))
}

func TestClient_Probe(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	assert.NoError(t, c.Probe(context.Background()))

	down := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond})
	assert.Error(t, down.Probe(context.Background()))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvBaseURL, "http://lm:9999/v1")
	t.Setenv(EnvModel, "")
	t.Setenv(EnvAPIKey, "secret")

	cfg := ConfigFromEnv(ClientConfig{Model: "explicit"})

	assert.Equal(t, "http://lm:9999/v1", cfg.BaseURL)
	assert.Equal(t, "explicit", cfg.Model, "explicit values win over the environment")
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)

	t.Setenv(EnvBaseURL, "")
	assert.Equal(t, DefaultBaseURL, ConfigFromEnv(ClientConfig{}).BaseURL)
	assert.Equal(t, DefaultModel, ConfigFromEnv(ClientConfig{}).Model)
}

func TestTemplates_NeverEmptyAndRotate(t *testing.T) {
	tpl := NewTemplates()
	assert.False(t, tpl.Available())

	seen := make(map[string]bool)
	for i := 0; i < len(templates); i++ {
		line := tpl.Fallback("Alice", "Ben", "by snack shelves")
		require.NotEmpty(t, line)
		assert.True(t, strings.HasSuffix(line, ".") || strings.HasSuffix(line, "?"), line)
		seen[line] = true
	}
	assert.Len(t, seen, len(templates), "consecutive calls cycle through every template")
	assert.NotEmpty(t, tpl.Fallback("", "", ""))
}
