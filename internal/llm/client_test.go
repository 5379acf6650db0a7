package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise/stockwizard/pkg/workerpool"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "test",
		Model:   "llama3.2:1b",
		Timeout: 5 * time.Second,
	}, workerpool.New("llm-test", 2, nil))
}

func writeCompletion(w http.ResponseWriter, contents ...string) {
	choices := make([]map[string]any, 0, len(contents))
	for i, c := range contents {
		choices = append(choices, map[string]any{
			"index":         i,
			"message":       map[string]string{"role": "assistant", "content": c},
			"finish_reason": "stop",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"model":   "llama3.2:1b",
		"choices": choices,
		"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}

func TestInvoke_SendsPromptAsSingleUserMessage(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, "  Use FIFO.  ")
	})

	out, err := c.Invoke(context.Background(), "Pergunta: estoque?")

	require.NoError(t, err)
	assert.Equal(t, "Use FIFO.", out)
	assert.Equal(t, "llama3.2:1b", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Pergunta: estoque?", got.Messages[0].Content)
}

func TestInvoke_NoChoicesIsEmptyNotError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w)
	})

	out, err := c.Invoke(context.Background(), "x")

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInvoke_WhitespaceIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, " \n\t ")
	})

	out, err := c.Invoke(context.Background(), "x")

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInvoke_EngineErrorIsReturned(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	})

	_, err := c.Invoke(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create completion")
	assert.Equal(t, 1, calls, "completion must not be retried")
}

func TestModel(t *testing.T) {
	c := NewClient(Config{Model: "m"}, workerpool.New("x", 1, nil))
	assert.Equal(t, "m", c.Model())
}
