package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkreach/config"
)

func newLLMTestClient(handler http.Handler) (*LLMClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewLLMClient(config.ProviderConfig{BaseURL: srv.URL, APIKey: "llm-key"}, "gpt-4o-mini", 5*time.Second)
	return client, srv
}

func TestLLMAnalyze(t *testing.T) {
	client, srv := newLLMTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer llm-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "rate this domain", req.Messages[1].Content)

		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "Score: 85. Solid niche site."}}]}`))
	}))
	defer srv.Close()

	out, err := client.Analyze(context.Background(), "rate this domain")
	require.NoError(t, err)
	assert.Equal(t, "Score: 85. Solid niche site.", out)
}

func TestLLMAnalyzeAPIErrorPayload(t *testing.T) {
	client, srv := newLLMTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
	}))
	defer srv.Close()

	_, err := client.Analyze(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestLLMAnalyzeNoChoices(t *testing.T) {
	client, srv := newLLMTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := client.Analyze(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestLLMAnalyzeHTTPError(t *testing.T) {
	client, srv := newLLMTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := client.Analyze(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
