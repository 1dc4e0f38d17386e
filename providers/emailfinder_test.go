package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkreach/config"
)

func newFinderTestClient(handler http.Handler) (*FinderClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewFinderClient(config.ProviderConfig{BaseURL: srv.URL, APIKey: "finder-key"}, 5*time.Second)
	return client, srv
}

func TestFindEmailPicksHighestConfidence(t *testing.T) {
	client, srv := newFinderTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/domain-search", r.URL.Path)
		assert.Equal(t, "example.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "finder-key", r.URL.Query().Get("api_key"))

		w.Write([]byte(`{"data": {"emails": [
			{"value": "info@example.com", "type": "generic", "confidence": 72},
			{"value": "jane@example.com", "type": "personal", "confidence": 91},
			{"value": "old@example.com", "type": "personal", "confidence": 55}
		]}}`))
	}))
	defer srv.Close()

	email, err := client.FindEmail(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", email)
}

func TestFindEmailFiltersLowConfidence(t *testing.T) {
	client, srv := newFinderTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"emails": [
			{"value": "guess@example.com", "type": "generic", "confidence": 20},
			{"value": "maybe@example.com", "type": "personal", "confidence": 49}
		]}}`))
	}))
	defer srv.Close()

	email, err := client.FindEmail(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestFindEmailNotFound(t *testing.T) {
	client, srv := newFinderTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	email, err := client.FindEmail(context.Background(), "obscure.example")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestFindEmailAPIError(t *testing.T) {
	client, srv := newFinderTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := client.FindEmail(context.Background(), "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
