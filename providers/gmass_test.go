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
	"linkreach/models"
	"linkreach/pipeline"
)

func TestGMassSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transactional", r.URL.Path)
		assert.Equal(t, "gmass-key", r.Header.Get("X-apikey"))

		var req gmassSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "outreach@agency.com", req.FromEmail)
		assert.Equal(t, "owner@example.com", req.To)
		assert.Equal(t, "Quick question", req.Subject)

		w.Write([]byte(`{"messageId": "gm-42"}`))
	}))
	defer srv.Close()

	g := NewGMassSender(config.ProviderConfig{BaseURL: srv.URL, APIKey: "gmass-key"}, 5*time.Second)

	id, err := g.Send(context.Background(), &models.Sender{}, pipeline.OutboundMessage{
		From:     "outreach@agency.com",
		FromName: "Agency",
		To:       "owner@example.com",
		Subject:  "Quick question",
		Body:     "<p>Hello</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "gm-42", id)
}

func TestGMassSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGMassSender(config.ProviderConfig{BaseURL: srv.URL, APIKey: "gmass-key"}, 5*time.Second)

	_, err := g.Send(context.Background(), &models.Sender{}, pipeline.OutboundMessage{To: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
