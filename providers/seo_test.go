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
	"linkreach/models"
)

func newSEOTestClient(handler http.Handler) (*SEOClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewSEOClient(config.ProviderConfig{BaseURL: srv.URL, APIKey: "test-key"}, 5*time.Second)
	return client, srv
}

func TestSEOMetrics(t *testing.T) {
	client, srv := newSEOTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/domain/metrics", r.URL.Path)
		assert.Equal(t, "example.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"authority_score": 45,
			"organic_traffic": 12000,
			"referring_domains": 300,
			"ranking_keywords": 1500,
			"traffic_cost": 830.5,
			"top_rankings": 120,
			"http_health": 96
		}`))
	}))
	defer srv.Close()

	m, err := client.Metrics(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 45.0, m.AuthorityScore)
	assert.Equal(t, 12000.0, m.OrganicTraffic)
	assert.Equal(t, 300.0, m.ReferringDomains)
	assert.Equal(t, 1500.0, m.RankingKeywords)
	assert.Equal(t, 120.0, m.TopRankings)
	assert.Equal(t, 96.0, m.HTTPHealth)

	// absent on this plan tier
	assert.Equal(t, float64(models.MetricUnknown), m.AnchorDiversity)
	assert.Equal(t, float64(models.MetricUnknown), m.TrafficFocus)
}

func TestSEOMetricsAPIError(t *testing.T) {
	client, srv := newSEOTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := client.Metrics(context.Background(), "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSEOBacklinkDomains(t *testing.T) {
	client, srv := newSEOTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/backlinks/referring-domains", r.URL.Path)
		assert.Equal(t, "https://competitor.com", r.URL.Query().Get("target"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"domains": ["blog.example.com", "news.example.org"]}`))
	}))
	defer srv.Close()

	domains, err := client.BacklinkDomains(context.Background(), "https://competitor.com", 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"blog.example.com", "news.example.org"}, domains)
}

func TestSEOBacklinkDomainsEmpty(t *testing.T) {
	client, srv := newSEOTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"domains": []}`))
	}))
	defer srv.Close()

	domains, err := client.BacklinkDomains(context.Background(), "https://competitor.com", 50)
	require.NoError(t, err)
	assert.Empty(t, domains)
}
