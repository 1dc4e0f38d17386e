package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"linkreach/config"
	"linkreach/models"
	"linkreach/pipeline"
)

// SEOClient talks to the SEO metrics API for domain authority data and
// competitor backlink profiles.
type SEOClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewSEOClient(cfg config.ProviderConfig, timeout time.Duration) *SEOClient {
	return &SEOClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// domainMetricsResponse uses pointers for the metrics the API only
// returns on higher plan tiers; absent values map to the unknown
// sentinel so scoring can skip them.
type domainMetricsResponse struct {
	AuthorityScore   float64  `json:"authority_score"`
	OrganicTraffic   float64  `json:"organic_traffic"`
	ReferringDomains float64  `json:"referring_domains"`
	RankingKeywords  float64  `json:"ranking_keywords"`
	TrafficCost      float64  `json:"traffic_cost"`
	TopRankings      *float64 `json:"top_rankings"`
	AnchorDiversity  *float64 `json:"anchor_diversity"`
	HTTPHealth       *float64 `json:"http_health"`
	TrafficFocus     *float64 `json:"traffic_focus"`
}

func (c *SEOClient) Metrics(ctx context.Context, domain string) (pipeline.Metrics, error) {
	q := url.Values{}
	q.Set("domain", domain)
	q.Set("key", c.apiKey)

	var resp domainMetricsResponse
	if err := c.getJSON(ctx, "/v1/domain/metrics", q, &resp); err != nil {
		return pipeline.Metrics{}, fmt.Errorf("domain metrics for %s: %w", domain, err)
	}

	return pipeline.Metrics{
		AuthorityScore:   resp.AuthorityScore,
		OrganicTraffic:   resp.OrganicTraffic,
		ReferringDomains: resp.ReferringDomains,
		RankingKeywords:  resp.RankingKeywords,
		TrafficCost:      resp.TrafficCost,
		TopRankings:      optional(resp.TopRankings),
		AnchorDiversity:  optional(resp.AnchorDiversity),
		HTTPHealth:       optional(resp.HTTPHealth),
		TrafficFocus:     optional(resp.TrafficFocus),
	}, nil
}

type backlinkDomainsResponse struct {
	Domains []string `json:"domains"`
}

func (c *SEOClient) BacklinkDomains(ctx context.Context, targetURL string, limit int) ([]string, error) {
	q := url.Values{}
	q.Set("target", targetURL)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("key", c.apiKey)

	var resp backlinkDomainsResponse
	if err := c.getJSON(ctx, "/v1/backlinks/referring-domains", q, &resp); err != nil {
		return nil, fmt.Errorf("backlink domains for %s: %w", targetURL, err)
	}
	return resp.Domains, nil
}

func (c *SEOClient) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return apiError("seo", res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func optional(v *float64) float64 {
	if v == nil {
		return models.MetricUnknown
	}
	return *v
}
