package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"linkreach/config"
)

// minFinderConfidence is the lowest provider confidence we accept for a
// discovered address.
const minFinderConfidence = 50

// FinderClient resolves contact addresses through a domain-search API.
type FinderClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewFinderClient(cfg config.ProviderConfig, timeout time.Duration) *FinderClient {
	return &FinderClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type domainSearchResponse struct {
	Data struct {
		Emails []struct {
			Value      string `json:"value"`
			Type       string `json:"type"`
			Confidence int    `json:"confidence"`
		} `json:"emails"`
	} `json:"data"`
}

// FindEmail returns the highest-confidence address the provider knows
// for the domain, or "" when nothing usable was found.
func (c *FinderClient) FindEmail(ctx context.Context, domain string) (string, error) {
	q := url.Values{}
	q.Set("domain", domain)
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v2/domain-search?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("domain search for %s: %w", domain, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", apiError("email finder", res)
	}

	var resp domainSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", err
	}

	best := ""
	bestConfidence := 0
	for _, e := range resp.Data.Emails {
		if e.Confidence < minFinderConfidence || e.Confidence <= bestConfidence {
			continue
		}
		best = e.Value
		bestConfidence = e.Confidence
	}
	return best, nil
}

// apiError summarizes a non-2xx provider response.
func apiError(provider string, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 256))
	return fmt.Errorf("%s api returned %d: %s", provider, res.StatusCode, string(body))
}
