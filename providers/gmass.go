package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"linkreach/config"
	"linkreach/models"
	"linkreach/pipeline"
)

// GMassSender delivers mail through the bulk sending API, used when a
// sender account is configured for high-volume dispatch.
type GMassSender struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewGMassSender(cfg config.ProviderConfig, timeout time.Duration) *GMassSender {
	return &GMassSender{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type gmassSendRequest struct {
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTMLBody  string `json:"htmlBody"`
}

func (g *GMassSender) Send(ctx context.Context, sender *models.Sender, msg pipeline.OutboundMessage) (string, error) {
	payload, err := json.Marshal(gmassSendRequest{
		FromEmail: msg.From,
		FromName:  msg.FromName,
		To:        msg.To,
		Subject:   msg.Subject,
		HTMLBody:  msg.Body,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/api/transactional", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-apikey", g.apiKey)

	res, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gmass send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return "", apiError("gmass", res)
	}

	var resp struct {
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}
