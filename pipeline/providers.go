package pipeline

import (
	"context"

	"linkreach/models"
)

// OutboundMessage is one email handed to a sending provider.
type OutboundMessage struct {
	From     string
	FromName string
	To       string
	Subject  string
	Body     string
}

// SEOProvider supplies backlink discovery and per-domain metrics.
type SEOProvider interface {
	Metrics(ctx context.Context, domain string) (Metrics, error)
	BacklinkDomains(ctx context.Context, targetURL string, limit int) ([]string, error)
}

// EmailFinder resolves a contact address for a domain. An empty string
// with nil error means the provider found nothing.
type EmailFinder interface {
	FindEmail(ctx context.Context, domain string) (string, error)
}

// LLMClient produces free-text analysis and outreach copy.
type LLMClient interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// MessageSender delivers a message through whatever provider the sender
// row is configured for (SMTP, Gmail API, bulk API). Returns the
// provider message id.
type MessageSender interface {
	Send(ctx context.Context, sender *models.Sender, msg OutboundMessage) (string, error)
}
