package providers

import (
	"context"
	"fmt"

	"linkreach/config"
	"linkreach/models"
	"linkreach/pipeline"
	"linkreach/utils"
)

// Dispatcher routes an outbound message to the implementation matching
// the sender's provider type. It is the pipeline's MessageSender.
type Dispatcher struct {
	smtp  *SMTPSender
	gmail *GmailSender
	gmass *GMassSender
}

func NewDispatcher(cfg *config.Config, enc *utils.Encryptor) *Dispatcher {
	return &Dispatcher{
		smtp:  NewSMTPSender(enc),
		gmail: NewGmailSender(enc, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.HTTPTimeout),
		gmass: NewGMassSender(cfg.GMass, cfg.HTTPTimeout),
	}
}

func (d *Dispatcher) Send(ctx context.Context, sender *models.Sender, msg pipeline.OutboundMessage) (string, error) {
	switch sender.ProviderType {
	case models.ProviderSMTP:
		return d.smtp.Send(ctx, sender, msg)
	case models.ProviderGmail:
		return d.gmail.Send(ctx, sender, msg)
	case models.ProviderGMass:
		return d.gmass.Send(ctx, sender, msg)
	default:
		return "", fmt.Errorf("unknown provider type %q for sender %d", sender.ProviderType, sender.ID)
	}
}

var _ pipeline.MessageSender = (*Dispatcher)(nil)
