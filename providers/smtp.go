package providers

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"linkreach/models"
	"linkreach/pipeline"
	"linkreach/utils"
)

// SMTPSender delivers mail through the sender's own SMTP account.
// Credentials are decrypted per send; nothing is cached.
type SMTPSender struct {
	enc *utils.Encryptor
}

func NewSMTPSender(enc *utils.Encryptor) *SMTPSender {
	return &SMTPSender{enc: enc}
}

func (s *SMTPSender) Send(ctx context.Context, sender *models.Sender, msg pipeline.OutboundMessage) (string, error) {
	password, err := s.enc.Decrypt(sender.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("decrypt smtp password: %w", err)
	}

	messageID := newMessageID(sender.FromEmail)

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(msg.From, msg.FromName))
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", "<"+messageID+">")
	m.SetBody("text/html", msg.Body)

	d := gomail.NewDialer(sender.SMTPHost, sender.SMTPPort, sender.SMTPUsername, password)
	switch strings.ToUpper(sender.Encryption) {
	case "SSL", "TLS":
		d.SSL = true
	case "NONE":
		d.TLSConfig = nil
	default: // STARTTLS
		d.TLSConfig = &tls.Config{ServerName: sender.SMTPHost}
	}

	// gomail has no context support; on cancellation the dial goroutine
	// keeps running until the OS connect or server timeout fires, bounded
	// by the kernel TCP timeout.
	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("smtp send via %s: %w", sender.SMTPHost, err)
	}
	return messageID, nil
}

// newMessageID builds the RFC 5322 message id set on outbound mail.
// Stored and matched without angle brackets; reply matching strips them
// from In-Reply-To before comparing, so both sides use the bare form.
func newMessageID(fromEmail string) string {
	return fmt.Sprintf("%s@%s", uuid.New().String(), hostPart(fromEmail))
}

func hostPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return "localhost"
}
