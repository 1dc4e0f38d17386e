package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"linkreach/models"
	"linkreach/pipeline"
	"linkreach/utils"
)

const gmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// GmailSender delivers mail through the Gmail REST API using the
// sender's stored OAuth tokens. The oauth2 transport refreshes expired
// access tokens with the refresh token transparently.
type GmailSender struct {
	enc          *utils.Encryptor
	clientID     string
	clientSecret string
	timeout      time.Duration
}

func NewGmailSender(enc *utils.Encryptor, clientID, clientSecret string, timeout time.Duration) *GmailSender {
	return &GmailSender{enc: enc, clientID: clientID, clientSecret: clientSecret, timeout: timeout}
}

func (g *GmailSender) Send(ctx context.Context, sender *models.Sender, msg pipeline.OutboundMessage) (string, error) {
	client, err := g.httpClient(ctx, sender)
	if err != nil {
		return "", err
	}

	// Gmail's internal id never shows up in reply threading headers, so
	// an explicit Message-ID goes on the wire and is what gets stored.
	messageID := newMessageID(sender.FromEmail)
	raw := buildRawMessage(msg, messageID)
	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gmailSendURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", apiError("gmail", res)
	}
	return messageID, nil
}

func (g *GmailSender) httpClient(ctx context.Context, sender *models.Sender) (*http.Client, error) {
	accessToken, err := g.enc.Decrypt(sender.OAuthToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt oauth token: %w", err)
	}
	refreshToken, err := g.enc.Decrypt(sender.OAuthRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	conf := &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.send"},
	}
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       sender.OAuthExpiry,
	}

	client := conf.Client(ctx, token)
	client.Timeout = g.timeout
	return client, nil
}

func buildRawMessage(msg pipeline.OutboundMessage, messageID string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", msg.FromName, msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", messageID)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.String()
}
