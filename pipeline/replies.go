package pipeline

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
)

// replyFetchWindow bounds how many recent inbox messages one pass reads
// per sender.
const replyFetchWindow = 50

// Monitor pulls inbound mail from sender inboxes over IMAP, matches it to
// outreach, classifies it and forwards interested leads to the campaign
// owner.
type Monitor struct {
	db         *gorm.DB
	log        *logrus.Logger
	classifier *Classifier
	sender     MessageSender
	health     *HealthChecker
	decrypt    func(string) (string, error)
}

func NewMonitor(db *gorm.DB, log *logrus.Logger, classifier *Classifier, sender MessageSender, health *HealthChecker, decrypt func(string) (string, error)) *Monitor {
	return &Monitor{db: db, log: log, classifier: classifier, sender: sender, health: health, decrypt: decrypt}
}

// FetchReplies reads every IMAP-enabled sender inbox and persists unseen
// messages as inbound replies. One sender failing does not stop the rest.
func (m *Monitor) FetchReplies(ctx context.Context) error {
	var senders []models.Sender
	if err := m.db.Where("imap_host IS NOT NULL AND imap_host != ''").Find(&senders).Error; err != nil {
		return fmt.Errorf("fetch senders: %w", err)
	}

	for i := range senders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.fetchFromIMAP(&senders[i]); err != nil {
			m.log.WithFields(logrus.Fields{
				"sender_id": senders[i].ID,
				"sender":    senders[i].FromEmail,
			}).WithError(err).Warn("imap fetch failed")
		}
	}
	return nil
}

func (m *Monitor) fetchFromIMAP(sender *models.Sender) error {
	password, err := m.decrypt(sender.IMAPPassword)
	if err != nil {
		return fmt.Errorf("decrypt imap password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", sender.IMAPHost, sender.IMAPPort)
	imapClient, err := client.DialTLS(addr, &tls.Config{ServerName: sender.IMAPHost})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(sender.IMAPUsername, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	mailbox := sender.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	mbox, err := imapClient.Select(mailbox, true)
	if err != nil {
		return fmt.Errorf("select %s: %w", mailbox, err)
	}
	if mbox.Messages == 0 {
		return nil
	}

	from := uint32(1)
	if mbox.Messages > replyFetchWindow {
		from = mbox.Messages - replyFetchWindow + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, replyFetchWindow)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	for msg := range messages {
		if err := m.storeMessage(sender, msg, section); err != nil {
			m.log.WithField("sender_id", sender.ID).WithError(err).Debug("skipping inbound message")
		}
	}
	return <-done
}

func (m *Monitor) storeMessage(sender *models.Sender, msg *imap.Message, section *imap.BodySectionName) error {
	if msg.Envelope == nil {
		return fmt.Errorf("message without envelope")
	}
	messageID := msg.Envelope.MessageId
	if messageID == "" {
		return fmt.Errorf("message without message id")
	}

	var existing int64
	m.db.Model(&models.InboundReply{}).Where("message_id = ?", messageID).Count(&existing)
	if existing > 0 {
		return nil
	}

	var fromAddr string
	if len(msg.Envelope.From) > 0 {
		fromAddr = msg.Envelope.From[0].Address()
	}
	// our own outbound copies show up in some provider inboxes
	if strings.EqualFold(fromAddr, sender.FromEmail) {
		return nil
	}

	body := m.readBody(msg, section)

	reply := models.InboundReply{
		SenderID:  sender.ID,
		MessageID: messageID,
		InReplyTo: msg.Envelope.InReplyTo,
		FromEmail: fromAddr,
		Subject:   msg.Envelope.Subject,
		Body:      body,
		Date:      msg.Envelope.Date,
	}

	// match against outreach via the threading headers
	if msg.Envelope.InReplyTo != "" {
		var email models.OutreachEmail
		ref := strings.Trim(msg.Envelope.InReplyTo, "<>")
		if err := m.db.Where("message_id = ?", ref).First(&email).Error; err == nil {
			reply.EmailID = &email.ID
			reply.DomainID = &email.DomainID
			reply.CampaignID = &email.CampaignID

			now := time.Now()
			m.db.Model(&models.OutreachEmail{}).Where("id = ?", email.ID).
				Updates(map[string]interface{}{"status": models.EmailReplied, "replied_at": now})
		}
	}

	if err := m.db.Create(&reply).Error; err != nil {
		return fmt.Errorf("store reply: %w", err)
	}
	m.log.WithFields(logrus.Fields{
		"sender_id":  sender.ID,
		"from":       fromAddr,
		"message_id": messageID,
	}).Info("inbound reply stored")
	return nil
}

func (m *Monitor) readBody(msg *imap.Message, section *imap.BodySectionName) string {
	r := msg.GetBody(section)
	if r == nil {
		return ""
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if _, ok := part.Header.(*mail.InlineHeader); ok {
			b, err := io.ReadAll(part.Body)
			if err == nil && len(b) > 0 {
				return string(b)
			}
		}
	}
	return ""
}

// ClassifyNew labels up to maxBatch unclassified replies, oldest first,
// and feeds bounce signals into sender health. A backlog larger than the
// batch waits for the next cycle, same as the queue processor.
func (m *Monitor) ClassifyNew(ctx context.Context, maxBatch int) error {
	var replies []models.InboundReply
	if err := m.db.Where("classification = '' OR classification IS NULL").
		Order("created_at ASC").Limit(maxBatch).Find(&replies).Error; err != nil {
		return fmt.Errorf("fetch unclassified replies: %w", err)
	}

	for i := range replies {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reply := &replies[i]
		cls, err := m.classifier.Classify(ctx, reply)
		if err != nil {
			m.log.WithField("reply_id", reply.ID).WithError(err).Warn("classification failed")
			continue
		}
		if cls.Label == models.ReplyBounce {
			m.health.RecordBounce(reply.SenderID, reply.EmailID)
		}
	}
	return nil
}

// ForwardLeads sends each interested reply to its campaign owner exactly
// once. The forwarded_at column is claimed with a conditional update
// before sending; a failed send releases the claim for the next cycle.
func (m *Monitor) ForwardLeads(ctx context.Context) error {
	var replies []models.InboundReply
	if err := m.db.Where("classification = ? AND forwarded_at IS NULL AND campaign_id IS NOT NULL",
		models.ReplyInterested).Order("created_at ASC").Find(&replies).Error; err != nil {
		return fmt.Errorf("fetch interested replies: %w", err)
	}

	for i := range replies {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reply := &replies[i]

		res := m.db.Model(&models.InboundReply{}).
			Where("id = ? AND forwarded_at IS NULL", reply.ID).
			Update("forwarded_at", time.Now())
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}

		if err := m.forwardReply(ctx, reply); err != nil {
			m.log.WithField("reply_id", reply.ID).WithError(err).Warn("lead forward failed, releasing claim")
			m.db.Model(&models.InboundReply{}).Where("id = ?", reply.ID).
				Update("forwarded_at", nil)
			continue
		}

		m.db.Model(&models.Campaign{}).Where("id = ?", *reply.CampaignID).
			Update("leads_forwarded", gorm.Expr("leads_forwarded + ?", 1))
	}
	return nil
}

func (m *Monitor) forwardReply(ctx context.Context, reply *models.InboundReply) error {
	var campaign models.Campaign
	if err := m.db.First(&campaign, *reply.CampaignID).Error; err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	var sender models.Sender
	if err := m.db.First(&sender, reply.SenderID).Error; err != nil {
		return fmt.Errorf("load sender: %w", err)
	}

	msg := OutboundMessage{
		From:     sender.FromEmail,
		FromName: sender.FromName,
		To:       campaign.OwnerEmail,
		Subject:  "[lead] " + reply.Subject,
		Body: fmt.Sprintf("Interested reply for campaign %q from %s:\n\n%s",
			campaign.Name, reply.FromEmail, reply.Body),
	}
	if _, err := m.sender.Send(ctx, &sender, msg); err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"reply_id":    reply.ID,
		"campaign_id": campaign.ID,
		"owner":       campaign.OwnerEmail,
	}).Info("interested lead forwarded")
	return nil
}
