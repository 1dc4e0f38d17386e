package pipeline

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"linkreach/models"
)

func seedSentOutreach(t *testing.T, db *gorm.DB, messageID string) (*models.Sender, *models.OutreachEmail) {
	t.Helper()

	campaign := models.Campaign{Name: "Q3 Outreach", OwnerEmail: "owner@agency.com"}
	require.NoError(t, db.Create(&campaign).Error)

	domain := models.TargetDomain{
		CampaignID: campaign.ID,
		Domain:     "example.com",
		Status:     string(StatusMonitoringReplies),
	}
	require.NoError(t, db.Create(&domain).Error)

	sender := models.Sender{Name: "Main", FromEmail: "me@agency.com"}
	require.NoError(t, db.Create(&sender).Error)

	now := time.Now()
	email := models.OutreachEmail{
		DomainID:   domain.ID,
		CampaignID: campaign.ID,
		SenderID:   sender.ID,
		FromEmail:  sender.FromEmail,
		ToEmail:    "hello@example.com",
		Subject:    "Quick question",
		Status:     models.EmailSent,
		SentAt:     &now,
		MessageID:  messageID,
	}
	require.NoError(t, db.Create(&email).Error)

	return &sender, &email
}

func inboundMessage(messageID, inReplyTo, fromMailbox, fromHost string) *imap.Message {
	return &imap.Message{
		Envelope: &imap.Envelope{
			MessageId: messageID,
			InReplyTo: inReplyTo,
			Subject:   "Re: Quick question",
			From:      []*imap.Address{{MailboxName: fromMailbox, HostName: fromHost}},
			Date:      time.Now(),
		},
	}
}

// An incoming In-Reply-To carries the outbound Message-ID in angle
// brackets; the stored message_id is the bare form. The lookup must
// bridge the two.
func TestStoreMessageMatchesOutreachByInReplyTo(t *testing.T) {
	db := newTestDB(t)
	m := NewMonitor(db, quietLogger(), nil, nil, nil, nil)

	sender, email := seedSentOutreach(t, db, "abc-123@agency.com")
	msg := inboundMessage("<reply-1@example.com>", "<abc-123@agency.com>", "hello", "example.com")

	require.NoError(t, m.storeMessage(sender, msg, &imap.BodySectionName{Peek: true}))

	var reply models.InboundReply
	require.NoError(t, db.Where("message_id = ?", "<reply-1@example.com>").First(&reply).Error)
	require.NotNil(t, reply.EmailID)
	assert.Equal(t, email.ID, *reply.EmailID)
	require.NotNil(t, reply.DomainID)
	assert.Equal(t, email.DomainID, *reply.DomainID)
	require.NotNil(t, reply.CampaignID)
	assert.Equal(t, email.CampaignID, *reply.CampaignID)

	var gotEmail models.OutreachEmail
	require.NoError(t, db.First(&gotEmail, email.ID).Error)
	assert.Equal(t, models.EmailReplied, gotEmail.Status)
	assert.NotNil(t, gotEmail.RepliedAt)
}

func TestStoreMessageKeepsUnmatchedReply(t *testing.T) {
	db := newTestDB(t)
	m := NewMonitor(db, quietLogger(), nil, nil, nil, nil)

	sender, _ := seedSentOutreach(t, db, "abc-123@agency.com")
	msg := inboundMessage("<reply-2@example.com>", "<unknown-thread@elsewhere.com>", "hello", "example.com")

	require.NoError(t, m.storeMessage(sender, msg, &imap.BodySectionName{Peek: true}))

	var reply models.InboundReply
	require.NoError(t, db.Where("message_id = ?", "<reply-2@example.com>").First(&reply).Error)
	assert.Nil(t, reply.EmailID)
	assert.Nil(t, reply.CampaignID)
}

func TestStoreMessageDedupesByMessageID(t *testing.T) {
	db := newTestDB(t)
	m := NewMonitor(db, quietLogger(), nil, nil, nil, nil)

	sender, _ := seedSentOutreach(t, db, "abc-123@agency.com")
	msg := inboundMessage("<reply-3@example.com>", "<abc-123@agency.com>", "hello", "example.com")
	section := &imap.BodySectionName{Peek: true}

	require.NoError(t, m.storeMessage(sender, msg, section))
	require.NoError(t, m.storeMessage(sender, msg, section))

	var count int64
	db.Model(&models.InboundReply{}).Where("message_id = ?", "<reply-3@example.com>").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestStoreMessageSkipsOwnOutboundCopies(t *testing.T) {
	db := newTestDB(t)
	m := NewMonitor(db, quietLogger(), nil, nil, nil, nil)

	sender, _ := seedSentOutreach(t, db, "abc-123@agency.com")
	msg := inboundMessage("<copy-1@agency.com>", "", "me", "agency.com")

	require.NoError(t, m.storeMessage(sender, msg, &imap.BodySectionName{Peek: true}))

	var count int64
	db.Model(&models.InboundReply{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
