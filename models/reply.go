package models

import (
	"time"

	"gorm.io/gorm"
)

// Reply classification labels
const (
	ReplyInterested    = "interested"
	ReplyNotInterested = "not_interested"
	ReplyNeutral       = "neutral"
	ReplyAutoReply     = "auto_reply"
	ReplyBounce        = "bounce"
)

// InboundReply is an email fetched from a sender inbox, matched against
// outreach and classified. MessageID keeps classification stable.
type InboundReply struct {
	gorm.Model
	SenderID   uint  `gorm:"not null;index" json:"sender_id"`
	EmailID    *uint `gorm:"index" json:"email_id"`  // matched outreach email, if any
	DomainID   *uint `gorm:"index" json:"domain_id"`
	CampaignID *uint `gorm:"index" json:"campaign_id"`

	MessageID string    `gorm:"not null;uniqueIndex" json:"message_id"`
	InReplyTo string    `gorm:"index" json:"in_reply_to"`
	FromEmail string    `gorm:"not null" json:"from_email"`
	Subject   string    `json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	Date      time.Time `json:"date"`

	Classification string     `gorm:"index" json:"classification"` // interested, not_interested, neutral, auto_reply, bounce
	Rationale      string     `json:"rationale"`
	ClassifiedAt   *time.Time `json:"classified_at"`
	ForwardedAt    *time.Time `json:"forwarded_at"`

	Sender Sender `json:"-"`
}
