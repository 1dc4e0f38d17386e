package models

import (
	"time"

	"gorm.io/gorm"
)

// OutreachEmail statuses
const (
	EmailDraft   = "draft"
	EmailQueued  = "queued"
	EmailSent    = "sent"
	EmailFailed  = "failed"
	EmailBounced = "bounced"
	EmailReplied = "replied"
)

// Queue item statuses
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueCompleted  = "completed"
	QueueFailed     = "failed"
)

// OutreachEmail is one outbound message to a target domain's contact.
// Invariant: at most one non-failed email per (domain, campaign).
type OutreachEmail struct {
	gorm.Model
	DomainID   uint `gorm:"not null;index" json:"domain_id"`
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	SenderID   uint `gorm:"index" json:"sender_id"`

	TemplateID *uint `json:"template_id"` // nil for AI-generated copy

	FromEmail string `gorm:"not null" json:"from_email"`
	ToEmail   string `gorm:"not null" json:"to_email"`
	Subject   string `gorm:"not null" json:"subject"`
	Body      string `gorm:"type:text" json:"body"`

	Status      string     `gorm:"default:'draft';index" json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
	MessageID   string     `gorm:"index" json:"message_id"` // provider message id
	RepliedAt   *time.Time `json:"replied_at"`

	TrackingID string     `gorm:"index" json:"tracking_id"`
	OpenedAt   *time.Time `json:"opened_at"`
	OpenCount  int        `gorm:"default:0" json:"open_count"`
	ClickedAt  *time.Time `json:"clicked_at"`
	ClickCount int        `gorm:"default:0" json:"click_count"`

	// Relations
	Domain   TargetDomain `json:"-"`
	Campaign Campaign     `json:"-"`
}

// EmailSearchQueue schedules contact-email lookups for approved domains.
type EmailSearchQueue struct {
	gorm.Model
	DomainID uint `gorm:"not null;index" json:"domain_id"`

	Status       string     `gorm:"default:'pending';index" json:"status"`
	AttemptCount int        `gorm:"default:0" json:"attempt_count"`
	NextRetryAt  *time.Time `json:"next_retry_at"`
	LastError    string     `json:"last_error"`

	Domain TargetDomain `json:"-"`
}

// EmailQueue schedules outreach email delivery.
type EmailQueue struct {
	gorm.Model
	EmailID  uint `gorm:"not null;index" json:"email_id"`
	DomainID uint `gorm:"not null;index" json:"domain_id"`

	Status       string     `gorm:"default:'pending';index" json:"status"`
	AttemptCount int        `gorm:"default:0" json:"attempt_count"`
	NextRetryAt  *time.Time `json:"next_retry_at"`
	LastError    string     `json:"last_error"`

	Email OutreachEmail `json:"-"`
}
