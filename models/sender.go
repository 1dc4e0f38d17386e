package models

import (
	"time"

	"gorm.io/gorm"
)

// Sender provider types
const (
	ProviderSMTP  = "smtp"
	ProviderGmail = "gmail"
	ProviderGMass = "gmass"
)

// Sender health statuses
const (
	HealthHealthy   = "healthy"
	HealthWarning   = "warning"
	HealthCritical  = "critical"
	HealthSuspended = "suspended"
)

// Sender represents an outbound email identity with its credentials.
type Sender struct {
	gorm.Model

	Name      string `gorm:"not null" json:"name"`
	FromEmail string `gorm:"not null;uniqueIndex" json:"from_email"`
	FromName  string `json:"from_name"`

	ProviderType string `gorm:"not null;default:'smtp'" json:"provider_type"` // smtp, gmail, gmass
	Enabled      bool   `gorm:"default:true" json:"enabled"`

	// ========= SMTP Configuration =========
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"` // Encrypted in application layer
	Encryption   string `gorm:"default:'STARTTLS'" json:"encryption"`

	// ========= IMAP (reply monitoring) =========
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port" gorm:"default:993"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"-"` // Encrypted in application layer
	IMAPMailbox  string `json:"imap_mailbox" gorm:"default:'INBOX'"`

	// ========= OAuth (gmail provider) =========
	OAuthToken        string    `gorm:"column:oauth_token" json:"-"`         // Encrypted
	OAuthRefreshToken string    `gorm:"column:oauth_refresh_token" json:"-"` // Encrypted
	OAuthExpiry       time.Time `gorm:"column:oauth_expiry" json:"oauth_expiry"`

	// ========= Usage =========
	DailyLimit int        `gorm:"default:100" json:"daily_limit"`
	SentToday  int        `gorm:"default:0" json:"sent_today"`
	TotalSent  int        `gorm:"default:0" json:"total_sent"`
	LastSentAt *time.Time `json:"last_sent_at"`

	LastTestedAt *time.Time `json:"last_tested_at"`
	LastError    *string    `json:"last_error"`

	// Relations
	Health *SenderHealth `gorm:"foreignKey:SenderID" json:"health,omitempty"`
}

func (s *Sender) Sanitize() {
	s.SMTPPassword = ""
	s.IMAPPassword = ""
	s.OAuthToken = ""
	s.OAuthRefreshToken = ""
}

// SenderHealth is the rolling reputation record for one sender. Mutated
// only by the periodic health-check pass, read by the rotation selector.
type SenderHealth struct {
	gorm.Model
	SenderID uint `gorm:"not null;uniqueIndex" json:"sender_id"`

	// Rolling window counters
	RecentSent       int `gorm:"default:0" json:"recent_sent"`
	RecentBounces    int `gorm:"default:0" json:"recent_bounces"`
	RecentComplaints int `gorm:"default:0" json:"recent_complaints"`

	HealthScore  float64    `gorm:"default:100" json:"health_score"`
	Status       string     `gorm:"default:'healthy';index" json:"status"` // healthy, warning, critical, suspended
	WarningFlags []string   `gorm:"type:jsonb;serializer:json" json:"warning_flags"`
	LastChecked  *time.Time `json:"last_checked"`
}
