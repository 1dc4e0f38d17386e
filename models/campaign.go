package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign automation modes
const (
	AutomationManual   = "manual"
	AutomationTemplate = "template"
	AutomationAI       = "ai"
)

// Campaign statuses
const (
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

// Campaign represents a lead-generation outreach campaign. Target domains
// are discovered from the competitor URLs and qualified by the pipeline.
type Campaign struct {
	gorm.Model

	Name         string `gorm:"not null" json:"name"`
	OwnerEmail   string `gorm:"not null" json:"owner_email"` // receives forwarded leads
	OwnerName    string `json:"owner_name"`
	Description  string `json:"description"`

	// Competitor URLs whose backlink profiles seed the target domain list
	CompetitorURLs []string `gorm:"type:jsonb;serializer:json" json:"competitor_urls"`

	AutomationMode string `gorm:"default:'template'" json:"automation_mode"` // manual, template, ai
	Status         string `gorm:"default:'active'" json:"status"`            // active, paused, completed

	// Static outreach copy, used unless AutomationMode is "ai"
	TemplateID    *uint  `json:"template_id"`
	EmailSubject  string `json:"email_subject"`
	EmailBody     string `gorm:"type:text" json:"email_body"`

	// When the backlink pull last ran for this campaign
	DomainsPulledAt *time.Time `json:"domains_pulled_at"`

	// Statistics (denormalized for performance)
	DomainsTotal     int `gorm:"default:0" json:"domains_total"`
	DomainsApproved  int `gorm:"default:0" json:"domains_approved"`
	DomainsContacted int `gorm:"default:0" json:"domains_contacted"`
	LeadsForwarded   int `gorm:"default:0" json:"leads_forwarded"`

	// Relations
	Domains []TargetDomain  `gorm:"foreignKey:CampaignID" json:"domains,omitempty"`
	Emails  []OutreachEmail `gorm:"foreignKey:CampaignID" json:"emails,omitempty"`
}

// Template is a reusable outreach email template with {{.Domain}} style
// placeholders expanded at queue time.
type Template struct {
	gorm.Model
	Name    string `gorm:"not null" json:"name"`
	Subject string `gorm:"not null" json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`
}
