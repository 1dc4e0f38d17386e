package models

import (
	"time"

	"gorm.io/gorm"
)

// MetricUnknown marks an optional metric the SEO provider did not return.
// Unknown metric families are excluded from quality scoring entirely.
const MetricUnknown = -1

// TargetDomain is a candidate website qualified for outreach. Its Status
// column is owned by the pipeline state machine; nothing else writes it.
type TargetDomain struct {
	gorm.Model
	CampaignID uint   `gorm:"not null;index;uniqueIndex:idx_campaign_domain" json:"campaign_id"`
	Domain     string `gorm:"not null;uniqueIndex:idx_campaign_domain" json:"domain"`

	// Metrics snapshot from the SEO provider
	AuthorityScore   float64 `gorm:"default:0" json:"authority_score"`
	OrganicTraffic   float64 `gorm:"default:0" json:"organic_traffic"`
	ReferringDomains float64 `gorm:"default:0" json:"referring_domains"`
	RankingKeywords  float64 `gorm:"default:0" json:"ranking_keywords"`
	TrafficCost      float64 `gorm:"default:0" json:"traffic_cost"`
	TopRankings      float64 `gorm:"default:-1" json:"top_rankings"`
	AnchorDiversity  float64 `gorm:"default:-1" json:"anchor_diversity"`   // percent
	HTTPHealth       float64 `gorm:"default:-1" json:"http_health"`        // percent of 2xx backlinks
	TrafficFocus     float64 `gorm:"default:-1" json:"traffic_focus"`      // top-page traffic share, percent
	MetricsFetchedAt *time.Time `json:"metrics_fetched_at"`

	// Derived quality score, recomputed only from the snapshot above
	QualityScore   float64  `gorm:"default:0" json:"quality_score"` // percent 0..100
	QualityPoints  float64  `gorm:"default:0" json:"quality_points"`
	QualityMax     float64  `gorm:"default:0" json:"quality_max"`
	ScoreReasons   []string `gorm:"type:jsonb;serializer:json" json:"score_reasons"`

	ContactEmail string `json:"contact_email"`

	// Pipeline status, see pipeline.DomainStatus
	Status          string     `gorm:"default:'pending';index" json:"status"`
	StatusChangedAt *time.Time `json:"status_changed_at"`

	// AI analysis
	AIStatus         string     `gorm:"default:'none'" json:"ai_status"` // none, completed, failed
	AIScore          float64    `gorm:"default:0" json:"ai_score"`
	AIRecommendation string     `gorm:"type:text" json:"ai_recommendation"`
	AIAnalyzedAt     *time.Time `json:"ai_analyzed_at"`

	LastError string `json:"last_error"`

	// Relations
	Campaign Campaign        `json:"-"`
	Emails   []OutreachEmail `gorm:"foreignKey:DomainID" json:"emails,omitempty"`
}
