package pipeline

import (
	"fmt"

	"linkreach/models"
)

// Decision is the qualification outcome for a target domain.
type Decision string

const (
	Accept Decision = "accept"
	Reject Decision = "reject"
)

// Metrics is the SEO snapshot a quality score is derived from. The last
// four families are optional; models.MetricUnknown marks a missing value
// and removes the family from both sides of the percentage.
type Metrics struct {
	AuthorityScore   float64
	OrganicTraffic   float64
	ReferringDomains float64
	RankingKeywords  float64
	TrafficCost      float64
	TopRankings      float64
	AnchorDiversity  float64 // percent of distinct anchor texts
	HTTPHealth       float64 // percent of backlinks resolving 2xx
	TrafficFocus     float64 // top-page traffic share, percent (lower is better)
}

// Breakpoint awards Points when the metric crosses Limit. Tables are
// ordered best bucket first.
type Breakpoint struct {
	Limit  float64
	Points float64
}

// ScoringConfig holds every breakpoint table and decision threshold.
// Defaults match production tuning; all of it is configuration.
type ScoringConfig struct {
	MinAuthority       float64 // hard filter, short-circuits to Reject
	MinPercent         float64
	MinAuthorityPoints float64
	MinReferringPoints float64

	Authority        []Breakpoint
	Traffic          []Breakpoint
	ReferringDomains []Breakpoint
	Keywords         []Breakpoint
	TopRankings      []Breakpoint
	AnchorDiversity  []Breakpoint
	HTTPHealth       []Breakpoint
	TrafficFocus     []Breakpoint // matched with <=, lower concentration is better
}

// DefaultScoringConfig returns the stock breakpoint tables.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MinAuthority:       30,
		MinPercent:         50,
		MinAuthorityPoints: 1,
		MinReferringPoints: 0.5,
		Authority: []Breakpoint{
			{80, 3}, {70, 2.5}, {50, 2}, {30, 1}, {20, 0.5},
		},
		Traffic: []Breakpoint{
			{100000, 3}, {50000, 2.5}, {10000, 2}, {5000, 1.5}, {1000, 1}, {100, 0.5},
		},
		ReferringDomains: []Breakpoint{
			{1000, 3}, {500, 2.5}, {250, 2}, {100, 1.5}, {50, 1}, {10, 0.5},
		},
		Keywords: []Breakpoint{
			{10000, 3}, {5000, 2.5}, {1000, 2}, {500, 1.5}, {100, 1}, {10, 0.5},
		},
		TopRankings: []Breakpoint{
			{500, 3}, {250, 2.5}, {100, 2}, {50, 1.5}, {10, 1}, {1, 0.5},
		},
		AnchorDiversity: []Breakpoint{
			{70, 2}, {50, 1.5}, {30, 1}, {10, 0.5},
		},
		HTTPHealth: []Breakpoint{
			{95, 2}, {85, 1.5}, {70, 1}, {50, 0.5},
		},
		TrafficFocus: []Breakpoint{
			{20, 2}, {40, 1.5}, {60, 1}, {80, 0.5},
		},
	}
}

// ScoreResult is the deterministic scoring outcome. Reasons are emitted in
// fixed category order so identical input yields identical output.
type ScoreResult struct {
	Points    float64
	MaxPoints float64
	Percent   float64
	Decision  Decision
	Reasons   []string
}

// Score qualifies a domain from its metrics snapshot. Pure: no clock, no
// randomness, no I/O.
func Score(cfg ScoringConfig, m Metrics) ScoreResult {
	if m.AuthorityScore < cfg.MinAuthority {
		return ScoreResult{
			Decision: Reject,
			Reasons: []string{fmt.Sprintf(
				"authority score %.0f below required minimum %.0f", m.AuthorityScore, cfg.MinAuthority)},
		}
	}

	r := ScoreResult{}
	authorityPts := r.addAtLeast("authority score", m.AuthorityScore, cfg.Authority)
	r.addAtLeast("organic traffic", m.OrganicTraffic, cfg.Traffic)
	referringPts := r.addAtLeast("referring domains", m.ReferringDomains, cfg.ReferringDomains)
	r.addAtLeast("ranking keywords", m.RankingKeywords, cfg.Keywords)

	if m.TopRankings >= 0 {
		r.addAtLeast("top-10 rankings", m.TopRankings, cfg.TopRankings)
	}
	if m.AnchorDiversity >= 0 {
		r.addAtLeast("anchor diversity", m.AnchorDiversity, cfg.AnchorDiversity)
	}
	if m.HTTPHealth >= 0 {
		r.addAtLeast("http health", m.HTTPHealth, cfg.HTTPHealth)
	}
	if m.TrafficFocus >= 0 {
		r.addAtMost("traffic concentration", m.TrafficFocus, cfg.TrafficFocus)
	}

	if r.MaxPoints > 0 {
		r.Percent = r.Points / r.MaxPoints * 100
	}

	switch {
	case r.Percent < cfg.MinPercent:
		r.Decision = Reject
		r.Reasons = append(r.Reasons, fmt.Sprintf(
			"overall quality %.1f%% below required %.0f%%", r.Percent, cfg.MinPercent))
	case authorityPts < cfg.MinAuthorityPoints:
		r.Decision = Reject
		r.Reasons = append(r.Reasons, fmt.Sprintf(
			"authority contribution %.1f below category minimum %.1f", authorityPts, cfg.MinAuthorityPoints))
	case referringPts < cfg.MinReferringPoints:
		r.Decision = Reject
		r.Reasons = append(r.Reasons, fmt.Sprintf(
			"referring-domain contribution %.1f below category minimum %.1f", referringPts, cfg.MinReferringPoints))
	default:
		r.Decision = Accept
		r.Reasons = append(r.Reasons, fmt.Sprintf(
			"overall quality %.1f%% meets required %.0f%%", r.Percent, cfg.MinPercent))
	}
	return r
}

// addAtLeast scores a "bigger is better" family: first bucket whose Limit
// the value reaches wins.
func (r *ScoreResult) addAtLeast(name string, value float64, table []Breakpoint) float64 {
	max := maxPoints(table)
	r.MaxPoints += max

	for _, bp := range table {
		if value >= bp.Limit {
			r.Points += bp.Points
			r.Reasons = append(r.Reasons, fmt.Sprintf("%s %.0f earns %.1f/%.1f points", name, value, bp.Points, max))
			return bp.Points
		}
	}
	r.Reasons = append(r.Reasons, fmt.Sprintf("%s %.0f earns 0/%.1f points", name, value, max))
	return 0
}

// addAtMost scores a "smaller is better" family such as traffic
// concentration.
func (r *ScoreResult) addAtMost(name string, value float64, table []Breakpoint) float64 {
	max := maxPoints(table)
	r.MaxPoints += max

	for _, bp := range table {
		if value <= bp.Limit {
			r.Points += bp.Points
			r.Reasons = append(r.Reasons, fmt.Sprintf("%s %.0f%% earns %.1f/%.1f points", name, value, bp.Points, max))
			return bp.Points
		}
	}
	r.Reasons = append(r.Reasons, fmt.Sprintf("%s %.0f%% earns 0/%.1f points", name, value, max))
	return 0
}

func maxPoints(table []Breakpoint) float64 {
	var max float64
	for _, bp := range table {
		if bp.Points > max {
			max = bp.Points
		}
	}
	return max
}

// MetricsFromDomain lifts the persisted snapshot into a scoring input.
func MetricsFromDomain(d *models.TargetDomain) Metrics {
	return Metrics{
		AuthorityScore:   d.AuthorityScore,
		OrganicTraffic:   d.OrganicTraffic,
		ReferringDomains: d.ReferringDomains,
		RankingKeywords:  d.RankingKeywords,
		TrafficCost:      d.TrafficCost,
		TopRankings:      d.TopRankings,
		AnchorDiversity:  d.AnchorDiversity,
		HTTPHealth:       d.HTTPHealth,
		TrafficFocus:     d.TrafficFocus,
	}
}

// ApplyScore writes the derived fields next to the snapshot they came
// from. The quality score is never mutated through any other path.
func ApplyScore(d *models.TargetDomain, r ScoreResult) {
	d.QualityScore = r.Percent
	d.QualityPoints = r.Points
	d.QualityMax = r.MaxPoints
	d.ScoreReasons = r.Reasons
}
