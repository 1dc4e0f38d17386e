package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkreach/models"
)

func TestScoreHardFilter(t *testing.T) {
	cfg := DefaultScoringConfig()

	m := Metrics{
		AuthorityScore:   25,
		OrganicTraffic:   500000,
		ReferringDomains: 5000,
		RankingKeywords:  50000,
		TopRankings:      models.MetricUnknown,
		AnchorDiversity:  models.MetricUnknown,
		HTTPHealth:       models.MetricUnknown,
		TrafficFocus:     models.MetricUnknown,
	}

	r := Score(cfg, m)
	require.Equal(t, Reject, r.Decision)
	require.Len(t, r.Reasons, 1)
	assert.Contains(t, r.Reasons[0], "below required minimum")
	assert.Zero(t, r.Points)
}

func TestScoreOptionalMetricsDropFromBothSides(t *testing.T) {
	cfg := DefaultScoringConfig()

	// authority 45 -> 1, traffic 12000 -> 2, referring 300 -> 2,
	// keywords 1500 -> 2; optional families unknown, so 7 of 12.
	m := Metrics{
		AuthorityScore:   45,
		OrganicTraffic:   12000,
		ReferringDomains: 300,
		RankingKeywords:  1500,
		TopRankings:      models.MetricUnknown,
		AnchorDiversity:  models.MetricUnknown,
		HTTPHealth:       models.MetricUnknown,
		TrafficFocus:     models.MetricUnknown,
	}

	r := Score(cfg, m)
	assert.Equal(t, 7.0, r.Points)
	assert.Equal(t, 12.0, r.MaxPoints)
	assert.InDelta(t, 58.3, r.Percent, 0.1)
	require.Equal(t, Accept, r.Decision)
}

func TestScoreOptionalMetricsCounted(t *testing.T) {
	cfg := DefaultScoringConfig()

	m := Metrics{
		AuthorityScore:   45,
		OrganicTraffic:   12000,
		ReferringDomains: 300,
		RankingKeywords:  1500,
		TopRankings:      120, // -> 2
		AnchorDiversity:  75,  // -> 2
		HTTPHealth:       96,  // -> 2
		TrafficFocus:     15,  // -> 2
	}

	r := Score(cfg, m)
	assert.Equal(t, 15.0, r.Points)
	assert.Equal(t, 20.0, r.MaxPoints)
	assert.Equal(t, Accept, r.Decision)
}

func TestScoreRejectsBelowPercent(t *testing.T) {
	cfg := DefaultScoringConfig()

	m := Metrics{
		AuthorityScore:   32, // 1 point, passes hard filter
		OrganicTraffic:   50,
		ReferringDomains: 5,
		RankingKeywords:  5,
		TopRankings:      models.MetricUnknown,
		AnchorDiversity:  models.MetricUnknown,
		HTTPHealth:       models.MetricUnknown,
		TrafficFocus:     models.MetricUnknown,
	}

	r := Score(cfg, m)
	require.Equal(t, Reject, r.Decision)
	assert.Contains(t, r.Reasons[len(r.Reasons)-1], "below required")
}

func TestScoreRejectsWithoutReferringContribution(t *testing.T) {
	cfg := DefaultScoringConfig()

	// strong everywhere except referring domains
	m := Metrics{
		AuthorityScore:   85,
		OrganicTraffic:   200000,
		ReferringDomains: 5,
		RankingKeywords:  20000,
		TopRankings:      600,
		AnchorDiversity:  80,
		HTTPHealth:       98,
		TrafficFocus:     10,
	}

	r := Score(cfg, m)
	if r.Percent >= cfg.MinPercent {
		require.Equal(t, Reject, r.Decision)
		assert.Contains(t, r.Reasons[len(r.Reasons)-1], "referring-domain contribution")
	}
}

func TestScoreDeterministic(t *testing.T) {
	cfg := DefaultScoringConfig()
	m := Metrics{
		AuthorityScore:   62,
		OrganicTraffic:   8000,
		ReferringDomains: 120,
		RankingKeywords:  700,
		TopRankings:      40,
		AnchorDiversity:  55,
		HTTPHealth:       88,
		TrafficFocus:     35,
	}

	first := Score(cfg, m)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(cfg, m))
	}
}

func TestApplyScore(t *testing.T) {
	d := &models.TargetDomain{}
	r := ScoreResult{Points: 7, MaxPoints: 12, Percent: 58.3, Decision: Accept, Reasons: []string{"ok"}}

	ApplyScore(d, r)
	assert.Equal(t, 58.3, d.QualityScore)
	assert.Equal(t, 7.0, d.QualityPoints)
	assert.Equal(t, 12.0, d.QualityMax)
	assert.Equal(t, []string{"ok"}, d.ScoreReasons)
}
