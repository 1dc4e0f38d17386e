package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"linkreach/models"
)

func TestCanTransition(t *testing.T) {
	valid := []struct{ from, to DomainStatus }{
		{StatusPending, StatusAnalyzing},
		{StatusAnalyzing, StatusApproved},
		{StatusAnalyzing, StatusRejected},
		{StatusAnalyzing, StatusPending},
		{StatusApproved, StatusSearchingEmail},
		{StatusSearchingEmail, StatusGeneratingEmail},
		{StatusSearchingEmail, StatusApproved},
		{StatusGeneratingEmail, StatusSendingEmail},
		{StatusGeneratingEmail, StatusApproved},
		{StatusSendingEmail, StatusMonitoringReplies},
		{StatusSendingEmail, StatusApproved},
		{StatusMonitoringReplies, StatusContacted},
	}
	for _, tc := range valid {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	invalid := []struct{ from, to DomainStatus }{
		{StatusPending, StatusApproved},
		{StatusPending, StatusRejected},
		{StatusRejected, StatusApproved},
		{StatusRejected, StatusPending},
		{StatusContacted, StatusMonitoringReplies},
		{StatusApproved, StatusGeneratingEmail},
		{StatusMonitoringReplies, StatusApproved},
		{StatusApproved, StatusPending},
	}
	for _, tc := range invalid {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusRejected))
	assert.True(t, IsTerminal(StatusContacted))

	for _, s := range []DomainStatus{
		StatusPending, StatusAnalyzing, StatusApproved,
		StatusSearchingEmail, StatusGeneratingEmail,
		StatusSendingEmail, StatusMonitoringReplies,
	} {
		assert.False(t, IsTerminal(s), string(s))
	}
}

func seedStaleDomain(t *testing.T, db *gorm.DB, status DomainStatus, age time.Duration) *models.TargetDomain {
	t.Helper()

	campaign := models.Campaign{Name: "Sweep", OwnerEmail: "owner@agency.com"}
	require.NoError(t, db.Create(&campaign).Error)

	changed := time.Now().Add(-age)
	domain := models.TargetDomain{
		CampaignID:      campaign.ID,
		Domain:          "example.com",
		Status:          string(status),
		StatusChangedAt: &changed,
	}
	require.NoError(t, db.Create(&domain).Error)
	return &domain
}

func domainStatus(t *testing.T, db *gorm.DB, id uint) string {
	t.Helper()
	var d models.TargetDomain
	require.NoError(t, db.First(&d, id).Error)
	return d.Status
}

func TestResetStaleReturnsAnalyzingToPending(t *testing.T) {
	db := newTestDB(t)
	sm := NewStateMachine(db, quietLogger())
	domain := seedStaleDomain(t, db, StatusAnalyzing, 2*time.Hour)

	sm.ResetStale(time.Hour)
	assert.Equal(t, string(StatusPending), domainStatus(t, db, domain.ID))
}

func TestResetStaleReturnsTerminallyFailedSendToApproved(t *testing.T) {
	db := newTestDB(t)
	sm := NewStateMachine(db, quietLogger())
	domain := seedStaleDomain(t, db, StatusSendingEmail, 2*time.Hour)

	email := models.OutreachEmail{
		DomainID: domain.ID, CampaignID: domain.CampaignID,
		FromEmail: "me@agency.com", ToEmail: "hello@example.com",
		Subject: "Quick question", Status: models.EmailFailed,
	}
	require.NoError(t, db.Create(&email).Error)
	require.NoError(t, db.Create(&models.EmailQueue{
		EmailID: email.ID, DomainID: domain.ID, Status: models.QueueFailed, AttemptCount: 3,
	}).Error)

	sm.ResetStale(time.Hour)
	assert.Equal(t, string(StatusApproved), domainStatus(t, db, domain.ID))
}

func TestResetStaleAdvancesSentButStrandedDomain(t *testing.T) {
	db := newTestDB(t)
	sm := NewStateMachine(db, quietLogger())
	domain := seedStaleDomain(t, db, StatusSendingEmail, 2*time.Hour)

	now := time.Now()
	require.NoError(t, db.Create(&models.OutreachEmail{
		DomainID: domain.ID, CampaignID: domain.CampaignID,
		FromEmail: "me@agency.com", ToEmail: "hello@example.com",
		Subject: "Quick question", Status: models.EmailSent, SentAt: &now,
	}).Error)

	sm.ResetStale(time.Hour)
	assert.Equal(t, string(StatusMonitoringReplies), domainStatus(t, db, domain.ID))
}

func TestResetStaleLeavesLiveSendWorkAlone(t *testing.T) {
	db := newTestDB(t)
	sm := NewStateMachine(db, quietLogger())
	domain := seedStaleDomain(t, db, StatusSendingEmail, 2*time.Hour)

	email := models.OutreachEmail{
		DomainID: domain.ID, CampaignID: domain.CampaignID,
		FromEmail: "me@agency.com", ToEmail: "hello@example.com",
		Subject: "Quick question", Status: models.EmailQueued,
	}
	require.NoError(t, db.Create(&email).Error)
	require.NoError(t, db.Create(&models.EmailQueue{
		EmailID: email.ID, DomainID: domain.ID, Status: models.QueuePending,
	}).Error)

	sm.ResetStale(time.Hour)
	assert.Equal(t, string(StatusSendingEmail), domainStatus(t, db, domain.ID))
}

func TestResetStaleLeavesFreshDomainsAlone(t *testing.T) {
	db := newTestDB(t)
	sm := NewStateMachine(db, quietLogger())
	domain := seedStaleDomain(t, db, StatusAnalyzing, time.Minute)

	sm.ResetStale(time.Hour)
	assert.Equal(t, string(StatusAnalyzing), domainStatus(t, db, domain.ID))
}
