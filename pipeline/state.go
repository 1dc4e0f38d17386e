package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
)

// DomainStatus is a target domain's pipeline position.
type DomainStatus string

const (
	StatusPending           DomainStatus = "pending"
	StatusAnalyzing         DomainStatus = "analyzing"
	StatusApproved          DomainStatus = "approved"
	StatusRejected          DomainStatus = "rejected"
	StatusSearchingEmail    DomainStatus = "searching_email"
	StatusGeneratingEmail   DomainStatus = "generating_email"
	StatusSendingEmail      DomainStatus = "sending_email"
	StatusMonitoringReplies DomainStatus = "monitoring_replies"
	StatusContacted         DomainStatus = "contacted"
)

var (
	ErrInvalidTransition = errors.New("invalid domain status transition")
	// ErrStateConflict means the row moved since it was read; the caller
	// must not process it again this cycle.
	ErrStateConflict = errors.New("domain status changed concurrently")
)

// transitions is the complete directed graph. Backward edges are the
// retry routes: a failed step returns the domain to the state it failed
// from.
var transitions = map[DomainStatus][]DomainStatus{
	StatusPending:   {StatusAnalyzing},
	StatusAnalyzing: {StatusApproved, StatusRejected, StatusPending},
	StatusApproved:  {StatusSearchingEmail},
	StatusSearchingEmail: {StatusGeneratingEmail, StatusApproved},
	StatusGeneratingEmail: {StatusSendingEmail, StatusApproved},
	StatusSendingEmail:    {StatusMonitoringReplies, StatusApproved},
	StatusMonitoringReplies: {StatusContacted},
	StatusRejected:  {},
	StatusContacted: {},
}

// CanTransition reports whether from→to is an edge of the graph.
func CanTransition(from, to DomainStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a domain in this status leaves the pipeline.
func IsTerminal(s DomainStatus) bool {
	return len(transitions[s]) == 0
}

// StateMachine is the only writer of target_domains.status. Every
// transition is a single conditional UPDATE so two overlapping runs
// cannot both advance the same row.
type StateMachine struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewStateMachine(db *gorm.DB, log *logrus.Logger) *StateMachine {
	return &StateMachine{db: db, log: log}
}

// Transition moves a domain along one edge. It also maintains the
// campaign counters that hang off the approved and contacted states.
func (sm *StateMachine) Transition(d *models.TargetDomain, from, to DomainStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res := sm.db.Model(&models.TargetDomain{}).
		Where("id = ? AND status = ?", d.ID, string(from)).
		Updates(map[string]interface{}{
			"status":            string(to),
			"status_changed_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: domain %d expected %s", ErrStateConflict, d.ID, from)
	}
	d.Status = string(to)

	sm.log.WithFields(logrus.Fields{
		"domain_id": d.ID,
		"domain":    d.Domain,
		"from":      from,
		"to":        to,
	}).Info("domain status transition")

	switch to {
	case StatusApproved:
		sm.bumpCampaignCounter(d.CampaignID, "domains_approved")
	case StatusContacted:
		sm.bumpCampaignCounter(d.CampaignID, "domains_contacted")
	}
	return nil
}

// Fail routes a domain back to the retryable state a step failed from and
// records the error on the row. Used by the orchestrator's recover paths.
func (sm *StateMachine) Fail(d *models.TargetDomain, from, backTo DomainStatus, cause error) {
	sm.db.Model(&models.TargetDomain{}).Where("id = ?", d.ID).
		Update("last_error", cause.Error())

	if err := sm.Transition(d, from, backTo); err != nil {
		sm.log.WithFields(logrus.Fields{
			"domain_id": d.ID,
			"from":      from,
			"back_to":   backTo,
		}).WithError(err).Warn("failed to reset domain after error")
	}
}

// ResetStale returns domains stuck in a transient state for longer than
// maxAge to their retryable origin. A crash mid-step must not leave a row
// in analyzing/searching/generating limbo beyond one cycle. Rows in
// searching_email with a live queue item are legitimately waiting and are
// left alone.
func (sm *StateMachine) ResetStale(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	resets := []struct {
		from DomainStatus
		to   DomainStatus
	}{
		{StatusAnalyzing, StatusPending},
		{StatusGeneratingEmail, StatusApproved},
	}
	for _, r := range resets {
		res := sm.db.Model(&models.TargetDomain{}).
			Where("status = ? AND status_changed_at < ?", string(r.from), cutoff).
			Updates(map[string]interface{}{
				"status":            string(r.to),
				"status_changed_at": time.Now(),
			})
		if res.Error != nil {
			sm.log.WithError(res.Error).Warn("stale state sweep failed")
			continue
		}
		if res.RowsAffected > 0 {
			sm.log.WithFields(logrus.Fields{
				"from": r.from, "to": r.to, "count": res.RowsAffected,
			}).Info("reset stale domains")
		}
	}

	// searching_email without any pending or processing lookup is orphaned
	res := sm.db.Model(&models.TargetDomain{}).
		Where("status = ? AND status_changed_at < ?", string(StatusSearchingEmail), cutoff).
		Where("NOT EXISTS (SELECT 1 FROM email_search_queues q WHERE q.domain_id = target_domains.id AND q.status IN ? AND q.deleted_at IS NULL)",
			[]string{models.QueuePending, models.QueueProcessing}).
		Updates(map[string]interface{}{
			"status":            string(StatusApproved),
			"status_changed_at": time.Now(),
		})
	if res.Error != nil {
		sm.log.WithError(res.Error).Warn("orphaned search sweep failed")
	} else if res.RowsAffected > 0 {
		sm.log.WithField("count", res.RowsAffected).Info("reset orphaned email searches")
	}

	// sending_email whose message did go out but whose advance was lost
	// moves forward to monitoring
	res = sm.db.Model(&models.TargetDomain{}).
		Where("status = ? AND status_changed_at < ?", string(StatusSendingEmail), cutoff).
		Where("EXISTS (SELECT 1 FROM outreach_emails e WHERE e.domain_id = target_domains.id AND e.status = ? AND e.deleted_at IS NULL)",
			models.EmailSent).
		Updates(map[string]interface{}{
			"status":            string(StatusMonitoringReplies),
			"status_changed_at": time.Now(),
		})
	if res.Error != nil {
		sm.log.WithError(res.Error).Warn("sent-but-stranded sweep failed")
	} else if res.RowsAffected > 0 {
		sm.log.WithField("count", res.RowsAffected).Info("advanced domains with sent mail out of sending_email")
	}

	// sending_email with neither live send work nor a sent message is
	// orphaned (terminal send failure or crash mid-step)
	res = sm.db.Model(&models.TargetDomain{}).
		Where("status = ? AND status_changed_at < ?", string(StatusSendingEmail), cutoff).
		Where("NOT EXISTS (SELECT 1 FROM email_queues q WHERE q.domain_id = target_domains.id AND q.status IN ? AND q.deleted_at IS NULL)",
			[]string{models.QueuePending, models.QueueProcessing}).
		Where("NOT EXISTS (SELECT 1 FROM outreach_emails e WHERE e.domain_id = target_domains.id AND e.status = ? AND e.deleted_at IS NULL)",
			models.EmailSent).
		Updates(map[string]interface{}{
			"status":            string(StatusApproved),
			"status_changed_at": time.Now(),
		})
	if res.Error != nil {
		sm.log.WithError(res.Error).Warn("orphaned send sweep failed")
	} else if res.RowsAffected > 0 {
		sm.log.WithField("count", res.RowsAffected).Info("reset orphaned email sends")
	}
}

func (sm *StateMachine) bumpCampaignCounter(campaignID uint, column string) {
	if err := sm.db.Model(&models.Campaign{}).Where("id = ?", campaignID).
		Update(column, gorm.Expr(column+" + ?", 1)).Error; err != nil {
		sm.log.WithField("campaign_id", campaignID).WithError(err).Warn("failed to bump campaign counter")
	}
}
