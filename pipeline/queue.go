package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/config"
	"linkreach/models"
	"linkreach/utils"
)

// SendFunc delivers one outreach email (rotation, provider dispatch and
// tracking are the caller's concern) and returns the provider message id.
type SendFunc func(ctx context.Context, email *models.OutreachEmail) (string, error)

// Stats summarizes one queue drain.
type Stats struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Processor drains the email-search and email-send queues. The same code
// path serves the synchronous drain right after queueing and the
// periodic cron drain.
type Processor struct {
	db     *gorm.DB
	log    *logrus.Logger
	sm     *StateMachine
	cfg    config.PipelineConfig
	send   SendFunc
	finder EmailFinder
}

func NewProcessor(db *gorm.DB, log *logrus.Logger, sm *StateMachine, cfg config.PipelineConfig, send SendFunc, finder EmailFinder) *Processor {
	return &Processor{db: db, log: log, sm: sm, cfg: cfg, send: send, finder: finder}
}

// nextRetryDelay computes the exponential backoff after the given number
// of completed attempts: base × 2^attempts, capped.
func nextRetryDelay(base, max time.Duration, attempts int) time.Duration {
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// ProcessEmailQueue drains up to maxBatch eligible send items, oldest
// first. Each successful send moves the email to sent and the domain one
// pipeline step forward; each failure schedules a backoff retry until
// the attempt ceiling makes the item terminal.
func (p *Processor) ProcessEmailQueue(ctx context.Context, maxBatch int) Stats {
	var stats Stats
	items := p.eligibleItems(&models.EmailQueue{}, maxBatch)

	var queueItems []models.EmailQueue
	if err := items.Find(&queueItems).Error; err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("fetch email queue: %v", err))
		return stats
	}

	for i := range queueItems {
		if ctx.Err() != nil {
			p.log.Warn("run budget exhausted, leaving remaining send items for next cycle")
			break
		}
		item := &queueItems[i]
		if !p.claim(&models.EmailQueue{}, item.ID) {
			continue
		}
		stats.Processed++

		if err := p.processSendItem(ctx, item); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("email %d: %v", item.EmailID, err))
		} else {
			stats.Succeeded++
		}
	}
	return stats
}

func (p *Processor) processSendItem(ctx context.Context, item *models.EmailQueue) error {
	var email models.OutreachEmail
	if err := p.db.First(&email, item.EmailID).Error; err != nil {
		// data invariant violation: queue item without an email is fatal
		// for the record only
		p.finishItem(&models.EmailQueue{}, item.ID, models.QueueFailed, "outreach email missing")
		return fmt.Errorf("load email: %w", err)
	}

	messageID, sendErr := p.send(ctx, &email)

	entry := p.log.WithFields(logrus.Fields{
		"queue_item": item.ID,
		"email_id":   email.ID,
		"domain_id":  email.DomainID,
		"to":         email.ToEmail,
		"attempt":    item.AttemptCount + 1,
	})

	if sendErr != nil {
		entry.WithError(sendErr).Warn("outreach send failed")
		p.recordFailure(&models.EmailQueue{}, item.ID, item.AttemptCount, sendErr, func() {
			p.db.Model(&models.OutreachEmail{}).Where("id = ?", email.ID).
				Update("status", models.EmailFailed)
			// with no retries left the domain has no pending send work;
			// park it back in approved for operator review
			var domain models.TargetDomain
			if err := p.db.First(&domain, email.DomainID).Error; err == nil {
				if terr := p.sm.Transition(&domain, StatusSendingEmail, StatusApproved); terr != nil {
					entry.WithError(terr).Warn("could not reset domain after terminal send failure")
				}
			}
		})
		return sendErr
	}

	now := time.Now()
	if err := p.db.Model(&models.OutreachEmail{}).Where("id = ?", email.ID).
		Updates(map[string]interface{}{
			"status":     models.EmailSent,
			"sent_at":    now,
			"message_id": messageID,
		}).Error; err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	p.finishItem(&models.EmailQueue{}, item.ID, models.QueueCompleted, "")

	var domain models.TargetDomain
	if err := p.db.First(&domain, email.DomainID).Error; err == nil {
		if err := p.sm.Transition(&domain, StatusSendingEmail, StatusMonitoringReplies); err != nil {
			entry.WithError(err).Warn("could not advance domain after send")
		}
	}

	entry.WithField("message_id", messageID).Info("outreach email sent")
	return nil
}

// ProcessSearchQueue drains up to maxBatch contact-email lookups. The
// owning domain only advances once a non-empty, syntactically valid
// address lands on it.
func (p *Processor) ProcessSearchQueue(ctx context.Context, maxBatch int) Stats {
	var stats Stats

	var queueItems []models.EmailSearchQueue
	if err := p.eligibleItems(&models.EmailSearchQueue{}, maxBatch).Find(&queueItems).Error; err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("fetch search queue: %v", err))
		return stats
	}

	for i := range queueItems {
		if ctx.Err() != nil {
			p.log.Warn("run budget exhausted, leaving remaining search items for next cycle")
			break
		}
		item := &queueItems[i]
		if !p.claim(&models.EmailSearchQueue{}, item.ID) {
			continue
		}
		stats.Processed++

		if err := p.processSearchItem(ctx, item); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("domain %d: %v", item.DomainID, err))
		} else {
			stats.Succeeded++
		}
	}
	return stats
}

func (p *Processor) processSearchItem(ctx context.Context, item *models.EmailSearchQueue) error {
	var domain models.TargetDomain
	if err := p.db.First(&domain, item.DomainID).Error; err != nil {
		p.finishItem(&models.EmailSearchQueue{}, item.ID, models.QueueFailed, "target domain missing")
		return fmt.Errorf("load domain: %w", err)
	}

	entry := p.log.WithFields(logrus.Fields{
		"queue_item": item.ID,
		"domain_id":  domain.ID,
		"domain":     domain.Domain,
		"attempt":    item.AttemptCount + 1,
	})

	address, err := p.finder.FindEmail(ctx, domain.Domain)
	if err == nil && address != "" {
		if verr := checkmail.ValidateFormat(address); verr != nil {
			err = fmt.Errorf("finder returned malformed address %q: %w", address, verr)
		} else if utils.IsDisposableDomain(utils.ExtractDomain(address)) {
			err = fmt.Errorf("finder returned disposable address %q", address)
		}
	}
	if err == nil && address == "" {
		err = fmt.Errorf("no contact email found for %s", domain.Domain)
	}

	if err != nil {
		entry.WithError(err).Warn("contact email lookup failed")
		p.recordFailure(&models.EmailSearchQueue{}, item.ID, item.AttemptCount, err, func() {
			p.db.Model(&models.TargetDomain{}).Where("id = ?", domain.ID).
				Update("last_error", err.Error())
		})
		return err
	}

	if uerr := p.db.Model(&models.TargetDomain{}).Where("id = ?", domain.ID).
		Update("contact_email", address).Error; uerr != nil {
		return fmt.Errorf("store contact email: %w", uerr)
	}
	p.finishItem(&models.EmailSearchQueue{}, item.ID, models.QueueCompleted, "")

	// the transition waits for the email field; it is non-empty now
	if terr := p.sm.Transition(&domain, StatusSearchingEmail, StatusGeneratingEmail); terr != nil {
		entry.WithError(terr).Warn("could not advance domain after email found")
	}

	entry.WithField("contact_email", address).Info("contact email found")
	return nil
}

// eligibleItems builds the FIFO eligibility query shared by both queues.
func (p *Processor) eligibleItems(model interface{}, maxBatch int) *gorm.DB {
	return p.db.Model(model).
		Where("status = ?", models.QueuePending).
		Where("attempt_count = 0 OR next_retry_at <= ?", time.Now()).
		Order("created_at ASC").
		Limit(maxBatch)
}

// claim moves an item pending→processing with a conditional update so a
// concurrent run cannot process the same row.
func (p *Processor) claim(model interface{}, id uint) bool {
	res := p.db.Model(model).
		Where("id = ? AND status = ?", id, models.QueuePending).
		Update("status", models.QueueProcessing)
	if res.Error != nil {
		p.log.WithField("queue_item", id).WithError(res.Error).Warn("failed to claim queue item")
		return false
	}
	return res.RowsAffected > 0
}

func (p *Processor) finishItem(model interface{}, id uint, status, lastError string) {
	updates := map[string]interface{}{"status": status}
	if lastError != "" {
		updates["last_error"] = lastError
	}
	if err := p.db.Model(model).Where("id = ?", id).Updates(updates).Error; err != nil {
		p.log.WithField("queue_item", id).WithError(err).Warn("failed to finish queue item")
	}
}

// recordFailure increments the attempt count and either schedules the
// next retry or, at the ceiling, marks the item terminal and runs the
// caller's terminal hook.
func (p *Processor) recordFailure(model interface{}, id uint, previousAttempts int, cause error, onTerminal func()) {
	attempts := previousAttempts + 1

	if attempts >= p.cfg.MaxAttempts {
		if err := p.db.Model(model).Where("id = ?", id).Updates(map[string]interface{}{
			"status":        models.QueueFailed,
			"attempt_count": attempts,
			"last_error":    cause.Error(),
		}).Error; err != nil {
			p.log.WithField("queue_item", id).WithError(err).Warn("failed to mark item terminal")
			return
		}
		p.log.WithFields(logrus.Fields{
			"queue_item": id,
			"attempts":   attempts,
		}).Error("queue item exhausted retries, manual intervention required")
		if onTerminal != nil {
			onTerminal()
		}
		return
	}

	retryAt := time.Now().Add(nextRetryDelay(p.cfg.RetryBaseDelay, p.cfg.RetryMaxDelay, attempts))
	if err := p.db.Model(model).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.QueuePending,
		"attempt_count": attempts,
		"next_retry_at": retryAt,
		"last_error":    cause.Error(),
	}).Error; err != nil {
		p.log.WithField("queue_item", id).WithError(err).Warn("failed to schedule retry")
	}
}

// RequeueStuck returns items stranded in processing by a crashed run to
// pending, preserving their attempt count.
func (p *Processor) RequeueStuck(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)
	for _, model := range []interface{}{&models.EmailQueue{}, &models.EmailSearchQueue{}} {
		res := p.db.Model(model).
			Where("status = ? AND updated_at < ?", models.QueueProcessing, cutoff).
			Update("status", models.QueuePending)
		if res.Error != nil {
			p.log.WithError(res.Error).Warn("failed to requeue stuck items")
		} else if res.RowsAffected > 0 {
			p.log.WithField("count", res.RowsAffected).Info("requeued items stuck in processing")
		}
	}
}
