package pipeline

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
)

// Health warning flags
const (
	FlagHighBounceRate    = "high_bounce_rate"
	FlagHighComplaintRate = "high_complaint_rate"
	FlagVolumeSpike       = "volume_spike"
)

// HealthThresholds maps a numeric health score to a status.
type HealthThresholds struct {
	Healthy  float64 // score >= Healthy  -> healthy
	Warning  float64 // score >= Warning  -> warning
	Critical float64 // score >= Critical -> critical, below -> suspended
}

func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{Healthy: 80, Warning: 60, Critical: 40}
}

// HealthChecker recomputes sender reputation from the rolling counters.
// It is the only writer of sender_healths.
type HealthChecker struct {
	db         *gorm.DB
	log        *logrus.Logger
	thresholds HealthThresholds
}

func NewHealthChecker(db *gorm.DB, log *logrus.Logger) *HealthChecker {
	return &HealthChecker{db: db, log: log, thresholds: DefaultHealthThresholds()}
}

// computeHealth derives score, status and the flags that caused any
// penalty. Pure so the thresholds are testable in isolation.
func computeHealth(t HealthThresholds, sent, bounces, complaints, sentToday, dailyLimit int) (float64, string, []string) {
	score := 100.0
	var flags []string

	if sent > 0 {
		bounceRate := float64(bounces) / float64(sent) * 100
		complaintRate := float64(complaints) / float64(sent) * 100

		score -= bounceRate * 5
		score -= complaintRate * 10

		if bounceRate > 5 {
			flags = append(flags, FlagHighBounceRate)
		}
		if complaintRate > 0.5 {
			flags = append(flags, FlagHighComplaintRate)
		}
	}

	if dailyLimit > 0 && sentToday >= dailyLimit {
		score -= 10
		flags = append(flags, FlagVolumeSpike)
	}

	if score < 0 {
		score = 0
	}

	var status string
	switch {
	case score >= t.Healthy:
		status = models.HealthHealthy
	case score >= t.Warning:
		status = models.HealthWarning
	case score >= t.Critical:
		status = models.HealthCritical
	default:
		status = models.HealthSuspended
	}
	return score, status, flags
}

// CheckAll recomputes health for every sender and raises alert events for
// senders dropping to critical or suspended.
func (hc *HealthChecker) CheckAll() error {
	var senders []models.Sender
	if err := hc.db.Preload("Health").Find(&senders).Error; err != nil {
		return err
	}

	now := time.Now()
	for _, sender := range senders {
		health := sender.Health
		if health == nil {
			health = &models.SenderHealth{SenderID: sender.ID}
			if err := hc.db.Where("sender_id = ?", sender.ID).FirstOrCreate(health).Error; err != nil {
				hc.log.WithField("sender_id", sender.ID).WithError(err).Warn("failed to create health record")
				continue
			}
		}

		score, status, flags := computeHealth(hc.thresholds,
			health.RecentSent, health.RecentBounces, health.RecentComplaints,
			sender.SentToday, sender.DailyLimit)

		if err := hc.db.Model(health).
			Select("health_score", "status", "warning_flags", "last_checked").
			Updates(models.SenderHealth{
				HealthScore:  score,
				Status:       status,
				WarningFlags: flags,
				LastChecked:  &now,
			}).Error; err != nil {
			hc.log.WithField("sender_id", sender.ID).WithError(err).Warn("failed to update sender health")
			continue
		}

		entry := hc.log.WithFields(logrus.Fields{
			"sender":       sender.FromEmail,
			"health_score": score,
			"status":       status,
			"flags":        flags,
		})
		if status == models.HealthCritical || status == models.HealthSuspended {
			entry.Error("sender health degraded")
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("sender", sender.FromEmail)
				scope.SetTag("health_status", status)
				scope.SetExtra("warning_flags", flags)
				sentry.CaptureMessage("sender health degraded: " + sender.FromEmail)
			})
		} else {
			entry.Info("sender health checked")
		}
	}
	return nil
}

// RecordBounce feeds a bounce signal into the rolling counters and the
// matching outreach email.
func (hc *HealthChecker) RecordBounce(senderID uint, emailID *uint) {
	hc.db.Model(&models.SenderHealth{}).Where("sender_id = ?", senderID).
		Update("recent_bounces", gorm.Expr("recent_bounces + ?", 1))
	if emailID != nil {
		hc.db.Model(&models.OutreachEmail{}).Where("id = ?", *emailID).
			Update("status", models.EmailBounced)
	}
}

// RecordDelivery feeds a successful send into the rolling window.
func (hc *HealthChecker) RecordDelivery(senderID uint) {
	hc.db.Model(&models.SenderHealth{}).Where("sender_id = ?", senderID).
		Update("recent_sent", gorm.Expr("recent_sent + ?", 1))
}

// DueFor reports whether the periodic pass should run, using the
// timestamp persisted in system_settings. Writes the new timestamp when
// it returns true.
func (hc *HealthChecker) DueFor(interval time.Duration) bool {
	var setting models.SystemSetting
	err := hc.db.Where("key = ?", models.SettingLastHealthCheck).First(&setting).Error
	if err == nil && setting.Value != "" {
		last, perr := time.Parse(time.RFC3339, setting.Value)
		if perr == nil && time.Since(last) < interval {
			return false
		}
	}

	setting.Key = models.SettingLastHealthCheck
	hc.db.Where("key = ?", models.SettingLastHealthCheck).FirstOrCreate(&setting)
	hc.db.Model(&setting).Update("value", time.Now().Format(time.RFC3339))
	return true
}
