package pipeline

import (
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
)

// Rotation modes
const (
	RotationSequential = "sequential"
	RotationRandom     = "random"
	RotationBalanced   = "balanced"
)

var ErrNoSenderAvailable = errors.New("no sender with available capacity")

// Selector picks the outbound address for each send. The sequential
// cursor is persisted in system_settings so rotation order survives
// across cron runs.
type Selector struct {
	db       *gorm.DB
	log      *logrus.Logger
	cooldown time.Duration
	rng      *rand.Rand
}

func NewSelector(db *gorm.DB, log *logrus.Logger, cooldown time.Duration) *Selector {
	return &Selector{
		db:       db,
		log:      log,
		cooldown: cooldown,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select chooses a sender from candidates according to mode. Disabled,
// suspended/critical and capped senders never come back; senders inside
// the cooldown window are deprioritized by sequential and balanced modes
// unless nothing else is enabled.
func (s *Selector) Select(candidates []models.Sender, mode string) (*models.Sender, error) {
	eligible := s.eligible(candidates)
	if len(eligible) == 0 {
		return nil, ErrNoSenderAvailable
	}

	pool := eligible
	if mode != RotationRandom {
		if fresh := s.outsideCooldown(eligible); len(fresh) > 0 {
			pool = fresh
		}
	}

	switch mode {
	case RotationRandom:
		return &pool[s.rng.Intn(len(pool))], nil
	case RotationBalanced:
		best := &pool[0]
		for i := range pool {
			if pool[i].SentToday < best.SentToday {
				best = &pool[i]
			}
		}
		return best, nil
	default: // sequential
		return s.selectSequential(pool), nil
	}
}

// selectSequential resumes after the sender recorded in the cursor
// setting and persists the new position.
func (s *Selector) selectSequential(pool []models.Sender) *models.Sender {
	chosen := nextSequential(pool, s.loadCursor())
	s.saveCursor(chosen.ID)
	return chosen
}

// nextSequential walks the pool in stable id order and picks the first
// sender past the cursor, wrapping to the lowest id at the end.
func nextSequential(pool []models.Sender, cursor uint) *models.Sender {
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })

	chosen := &pool[0]
	for i := range pool {
		if pool[i].ID > cursor {
			chosen = &pool[i]
			break
		}
	}
	return chosen
}

func (s *Selector) eligible(candidates []models.Sender) []models.Sender {
	var out []models.Sender
	for _, c := range candidates {
		if !c.Enabled {
			continue
		}
		if c.Health != nil &&
			(c.Health.Status == models.HealthCritical || c.Health.Status == models.HealthSuspended) {
			continue
		}
		if c.DailyLimit > 0 && c.SentToday >= c.DailyLimit {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Selector) outsideCooldown(candidates []models.Sender) []models.Sender {
	var out []models.Sender
	for _, c := range candidates {
		if c.LastSentAt == nil || time.Since(*c.LastSentAt) >= s.cooldown {
			out = append(out, c)
		}
	}
	return out
}

// RecordSend bumps usage counters after a successful provider call.
func (s *Selector) RecordSend(senderID uint) error {
	return s.db.Model(&models.Sender{}).
		Where("id = ?", senderID).
		Updates(map[string]interface{}{
			"sent_today":   gorm.Expr("sent_today + ?", 1),
			"total_sent":   gorm.Expr("total_sent + ?", 1),
			"last_sent_at": time.Now(),
		}).Error
}

// ResetDailyCounters zeroes sent_today for senders whose last send was
// before the current day. Called once per cycle from the cleanup step.
func (s *Selector) ResetDailyCounters() {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	res := s.db.Model(&models.Sender{}).
		Where("sent_today > 0 AND (last_sent_at IS NULL OR last_sent_at < ?)", startOfDay).
		Update("sent_today", 0)
	if res.Error != nil {
		s.log.WithError(res.Error).Warn("failed to reset sender daily counters")
	} else if res.RowsAffected > 0 {
		s.log.WithField("count", res.RowsAffected).Info("reset sender daily counters")
	}
}

func (s *Selector) loadCursor() uint {
	var setting models.SystemSetting
	if err := s.db.Where("key = ?", models.SettingRotationCursor).First(&setting).Error; err != nil {
		return 0
	}
	v, err := strconv.ParseUint(setting.Value, 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

func (s *Selector) saveCursor(id uint) {
	setting := models.SystemSetting{Key: models.SettingRotationCursor}
	s.db.Where("key = ?", models.SettingRotationCursor).FirstOrCreate(&setting)
	if err := s.db.Model(&setting).Update("value", strconv.FormatUint(uint64(id), 10)).Error; err != nil {
		s.log.WithError(err).Warn("failed to persist rotation cursor")
	}
}
