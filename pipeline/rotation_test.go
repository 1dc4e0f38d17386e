package pipeline

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"linkreach/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sender(id uint, opts ...func(*models.Sender)) models.Sender {
	s := models.Sender{
		Model:      gorm.Model{ID: id},
		Enabled:    true,
		DailyLimit: 100,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func TestNextSequentialAdvancesPastCursor(t *testing.T) {
	pool := []models.Sender{sender(3), sender(1), sender(7)}

	assert.Equal(t, uint(3), nextSequential(pool, 1).ID)
	assert.Equal(t, uint(7), nextSequential(pool, 3).ID)
}

func TestNextSequentialWrapsAround(t *testing.T) {
	pool := []models.Sender{sender(1), sender(3), sender(7)}

	assert.Equal(t, uint(1), nextSequential(pool, 7).ID)
	assert.Equal(t, uint(1), nextSequential(pool, 99).ID)
}

func TestEligibleFilters(t *testing.T) {
	sel := NewSelector(nil, quietLogger(), time.Hour)

	disabled := sender(1, func(s *models.Sender) { s.Enabled = false })
	critical := sender(2, func(s *models.Sender) {
		s.Health = &models.SenderHealth{Status: models.HealthCritical}
	})
	suspended := sender(3, func(s *models.Sender) {
		s.Health = &models.SenderHealth{Status: models.HealthSuspended}
	})
	capped := sender(4, func(s *models.Sender) { s.SentToday = 100 })
	warning := sender(5, func(s *models.Sender) {
		s.Health = &models.SenderHealth{Status: models.HealthWarning}
	})
	healthy := sender(6)

	out := sel.eligible([]models.Sender{disabled, critical, suspended, capped, warning, healthy})
	require.Len(t, out, 2)
	assert.Equal(t, uint(5), out[0].ID)
	assert.Equal(t, uint(6), out[1].ID)
}

func TestEligibleIgnoresZeroDailyLimit(t *testing.T) {
	sel := NewSelector(nil, quietLogger(), time.Hour)

	unlimited := sender(1, func(s *models.Sender) {
		s.DailyLimit = 0
		s.SentToday = 5000
	})

	out := sel.eligible([]models.Sender{unlimited})
	assert.Len(t, out, 1)
}

func TestOutsideCooldown(t *testing.T) {
	sel := NewSelector(nil, quietLogger(), time.Hour)

	recent := time.Now().Add(-5 * time.Minute)
	old := time.Now().Add(-2 * time.Hour)

	hot := sender(1, func(s *models.Sender) { s.LastSentAt = &recent })
	cold := sender(2, func(s *models.Sender) { s.LastSentAt = &old })
	never := sender(3)

	out := sel.outsideCooldown([]models.Sender{hot, cold, never})
	require.Len(t, out, 2)
	assert.Equal(t, uint(2), out[0].ID)
	assert.Equal(t, uint(3), out[1].ID)
}

func TestSelectNoEligibleSenders(t *testing.T) {
	sel := NewSelector(nil, quietLogger(), time.Hour)

	_, err := sel.Select(nil, RotationBalanced)
	assert.ErrorIs(t, err, ErrNoSenderAvailable)

	disabled := sender(1, func(s *models.Sender) { s.Enabled = false })
	_, err = sel.Select([]models.Sender{disabled}, RotationRandom)
	assert.ErrorIs(t, err, ErrNoSenderAvailable)
}

func TestSelectBalancedPicksLeastUsed(t *testing.T) {
	sel := NewSelector(nil, quietLogger(), time.Hour)

	busy := sender(1, func(s *models.Sender) { s.SentToday = 40 })
	idle := sender(2, func(s *models.Sender) { s.SentToday = 3 })
	medium := sender(3, func(s *models.Sender) { s.SentToday = 20 })

	chosen, err := sel.Select([]models.Sender{busy, idle, medium}, RotationBalanced)
	require.NoError(t, err)
	assert.Equal(t, uint(2), chosen.ID)
}

func TestSelectBalancedPrefersOutsideCooldown(t *testing.T) {
	sel := NewSelector(nil, quietLogger(), time.Hour)

	recent := time.Now().Add(-time.Minute)
	idleButHot := sender(1, func(s *models.Sender) {
		s.SentToday = 0
		s.LastSentAt = &recent
	})
	busyButCold := sender(2, func(s *models.Sender) { s.SentToday = 50 })

	chosen, err := sel.Select([]models.Sender{idleButHot, busyButCold}, RotationBalanced)
	require.NoError(t, err)
	assert.Equal(t, uint(2), chosen.ID)
}

func TestSelectRandomReturnsEligible(t *testing.T) {
	sel := NewSelector(nil, quietLogger(), time.Hour)

	pool := []models.Sender{sender(1), sender(2), sender(3)}
	seen := map[uint]bool{}
	for i := 0; i < 50; i++ {
		chosen, err := sel.Select(pool, RotationRandom)
		require.NoError(t, err)
		seen[chosen.ID] = true
	}
	for id := range seen {
		assert.Contains(t, []uint{1, 2, 3}, id)
	}
}
