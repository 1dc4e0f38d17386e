package controller

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/pipeline"
	"linkreach/utils"
)

type PipelineController struct {
	db   *gorm.DB
	log  *logrus.Logger
	orch *pipeline.Orchestrator
}

func NewPipelineController(db *gorm.DB, log *logrus.Logger, orch *pipeline.Orchestrator) *PipelineController {
	return &PipelineController{db: db, log: log, orch: orch}
}

// Trigger starts a pipeline cycle in the background. A cycle already in
// progress is reported, not queued behind.
func (pc *PipelineController) Trigger(c *fiber.Ctx) error {
	pc.log.WithField("operator", c.Locals("operator")).Info("pipeline cycle triggered via api")

	started := make(chan error, 1)
	go func() {
		err := pc.orch.RunCycle(context.Background())
		started <- err
		if err != nil && !errors.Is(err, pipeline.ErrLocked) {
			pc.log.WithError(err).Error("triggered pipeline cycle failed")
		}
	}()

	// wait briefly so a lock conflict surfaces in the response; a real
	// cycle keeps running in the background
	select {
	case err := <-started:
		if errors.Is(err, pipeline.ErrLocked) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "A pipeline cycle is already running", nil)
		}
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Pipeline cycle failed", err)
		}
		return c.JSON(utils.SuccessResponse(fiber.Map{"completed": true}))
	case <-time.After(500 * time.Millisecond):
		return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{"started": true}))
	}
}

// Status reports what the next cycle will find: queue depths and domains
// per transient state.
func (pc *PipelineController) Status(c *fiber.Ctx) error {
	var pendingSearches, pendingSends, failedSearches, failedSends int64
	pc.db.Model(&models.EmailSearchQueue{}).Where("status = ?", models.QueuePending).Count(&pendingSearches)
	pc.db.Model(&models.EmailQueue{}).Where("status = ?", models.QueuePending).Count(&pendingSends)
	pc.db.Model(&models.EmailSearchQueue{}).Where("status = ?", models.QueueFailed).Count(&failedSearches)
	pc.db.Model(&models.EmailQueue{}).Where("status = ?", models.QueueFailed).Count(&failedSends)

	transient := []string{
		string(pipeline.StatusAnalyzing),
		string(pipeline.StatusSearchingEmail),
		string(pipeline.StatusGeneratingEmail),
		string(pipeline.StatusSendingEmail),
		string(pipeline.StatusMonitoringReplies),
	}
	var inFlight []statusCount
	pc.db.Model(&models.TargetDomain{}).Where("status IN ?", transient).
		Select("status, count(*) as count").Group("status").
		Scan(&inFlight)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"queues": fiber.Map{
			"pending_searches": pendingSearches,
			"pending_sends":    pendingSends,
			"failed_searches":  failedSearches,
			"failed_sends":     failedSends,
		},
		"domains_in_flight": inFlight,
		"steps":             pc.orch.StepNames(),
	}))
}
