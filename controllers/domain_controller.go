package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/pipeline"
	"linkreach/utils"
)

type DomainController struct {
	db  *gorm.DB
	log *logrus.Logger
	sm  *pipeline.StateMachine
}

func NewDomainController(db *gorm.DB, log *logrus.Logger) *DomainController {
	return &DomainController{db: db, log: log, sm: pipeline.NewStateMachine(db, log)}
}

func (dc *DomainController) List(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("campaignID"))
	if campaignID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", nil)
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := dc.db.Model(&models.TargetDomain{}).Where("campaign_id = ?", campaignID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var domains []models.TargetDomain
	if err := query.Order("quality_score DESC, created_at ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&domains).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list domains", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  domains,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (dc *DomainController) Get(c *fiber.Ctx) error {
	domain, err := dc.find(c)
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(domain))
}

// Approve lets the operator override the review for a pending domain.
// The domain passes through analyzing so the usual transition path and
// campaign counters apply.
func (dc *DomainController) Approve(c *fiber.Ctx) error {
	return dc.review(c, pipeline.StatusApproved)
}

// Reject removes a pending domain from consideration.
func (dc *DomainController) Reject(c *fiber.Ctx) error {
	return dc.review(c, pipeline.StatusRejected)
}

func (dc *DomainController) review(c *fiber.Ctx, decision pipeline.DomainStatus) error {
	domain, err := dc.find(c)
	if err != nil {
		return err
	}

	if pipeline.DomainStatus(domain.Status) != pipeline.StatusPending {
		return utils.ErrorResponse(c, fiber.StatusConflict,
			"Only pending domains can be reviewed manually", nil)
	}

	if err := dc.sm.Transition(domain, pipeline.StatusPending, pipeline.StatusAnalyzing); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Domain is being processed, try again", err)
	}
	if err := dc.sm.Transition(domain, pipeline.StatusAnalyzing, decision); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to apply review", err)
	}

	dc.log.WithFields(logrus.Fields{
		"domain_id": domain.ID,
		"domain":    domain.Domain,
		"decision":  decision,
		"operator":  c.Locals("operator"),
	}).Info("manual domain review")

	return c.JSON(utils.SuccessResponse(domain))
}

func (dc *DomainController) find(c *fiber.Ctx) (*models.TargetDomain, error) {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return nil, utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid domain id", nil)
	}

	var domain models.TargetDomain
	if err := dc.db.First(&domain, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorResponse(c, fiber.StatusNotFound, "Domain not found", nil)
		}
		return nil, utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load domain", err)
	}
	return &domain, nil
}
