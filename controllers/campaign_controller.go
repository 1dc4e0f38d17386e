package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/utils"
)

type CampaignController struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewCampaignController(db *gorm.DB, log *logrus.Logger) *CampaignController {
	return &CampaignController{db: db, log: log}
}

type CreateCampaignRequest struct {
	Name           string   `json:"name" validate:"required,min=2,max=120"`
	OwnerEmail     string   `json:"owner_email" validate:"required,email"`
	OwnerName      string   `json:"owner_name" validate:"required"`
	CompetitorURLs []string `json:"competitor_urls" validate:"required,min=1,max=10,dive,url"`
	AutomationMode string   `json:"automation_mode" validate:"required,oneof=manual template ai"`
	TemplateID     *uint    `json:"template_id"`
	EmailSubject   string   `json:"email_subject"`
	EmailBody      string   `json:"email_body"`
}

type UpdateCampaignRequest struct {
	Name           *string   `json:"name" validate:"omitempty,min=2,max=120"`
	OwnerEmail     *string   `json:"owner_email" validate:"omitempty,email"`
	OwnerName      *string   `json:"owner_name"`
	CompetitorURLs *[]string `json:"competitor_urls" validate:"omitempty,min=1,max=10,dive,url"`
	TemplateID     *uint     `json:"template_id"`
	EmailSubject   *string   `json:"email_subject"`
	EmailBody      *string   `json:"email_body"`
}

func (cc *CampaignController) Create(c *fiber.Ctx) error {
	var req CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if req.AutomationMode != models.AutomationAI && req.TemplateID == nil &&
		(req.EmailSubject == "" || req.EmailBody == "") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Non-AI campaigns need a template or an email subject and body", nil)
	}

	campaign := models.Campaign{
		Name:           req.Name,
		OwnerEmail:     req.OwnerEmail,
		OwnerName:      req.OwnerName,
		CompetitorURLs: req.CompetitorURLs,
		AutomationMode: req.AutomationMode,
		Status:         models.CampaignPaused,
		TemplateID:     req.TemplateID,
		EmailSubject:   req.EmailSubject,
		EmailBody:      req.EmailBody,
	}
	if err := cc.db.Create(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}

	cc.log.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"name":        campaign.Name,
		"mode":        campaign.AutomationMode,
	}).Info("campaign created")

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := cc.db.Model(&models.Campaign{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var campaigns []models.Campaign
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list campaigns", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  campaigns,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (cc *CampaignController) Get(c *fiber.Ctx) error {
	campaign, err := cc.find(c)
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) Update(c *fiber.Ctx) error {
	campaign, err := cc.find(c)
	if err != nil {
		return err
	}

	var req UpdateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.OwnerEmail != nil {
		campaign.OwnerEmail = *req.OwnerEmail
	}
	if req.OwnerName != nil {
		campaign.OwnerName = *req.OwnerName
	}
	if req.CompetitorURLs != nil {
		campaign.CompetitorURLs = *req.CompetitorURLs
		// new targets mean the backlink profile must be pulled again
		campaign.DomainsPulledAt = nil
	}
	if req.TemplateID != nil {
		campaign.TemplateID = req.TemplateID
	}
	if req.EmailSubject != nil {
		campaign.EmailSubject = *req.EmailSubject
	}
	if req.EmailBody != nil {
		campaign.EmailBody = *req.EmailBody
	}

	if err := cc.db.Save(campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", err)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) Delete(c *fiber.Ctx) error {
	campaign, err := cc.find(c)
	if err != nil {
		return err
	}

	if err := cc.db.Delete(campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", err)
	}
	cc.log.WithField("campaign_id", campaign.ID).Info("campaign deleted")
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// Start activates a campaign so the next pipeline cycle picks it up.
func (cc *CampaignController) Start(c *fiber.Ctx) error {
	return cc.setStatus(c, models.CampaignActive)
}

// Pause stops further pipeline work; in-flight queue items finish.
func (cc *CampaignController) Pause(c *fiber.Ctx) error {
	return cc.setStatus(c, models.CampaignPaused)
}

func (cc *CampaignController) setStatus(c *fiber.Ctx, status string) error {
	campaign, err := cc.find(c)
	if err != nil {
		return err
	}
	if campaign.Status == status {
		return c.JSON(utils.SuccessResponse(campaign))
	}

	campaign.Status = status
	if err := cc.db.Model(campaign).Update("status", status).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign status", err)
	}

	cc.log.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"status":      status,
	}).Info("campaign status changed")
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) find(c *fiber.Ctx) (*models.Campaign, error) {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return nil, utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", nil)
	}

	var campaign models.Campaign
	if err := cc.db.First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return nil, utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load campaign", err)
	}
	return &campaign, nil
}
