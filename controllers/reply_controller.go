package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/utils"
)

type ReplyController struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewReplyController(db *gorm.DB, log *logrus.Logger) *ReplyController {
	return &ReplyController{db: db, log: log}
}

func (rc *ReplyController) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := rc.db.Model(&models.InboundReply{})
	if campaignID := utils.ParseUint(c.Query("campaign_id")); campaignID > 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}
	if label := c.Query("classification"); label != "" {
		query = query.Where("classification = ?", label)
	}

	var total int64
	query.Count(&total)

	var replies []models.InboundReply
	if err := query.Order("date DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&replies).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list replies", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  replies,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

// Reclassify overrides the stored label for a reply. Interested replies
// relabeled away lose nothing: forwarding only looks at the label at
// forward time.
func (rc *ReplyController) Reclassify(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid reply id", nil)
	}

	var req struct {
		Classification string `json:"classification" validate:"required,oneof=interested not_interested neutral auto_reply bounce"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var reply models.InboundReply
	if err := rc.db.First(&reply, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Reply not found", nil)
	}

	if err := rc.db.Model(&reply).Updates(map[string]interface{}{
		"classification": req.Classification,
		"rationale":      "manual override",
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update reply", err)
	}

	rc.log.WithFields(logrus.Fields{
		"reply_id": reply.ID,
		"label":    req.Classification,
		"operator": c.Locals("operator"),
	}).Info("reply reclassified")

	return c.JSON(utils.SuccessResponse(reply))
}
