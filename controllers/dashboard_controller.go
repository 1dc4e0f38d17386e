package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/utils"
)

type DashboardController struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewDashboardController(db *gorm.DB, log *logrus.Logger) *DashboardController {
	return &DashboardController{db: db, log: log}
}

type statusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Stats aggregates the funnel across all campaigns: domains per status,
// queue depths, email outcomes and reply labels.
func (dc *DashboardController) Stats(c *fiber.Ctx) error {
	var campaigns, activeCampaigns int64
	dc.db.Model(&models.Campaign{}).Count(&campaigns)
	dc.db.Model(&models.Campaign{}).Where("status = ?", models.CampaignActive).Count(&activeCampaigns)

	var domainsByStatus []statusCount
	dc.db.Model(&models.TargetDomain{}).
		Select("status, count(*) as count").Group("status").
		Scan(&domainsByStatus)

	var emailsByStatus []statusCount
	dc.db.Model(&models.OutreachEmail{}).
		Select("status, count(*) as count").Group("status").
		Scan(&emailsByStatus)

	var repliesByLabel []statusCount
	dc.db.Model(&models.InboundReply{}).
		Select("classification as status, count(*) as count").
		Group("classification").Scan(&repliesByLabel)

	var pendingSearches, pendingSends int64
	dc.db.Model(&models.EmailSearchQueue{}).Where("status = ?", models.QueuePending).Count(&pendingSearches)
	dc.db.Model(&models.EmailQueue{}).Where("status = ?", models.QueuePending).Count(&pendingSends)

	var leadsForwarded int64
	dc.db.Model(&models.InboundReply{}).Where("forwarded_at IS NOT NULL").Count(&leadsForwarded)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"campaigns": fiber.Map{
			"total":  campaigns,
			"active": activeCampaigns,
		},
		"domains_by_status": domainsByStatus,
		"emails_by_status":  emailsByStatus,
		"replies_by_label":  repliesByLabel,
		"queues": fiber.Map{
			"pending_searches": pendingSearches,
			"pending_sends":    pendingSends,
		},
		"leads_forwarded": leadsForwarded,
	}))
}

// CampaignStats reports the funnel for one campaign.
func (dc *DashboardController) CampaignStats(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", nil)
	}

	var campaign models.Campaign
	if err := dc.db.First(&campaign, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var domainsByStatus []statusCount
	dc.db.Model(&models.TargetDomain{}).Where("campaign_id = ?", id).
		Select("status, count(*) as count").Group("status").
		Scan(&domainsByStatus)

	var sent, replied int64
	dc.db.Model(&models.OutreachEmail{}).Where("campaign_id = ? AND status IN ?",
		id, []string{models.EmailSent, models.EmailReplied}).Count(&sent)
	dc.db.Model(&models.InboundReply{}).Where("campaign_id = ?", id).Count(&replied)

	dc.log.WithFields(logrus.Fields{
		"campaign_id": id,
		"operator":    c.Locals("operator"),
	}).Debug("campaign stats requested")

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"campaign":          campaign,
		"domains_by_status": domainsByStatus,
		"emails_sent":       sent,
		"replies":           replied,
	}))
}
