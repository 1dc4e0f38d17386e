package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/utils"
)

// 1x1 transparent GIF served for open tracking.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type TrackingController struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewTrackingController(db *gorm.DB, log *logrus.Logger) *TrackingController {
	return &TrackingController{db: db, log: log}
}

// Open records an email open and serves the pixel. The pixel is served
// even when the token is bad so broken links don't render in clients.
func (tc *TrackingController) Open(c *fiber.Ctx) error {
	trackingID := c.Params("messageID")
	token := c.Params("token")

	if utils.VerifyTrackingToken(trackingID, token) {
		tc.recordOpen(trackingID)
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store")
	return c.Send(trackingPixel)
}

// Click records a link click and redirects to the original URL.
func (tc *TrackingController) Click(c *fiber.Ctx) error {
	trackingID := c.Params("messageID")
	token := c.Params("token")
	target := c.Query("url")

	if target == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing target url", nil)
	}
	if !utils.VerifyTrackingToken(trackingID, token) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Invalid tracking token", nil)
	}

	now := time.Now()
	res := tc.db.Model(&models.OutreachEmail{}).
		Where("tracking_id = ?", trackingID).
		Updates(map[string]interface{}{
			"clicked_at":  now,
			"click_count": gorm.Expr("click_count + ?", 1),
		})
	if res.Error != nil {
		tc.log.WithError(res.Error).Warn("failed to record click")
	}

	return c.Redirect(target, fiber.StatusFound)
}

func (tc *TrackingController) recordOpen(trackingID string) {
	now := time.Now()
	res := tc.db.Model(&models.OutreachEmail{}).
		Where("tracking_id = ?", trackingID).
		Updates(map[string]interface{}{
			"opened_at":  now,
			"open_count": gorm.Expr("open_count + ?", 1),
		})
	if res.Error != nil {
		tc.log.WithError(res.Error).Warn("failed to record open")
		return
	}
	if res.RowsAffected > 0 {
		tc.log.WithField("tracking_id", trackingID).Debug("email open recorded")
	}
}
