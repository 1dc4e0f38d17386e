package controller

import (
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"linkreach/config"
	"linkreach/utils"
)

const tokenTTL = 12 * time.Hour

type AuthController struct {
	cfg *config.Config
	log *logrus.Logger
}

func NewAuthController(cfg *config.Config, log *logrus.Logger) *AuthController {
	return &AuthController{cfg: cfg, log: log}
}

type LoginRequest struct {
	APIKey   string `json:"api_key" validate:"required"`
	Operator string `json:"operator" validate:"required,min=2"`
}

// Login exchanges the configured API key for a bearer token.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(ac.cfg.APIKey)) != 1 {
		ac.log.WithFields(logrus.Fields{
			"operator": req.Operator,
			"ip":       c.IP(),
		}).Warn("login attempt with invalid api key")
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid API key", nil)
	}

	token, err := utils.GenerateOperatorToken(ac.cfg.JWTSecret, req.Operator, tokenTTL)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to issue token", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"access_token": token,
		"expires_in":   int(tokenTTL.Seconds()),
	}))
}
