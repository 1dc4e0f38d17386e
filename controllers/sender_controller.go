package controller

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/utils"
)

type SenderController struct {
	db  *gorm.DB
	log *logrus.Logger
	enc *utils.Encryptor
}

func NewSenderController(db *gorm.DB, log *logrus.Logger, enc *utils.Encryptor) *SenderController {
	return &SenderController{db: db, log: log, enc: enc}
}

type CreateSenderRequest struct {
	Name         string `json:"name" validate:"required"`
	FromEmail    string `json:"from_email" validate:"required,email"`
	FromName     string `json:"from_name" validate:"required"`
	ProviderType string `json:"provider_type" validate:"required,oneof=smtp gmail gmass"`

	SMTPHost     string `json:"smtp_host" validate:"required_if=ProviderType smtp"`
	SMTPPort     int    `json:"smtp_port" validate:"required_if=ProviderType smtp"`
	SMTPUsername string `json:"smtp_username" validate:"required_if=ProviderType smtp"`
	SMTPPassword string `json:"smtp_password" validate:"required_if=ProviderType smtp"`
	Encryption   string `json:"encryption" validate:"omitempty,oneof=SSL TLS STARTTLS NONE"`

	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
	IMAPMailbox  string `json:"imap_mailbox"`

	OAuthToken        string    `json:"oauth_token"`
	OAuthRefreshToken string    `json:"oauth_refresh_token"`
	OAuthExpiry       time.Time `json:"oauth_expiry"`

	DailyLimit int `json:"daily_limit" validate:"omitempty,min=1,max=2000"`
}

type UpdateSenderRequest struct {
	Name              *string `json:"name"`
	FromName          *string `json:"from_name"`
	Enabled           *bool   `json:"enabled"`
	SMTPPassword      *string `json:"smtp_password"`
	IMAPPassword      *string `json:"imap_password"`
	OAuthToken        *string `json:"oauth_token"`
	OAuthRefreshToken *string `json:"oauth_refresh_token"`
	DailyLimit        *int    `json:"daily_limit" validate:"omitempty,min=1,max=2000"`
}

type TestResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (sc *SenderController) Create(c *fiber.Ctx) error {
	var req CreateSenderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if ok, err := utils.ValidateMXRecords(req.FromEmail); err != nil || !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"From address domain has no MX records", err)
	}

	encryptedSMTPPassword, err := sc.enc.Encrypt(req.SMTPPassword)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt SMTP password", nil)
	}
	encryptedIMAPPassword, err := sc.enc.Encrypt(req.IMAPPassword)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt IMAP password", nil)
	}
	encryptedOAuthToken, err := sc.enc.Encrypt(req.OAuthToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt OAuth token", nil)
	}
	encryptedRefreshToken, err := sc.enc.Encrypt(req.OAuthRefreshToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt OAuth refresh token", nil)
	}

	sender := models.Sender{
		Name:              req.Name,
		FromEmail:         req.FromEmail,
		FromName:          req.FromName,
		ProviderType:      req.ProviderType,
		Enabled:           true,
		SMTPHost:          req.SMTPHost,
		SMTPPort:          req.SMTPPort,
		SMTPUsername:      req.SMTPUsername,
		SMTPPassword:      encryptedSMTPPassword,
		IMAPHost:          req.IMAPHost,
		IMAPPort:          req.IMAPPort,
		IMAPUsername:      req.IMAPUsername,
		IMAPPassword:      encryptedIMAPPassword,
		OAuthToken:        encryptedOAuthToken,
		OAuthRefreshToken: encryptedRefreshToken,
		OAuthExpiry:       req.OAuthExpiry,
	}
	if req.Encryption != "" {
		sender.Encryption = req.Encryption
	}
	if req.IMAPMailbox != "" {
		sender.IMAPMailbox = req.IMAPMailbox
	}
	if req.DailyLimit > 0 {
		sender.DailyLimit = req.DailyLimit
	}

	if err := sc.db.Create(&sender).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sender", err)
	}

	sc.log.WithFields(logrus.Fields{
		"sender_id": sender.ID,
		"email":     sender.FromEmail,
		"provider":  sender.ProviderType,
	}).Info("sender created")

	sender.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sender))
}

func (sc *SenderController) List(c *fiber.Ctx) error {
	var senders []models.Sender
	if err := sc.db.Preload("Health").Order("id ASC").Find(&senders).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list senders", err)
	}
	for i := range senders {
		senders[i].Sanitize()
	}
	return c.JSON(utils.SuccessResponse(senders))
}

func (sc *SenderController) Get(c *fiber.Ctx) error {
	sender, err := sc.find(c)
	if err != nil {
		return err
	}
	sender.Sanitize()
	return c.JSON(utils.SuccessResponse(sender))
}

func (sc *SenderController) Update(c *fiber.Ctx) error {
	sender, err := sc.find(c)
	if err != nil {
		return err
	}

	var req UpdateSenderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if req.Name != nil {
		sender.Name = *req.Name
	}
	if req.FromName != nil {
		sender.FromName = *req.FromName
	}
	if req.Enabled != nil {
		sender.Enabled = *req.Enabled
	}
	if req.DailyLimit != nil {
		sender.DailyLimit = *req.DailyLimit
	}
	if req.SMTPPassword != nil {
		if sender.SMTPPassword, err = sc.enc.Encrypt(*req.SMTPPassword); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt SMTP password", nil)
		}
	}
	if req.IMAPPassword != nil {
		if sender.IMAPPassword, err = sc.enc.Encrypt(*req.IMAPPassword); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt IMAP password", nil)
		}
	}
	if req.OAuthToken != nil {
		if sender.OAuthToken, err = sc.enc.Encrypt(*req.OAuthToken); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt OAuth token", nil)
		}
	}
	if req.OAuthRefreshToken != nil {
		if sender.OAuthRefreshToken, err = sc.enc.Encrypt(*req.OAuthRefreshToken); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt OAuth refresh token", nil)
		}
	}

	if err := sc.db.Save(sender).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sender", err)
	}
	sender.Sanitize()
	return c.JSON(utils.SuccessResponse(sender))
}

func (sc *SenderController) Delete(c *fiber.Ctx) error {
	sender, err := sc.find(c)
	if err != nil {
		return err
	}

	if err := sc.db.Delete(sender).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sender", err)
	}
	sc.log.WithField("sender_id", sender.ID).Info("sender deleted")
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// Test dials the sender's SMTP and IMAP endpoints with the stored
// credentials and records the outcome on the row.
func (sc *SenderController) Test(c *fiber.Ctx) error {
	sender, err := sc.find(c)
	if err != nil {
		return err
	}

	results := fiber.Map{}
	results["smtp"] = sc.testSMTP(sender)
	if sender.IMAPHost != "" {
		results["imap"] = sc.testIMAP(sender)
	}

	now := time.Now()
	updates := map[string]interface{}{"last_tested_at": now}
	for _, r := range results {
		if res, ok := r.(TestResult); ok && !res.Success {
			updates["last_error"] = res.Error
			break
		}
	}
	sc.db.Model(sender).Updates(updates)

	return c.JSON(utils.SuccessResponse(results))
}

func (sc *SenderController) testSMTP(sender *models.Sender) TestResult {
	if sender.ProviderType != models.ProviderSMTP {
		return TestResult{Success: true}
	}

	password, err := sc.enc.Decrypt(sender.SMTPPassword)
	if err != nil {
		return TestResult{Error: "failed to decrypt smtp password"}
	}

	d := gomail.NewDialer(sender.SMTPHost, sender.SMTPPort, sender.SMTPUsername, password)
	d.TLSConfig = &tls.Config{ServerName: sender.SMTPHost}

	closer, err := d.Dial()
	if err != nil {
		sc.log.WithFields(logrus.Fields{
			"sender_id": sender.ID,
			"host":      sender.SMTPHost,
		}).WithError(err).Warn("smtp connection test failed")
		sentry.CaptureMessage(fmt.Sprintf("smtp test failed for sender %d: %v", sender.ID, err))
		return TestResult{Error: err.Error()}
	}
	closer.Close()
	return TestResult{Success: true}
}

func (sc *SenderController) testIMAP(sender *models.Sender) TestResult {
	password, err := sc.enc.Decrypt(sender.IMAPPassword)
	if err != nil {
		return TestResult{Error: "failed to decrypt imap password"}
	}

	addr := fmt.Sprintf("%s:%d", sender.IMAPHost, sender.IMAPPort)
	imapClient, err := client.DialTLS(addr, nil)
	if err != nil {
		return TestResult{Error: err.Error()}
	}
	defer imapClient.Logout()

	if err := imapClient.Login(sender.IMAPUsername, password); err != nil {
		return TestResult{Error: "login failed: " + err.Error()}
	}
	return TestResult{Success: true}
}

// Health returns the reputation records for all senders.
func (sc *SenderController) Health(c *fiber.Ctx) error {
	var records []models.SenderHealth
	if err := sc.db.Order("sender_id ASC").Find(&records).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load sender health", err)
	}
	return c.JSON(utils.SuccessResponse(records))
}

func (sc *SenderController) find(c *fiber.Ctx) (*models.Sender, error) {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return nil, utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid sender id", nil)
	}

	var sender models.Sender
	if err := sc.db.Preload("Health").First(&sender, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorResponse(c, fiber.StatusNotFound, "Sender not found", nil)
		}
		return nil, utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load sender", err)
	}
	return &sender, nil
}
