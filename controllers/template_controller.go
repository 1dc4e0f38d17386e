package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
	"linkreach/utils"
)

type TemplateController struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewTemplateController(db *gorm.DB, log *logrus.Logger) *TemplateController {
	return &TemplateController{db: db, log: log}
}

type TemplateRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

func (tc *TemplateController) Create(c *fiber.Ctx) error {
	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	tpl := models.Template{Name: req.Name, Subject: req.Subject, Body: req.Body}
	if err := tc.db.Create(&tpl).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create template", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(tpl))
}

func (tc *TemplateController) List(c *fiber.Ctx) error {
	var templates []models.Template
	if err := tc.db.Order("name ASC").Find(&templates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list templates", err)
	}
	return c.JSON(utils.SuccessResponse(templates))
}

func (tc *TemplateController) Update(c *fiber.Ctx) error {
	tpl, err := tc.find(c)
	if err != nil {
		return err
	}

	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	tpl.Name, tpl.Subject, tpl.Body = req.Name, req.Subject, req.Body
	if err := tc.db.Save(tpl).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update template", err)
	}
	return c.JSON(utils.SuccessResponse(tpl))
}

func (tc *TemplateController) Delete(c *fiber.Ctx) error {
	tpl, err := tc.find(c)
	if err != nil {
		return err
	}

	var inUse int64
	tc.db.Model(&models.Campaign{}).Where("template_id = ?", tpl.ID).Count(&inUse)
	if inUse > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Template is used by campaigns", nil)
	}

	if err := tc.db.Delete(tpl).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete template", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

func (tc *TemplateController) find(c *fiber.Ctx) (*models.Template, error) {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return nil, utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid template id", nil)
	}

	var tpl models.Template
	if err := tc.db.First(&tpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorResponse(c, fiber.StatusNotFound, "Template not found", nil)
		}
		return nil, utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load template", err)
	}
	return &tpl, nil
}
