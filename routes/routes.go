package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/config"
	controller "linkreach/controllers"
	"linkreach/middleware"
	"linkreach/pipeline"
	"linkreach/utils"
)

// Deps carries everything the route handlers need.
type Deps struct {
	DB        *gorm.DB
	Cfg       *config.Config
	Log       *logrus.Logger
	Enc       *utils.Encryptor
	Redis     *redis.Client
	Orch      *pipeline.Orchestrator
	RateLimit int
}

// Setup registers every route on the app.
func Setup(app *fiber.App, d Deps) {
	authController := controller.NewAuthController(d.Cfg, d.Log)
	campaignController := controller.NewCampaignController(d.DB, d.Log)
	domainController := controller.NewDomainController(d.DB, d.Log)
	senderController := controller.NewSenderController(d.DB, d.Log, d.Enc)
	templateController := controller.NewTemplateController(d.DB, d.Log)
	replyController := controller.NewReplyController(d.DB, d.Log)
	dashboardController := controller.NewDashboardController(d.DB, d.Log)
	trackingController := controller.NewTrackingController(d.DB, d.Log)
	pipelineController := controller.NewPipelineController(d.DB, d.Log, d.Orch)

	requestLog := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	// Public: token exchange and tracking callbacks
	auth := app.Group("/auth", requestLog, middleware.APIRateLimiter(d.Redis, d.RateLimit))
	auth.Post("/token", authController.Login)

	track := app.Group("/track", requestLog)
	track.Get("/open/:messageID/:token", trackingController.Open)
	track.Get("/click/:messageID/:token", trackingController.Click)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Protected API
	api := app.Group("/api/v1", middleware.Protected(d.Cfg.JWTSecret), requestLog)

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", campaignController.Create)
	campaigns.Get("/", campaignController.List)
	campaigns.Get("/:id", campaignController.Get)
	campaigns.Put("/:id", campaignController.Update)
	campaigns.Delete("/:id", campaignController.Delete)
	campaigns.Post("/:id/start", campaignController.Start)
	campaigns.Post("/:id/pause", campaignController.Pause)
	campaigns.Get("/:id/stats", dashboardController.CampaignStats)
	campaigns.Get("/:campaignID/domains", domainController.List)

	domains := api.Group("/domains")
	domains.Get("/:id", domainController.Get)
	domains.Post("/:id/approve", domainController.Approve)
	domains.Post("/:id/reject", domainController.Reject)

	senders := api.Group("/senders")
	senders.Post("/", senderController.Create)
	senders.Get("/", senderController.List)
	senders.Get("/health", senderController.Health)
	senders.Get("/:id", senderController.Get)
	senders.Put("/:id", senderController.Update)
	senders.Delete("/:id", senderController.Delete)
	senders.Post("/:id/test", middleware.APIRateLimiter(d.Redis, 5), senderController.Test)

	templates := api.Group("/templates")
	templates.Post("/", templateController.Create)
	templates.Get("/", templateController.List)
	templates.Put("/:id", templateController.Update)
	templates.Delete("/:id", templateController.Delete)

	replies := api.Group("/replies")
	replies.Get("/", replyController.List)
	replies.Post("/:id/reclassify", replyController.Reclassify)

	api.Get("/dashboard/stats", dashboardController.Stats)

	pipelineGroup := api.Group("/pipeline")
	pipelineGroup.Post("/run", pipelineController.Trigger)
	pipelineGroup.Get("/status", pipelineController.Status)

	d.Log.Info("routes initialized")
}
