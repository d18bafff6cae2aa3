package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/qapilot/backend/internal/automation"
	"github.com/qapilot/backend/internal/config"
	"github.com/qapilot/backend/internal/conversation"
	"github.com/qapilot/backend/internal/db"
	"github.com/qapilot/backend/internal/events"
	"github.com/qapilot/backend/internal/http/handlers"
	"github.com/qapilot/backend/internal/http/middleware"
	"github.com/qapilot/backend/internal/hub"
	"github.com/qapilot/backend/internal/jira"
	"github.com/qapilot/backend/internal/testgen"

	_ "github.com/qapilot/backend/docs"
)

func Router(cfg config.Config, registry *conversation.Registry, fetcher jira.Fetcher, svc *testgen.Service,
	store *db.Store, pool *automation.Pool, wsHub *hub.Hub, producer events.EventProducer, logger zerolog.Logger) *gin.Engine {

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Agent-Key", "X-Session-Id", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Session-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Conversations: registry,
		Jira:          fetcher,
		TestGen:       svc,
		Store:         store,
		Pool:          pool,
		Hub:           wsHub,
		Events:        producer,
		Validator:     validator.New(),
		Logger:        logger,
		ScreenshotDir: cfg.ScreenshotDir,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/models", h.ModelsList)
		api.POST("/conversations", h.ConversationCreate)
		api.GET("/conversations", h.ConversationsList)
		api.GET("/conversations/:id", h.ConversationGet)
		api.POST("/conversations/:id/messages", h.MessageCreate)
		api.POST("/conversations/:id/refine", h.Refine)
		api.POST("/export/:format", h.Export)
		api.POST("/tests", h.TestCreate)
		api.GET("/tests", h.TestsList)
		api.GET("/tests/:id", h.TestGet)
		api.GET("/agents/status", h.AgentsStatus)
	}

	agent := api.Group("")
	agent.Use(middleware.AgentKey(cfg.AgentKey))
	{
		agent.POST("/tests/:id/logs", h.TestLogs)
		agent.POST("/tests/:id/complete", h.TestComplete)
		agent.POST("/tests/:id/screenshot", h.TestScreenshot)
	}

	r.GET("/ws/dashboard", h.WSDashboard)
	r.GET("/ws/agent", h.WSAgent)
	r.GET("/screenshots/:name", h.ScreenshotServe)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
