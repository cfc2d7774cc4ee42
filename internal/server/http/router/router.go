package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/server/http/handlers"
	"github.com/polkiloo/vendbot/internal/server/http/middleware"
)

// Params lists the router dependencies. Health is optional.
type Params struct {
	fx.In

	Facade handlers.OperatorFacade
	Queue  handlers.UpdateQueue
	Health handlers.HealthChecker `optional:"true"`
	Config *config.Config
	Logger *slog.Logger
}

// Setup configures gin router with handlers and middleware.
func Setup(p Params) *gin.Engine {
	facade, logger := p.Facade, p.Logger

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithDecompressFn(gzip.DefaultDecompressHandle)))

	webhookHandler := handlers.NewWebhookHandler(p.Queue, p.Config.WebhookSecret, logger)
	healthHandler := handlers.NewHealthHandler(p.Health, logger)
	authHandler := handlers.NewAuthHandler(facade)
	orderHandler := handlers.NewOrderHandler(facade, logger)
	itemHandler := handlers.NewItemHandler(facade)

	engine.GET("/healthz", healthHandler.Health)
	engine.POST("/telegram/webhook/:secret", webhookHandler.Receive)

	operator := engine.Group("/api/operator")
	operator.POST("/login", authHandler.Login)

	authed := operator.Group("")
	authed.Use(middleware.AuthRequired(facade))
	authed.GET("/orders/pending", orderHandler.Pending)
	authed.GET("/orders/:id", orderHandler.Get)
	authed.POST("/orders/:id/approve", orderHandler.Approve)
	authed.POST("/orders/:id/reject", orderHandler.Reject)
	authed.POST("/orders/:id/assign", orderHandler.Assign)
	authed.GET("/items", itemHandler.List)
	authed.POST("/items", itemHandler.Add)
	authed.DELETE("/items/:id", itemHandler.Delete)
	authed.GET("/stats", itemHandler.Stats)

	return engine
}
