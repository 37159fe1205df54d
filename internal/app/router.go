package app

import (
	"codequest_admin/docs"
	"codequest_admin/internal/middleware"
	"codequest_admin/internal/model"
	"codequest_admin/pkg/monitoring"
	"codequest_admin/pkg/security"
	"codequest_admin/pkg/tracing"
	"context"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// setupRouter builds the admin API. ctx bounds background work started by
// middlewares.
func (a *App) setupRouter(ctx context.Context) *gin.Engine {
	cfg := a.Config()
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	a.setupMiddlewares(ctx, router)

	c := a.initControllers(a.services)
	a.registerRoutes(router, c)
	return router
}

func (a *App) setupMiddlewares(ctx context.Context, router *gin.Engine) {
	cfg := a.Config()
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(ctx, cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
	router.Use(middleware.ConfigMiddleware(a.Config))
}

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	admin := router.Group("/api")
	admin.Use(middleware.AuthMiddleware(), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/missions/validation", c.missions.Validation)
		admin.GET("/missions/report", c.missions.Report)

		admin.GET("/users/:id/availability", c.users.Availability)
		admin.GET("/users/:id/score", c.users.Score)
		admin.POST("/users/:id/achievements", c.users.GrantAchievements)

		admin.GET("/leaderboard", c.leaderboard.Top)

		admin.POST("/reconcile", c.reconcile.Run)
		admin.GET("/consistency", c.reconcile.Check)
		admin.GET("/runs", c.reconcile.Runs)

		admin.GET("/migrations", c.migrations.List)
		admin.POST("/migrations/:name", c.migrations.Run)
	}
}
