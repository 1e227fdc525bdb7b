package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-noticeboard/api/swagger"
	"github.com/noah-isme/campus-noticeboard/internal/handler"
	"github.com/noah-isme/campus-noticeboard/internal/middleware"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	"github.com/noah-isme/campus-noticeboard/internal/repository"
	"github.com/noah-isme/campus-noticeboard/internal/service"
	"github.com/noah-isme/campus-noticeboard/pkg/config"
	"github.com/noah-isme/campus-noticeboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-noticeboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-noticeboard/pkg/middleware/requestid"
	"github.com/noah-isme/campus-noticeboard/pkg/push"
)

type application struct {
	cfg           *config.Config
	logger        *zap.Logger
	db            *sqlx.DB
	cache         *repository.CacheRepository
	metrics       *service.MetricsService
	auth          *service.AuthService
	notices       *service.NoticeService
	browse        *service.BrowseService
	attachments   *service.AttachmentService
	subscriptions *service.SubscriptionService
	exporter      *service.ExportService
	push          *push.Sender
}

func (a *application) router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.HealthCheck{"database": a.db.PingContext}
	if a.cfg.Redis.Enabled {
		checks["redis"] = a.cache.Ping
	}
	ops := handler.NewMetricsHandler(a.metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	cookieName := a.cfg.JWT.CookieName
	authHandler := handler.NewAuthHandler(a.auth, handler.CookieConfig{Name: cookieName, Secure: a.cfg.Env == config.EnvProduction})
	subscriptionHandler := handler.NewSubscriptionHandler(a.subscriptions, a.push)
	noticeHandler := handler.NewNoticeHandler(a.notices, a.browse, a.attachments, a.cfg.APIPrefix)
	fileHandler := handler.NewFileHandler(a.attachments, a.exporter)

	requireAuth := middleware.JWT(a.auth, cookieName)
	staffOnly := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)

	api := r.Group(a.cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	api.POST("/subscribe", middleware.OptionalJWT(a.auth, cookieName), subscriptionHandler.Subscribe)
	api.GET("/push/vapid-key", subscriptionHandler.VAPIDKey)

	api.GET("/notices", noticeHandler.List)
	api.GET("/notices/archive", noticeHandler.Archive)
	api.GET("/notices/archive/export", fileHandler.Export)
	api.GET("/notices/mine", requireAuth, noticeHandler.Mine)
	api.GET("/notices/:id", noticeHandler.Detail)
	api.POST("/notices", requireAuth, staffOnly, noticeHandler.Create)
	api.POST("/notices/:id/edit", requireAuth, staffOnly, noticeHandler.Update)
	api.POST("/notices/:id/delete", requireAuth, staffOnly, noticeHandler.Delete)

	api.GET("/attachments/:id/download", fileHandler.Download)

	return r
}
