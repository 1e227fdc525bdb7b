package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/repository"
	"github.com/noah-isme/campus-noticeboard/internal/service"
	"github.com/noah-isme/campus-noticeboard/pkg/cache"
	"github.com/noah-isme/campus-noticeboard/pkg/config"
	"github.com/noah-isme/campus-noticeboard/pkg/database"
	"github.com/noah-isme/campus-noticeboard/pkg/export"
	"github.com/noah-isme/campus-noticeboard/pkg/logger"
	"github.com/noah-isme/campus-noticeboard/pkg/push"
	"github.com/noah-isme/campus-noticeboard/pkg/storage"
)

// @title Campus Notice Board API
// @version 1.0.0
// @description Staff publish notices with attachments; students browse, search and subscribe to web push.
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	files, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		return err
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()
	loc := cfg.Listing.Location()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "noticeboard:", logr)
	defer cacheRepo.Close() //nolint:errcheck

	sender := push.NewSender(push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:         cfg.Push.Subject,
		RequestTimeout:  cfg.Push.RequestTimeout,
	})
	if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
		logr.Warn("VAPID keys not configured, push deliveries will fail")
	}

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Listing.CacheTTL, logr, cfg.Listing.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	attachmentSvc := service.NewAttachmentService(noticeRepo, files,
		storage.NewDownloadSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL), logr,
		service.AttachmentConfig{
			MaxFileSize:  cfg.Attachments.MaxFileSizeBytes,
			MaxPerNotice: cfg.Attachments.MaxPerNotice,
			AllowedMIMEs: cfg.Attachments.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		})
	fanoutSvc := service.NewFanoutService(subscriptionRepo, sender, metrics, logr, service.FanoutConfig{
		TTL:           cfg.Push.TTL,
		PublicBaseURL: cfg.PublicBaseURL,
		APIPrefix:     cfg.APIPrefix,
	})
	noticeSvc := service.NewNoticeService(service.NoticeServiceDeps{
		Repo:        noticeRepo,
		Attachments: attachmentSvc,
		Notifier:    fanoutSvc,
		Cache:       cacheSvc,
		Audit:       auditRepo,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	browseSvc := service.NewBrowseService(noticeRepo, cacheSvc, logr, service.BrowseConfig{
		Location: loc,
		CacheTTL: cfg.Listing.CacheTTL,
	})

	app := &application{
		cfg:           cfg,
		logger:        logr,
		db:            db,
		cache:         cacheRepo,
		metrics:       metrics,
		auth:          authSvc,
		notices:       noticeSvc,
		browse:        browseSvc,
		attachments:   attachmentSvc,
		subscriptions: service.NewSubscriptionService(subscriptionRepo, metrics, logr),
		exporter:      service.NewExportService(noticeRepo, export.NewCSVExporter(), export.NewPDFExporter(), loc, logr),
		push:          sender,
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
