package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/craftlearn/academy-billing-api/api/swagger"
	gw "github.com/craftlearn/academy-billing-api/internal/gateway"
	"github.com/craftlearn/academy-billing-api/internal/handler"
	"github.com/craftlearn/academy-billing-api/internal/middleware"
	"github.com/craftlearn/academy-billing-api/internal/models"
	"github.com/craftlearn/academy-billing-api/internal/repository"
	"github.com/craftlearn/academy-billing-api/internal/service"
	"github.com/craftlearn/academy-billing-api/pkg/cache"
	"github.com/craftlearn/academy-billing-api/pkg/config"
	"github.com/craftlearn/academy-billing-api/pkg/database"
	"github.com/craftlearn/academy-billing-api/pkg/logger"
	corsmiddleware "github.com/craftlearn/academy-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/craftlearn/academy-billing-api/pkg/middleware/requestid"
	"github.com/craftlearn/academy-billing-api/pkg/storage"
)

// @title Academy Billing API
// @version 1.0.0
// @description Tuition billing, installment scheduling, and payment verification
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	catalog, err := service.NewPlanCatalog()
	if err != nil {
		logr.Sugar().Fatalw("invalid plan catalog", "error", err)
	}

	receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare receipt storage", "error", err)
	}
	receiptSigner := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	dueRepo := repository.NewPaymentDueRepository(db)
	callbackRepo := repository.NewCallbackRepository(db)
	verifyStore := repository.NewVerificationStore(redisClient, cfg.Billing.VerifyDebounceTTL, logr)

	// Services.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "academy-billing-api",
	})
	schedulerSvc := service.NewScheduleService(catalog)
	ledgerSvc := service.NewLedgerService(dueRepo, cfg.Billing.PaymentWindowDays, metricsSvc, logr)
	batchSvc := service.NewBatchService(enrollmentRepo, cfg.Billing.BatchCapacity, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, catalog, schedulerSvc, ledgerSvc, logr)

	var verifier gw.Verifier
	if cfg.Gateway.Enabled {
		verifier = gw.NewPaystackClient(cfg.Gateway, logr)
	}
	verificationSvc := service.NewVerificationService(
		enrollmentRepo, paymentRepo, callbackRepo, verifyStore,
		batchSvc, ledgerSvc, catalog, verifier, metricsSvc, logr,
	)
	receiptSvc := service.NewReceiptService(paymentRepo, enrollmentRepo, catalog, receiptStore, receiptSigner, logr)

	reminderSvc := service.NewReminderService(dueRepo, metricsSvc, logr, service.ReminderConfig{
		Interval:   cfg.Reminder.Interval,
		WindowDays: cfg.Reminder.LeadDays,
		Workers:    cfg.Reminder.WorkerConcurrency,
		Retries:    cfg.Reminder.WorkerRetries,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	planHandler := handler.NewPlanHandler(catalog, schedulerSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	dueHandler := handler.NewPaymentDueHandler(enrollmentSvc, ledgerSvc)
	paymentHandler := handler.NewPaymentHandler(verificationSvc, enrollmentSvc, paymentRepo)
	batchHandler := handler.NewBatchHandler(batchSvc)
	receiptHandler := handler.NewReceiptHandler(receiptSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		}

		plans := api.Group("/plans")
		{
			plans.GET("", planHandler.List)
			plans.GET("/:id", planHandler.Get)
			plans.GET("/:id/schedule", planHandler.PreviewSchedule)
		}

		protected := api.Group("", middleware.JWT(authSvc))
		{
			protected.POST("/enrollments", enrollmentHandler.Register)
			protected.GET("/enrollments", middleware.RequireRoles(models.RoleAdmin), enrollmentHandler.List)
			protected.GET("/enrollments/me", enrollmentHandler.Me)
			protected.PUT("/enrollments/me/plan", enrollmentHandler.SelectPlan)

			protected.GET("/payment-dues", dueHandler.List)
			protected.GET("/payment-dues/statement", dueHandler.Statement)

			protected.GET("/payments", paymentHandler.History)
			protected.GET("/payments/verify", paymentHandler.Verify)
			protected.POST("/payments/:id/receipt", receiptHandler.Issue)

			protected.GET("/batches/current", batchHandler.Current)
		}

		// Signed token is the credential; no JWT required.
		api.GET("/receipts/:token", receiptHandler.Download)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reminder.Enabled {
		reminderSvc.Start(ctx)
		defer reminderSvc.Stop()
	}

	go func() {
		ticker := time.NewTicker(cfg.Receipts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				receiptSvc.Cleanup(cfg.Receipts.SignedURLTTL)
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
