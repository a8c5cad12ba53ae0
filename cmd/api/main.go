package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/fintera-lending/docs" // Swagger docs
	"github.com/sjperalta/fintera-lending/internal/amortization"
	"github.com/sjperalta/fintera-lending/internal/cache"
	"github.com/sjperalta/fintera-lending/internal/config"
	"github.com/sjperalta/fintera-lending/internal/database"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/handlers"
	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/internal/middleware"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/services"
	"github.com/sjperalta/fintera-lending/internal/storage"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// @title Fintera Lending API
// @version 1.0
// @description Loan amortization, payment schedules, reconciliation and income recognition

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Error("Migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Database schema migrated")
	}

	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	policy, err := services.NewDueDatePolicy(cfg.DueDatePolicy)
	if err != nil {
		logger.Error("Invalid due date policy", "error", err)
		os.Exit(1)
	}

	publisher := newPublisher(cfg)
	quoteCache := newQuoteCache(cfg)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(services.Deps{
		Repos:      repository.NewRepositories(db),
		Worker:     worker,
		Storage:    store,
		Publisher:  publisher,
		Policy:     policy,
		QuoteCache: quoteCache,
	})

	if err := svcs.Job.RegisterOverdueSweep(cfg.OverdueCron); err != nil {
		logger.Error("Failed to schedule overdue sweep", "spec", cfg.OverdueCron, "error", err)
		os.Exit(1)
	}

	router := setupRouter(handlers.NewHandlers(svcs), cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "due_date_policy", policy.Name())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Drains queued events before the publisher goes away
	worker.Shutdown()
	logger.Info("Background worker stopped")

	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close event publisher", "error", err)
	}

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

// newPublisher connects to RabbitMQ when configured and falls back to logging
// events otherwise
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP_URL not set, domain events are only logged")
		return events.NewLogPublisher()
	}
	conn, err := events.Dial(cfg.AMQPURL, 5)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ, domain events are only logged", "error", err)
		return events.NewLogPublisher()
	}
	publisher, err := events.NewRabbitMQPublisher(conn, cfg.AMQPExchange)
	if err != nil {
		_ = conn.Close()
		logger.Error("Failed to open RabbitMQ channel, domain events are only logged", "error", err)
		return events.NewLogPublisher()
	}
	logger.Info("Publishing domain events to RabbitMQ", "exchange", cfg.AMQPExchange)
	return publisher
}

// newQuoteCache shares quotes through Redis when configured, otherwise keeps
// them in process
func newQuoteCache(cfg *config.Config) cache.Cache[string, *amortization.Schedule] {
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info("Quote cache backed by Redis")
			return cache.NewRedisCache[string, *amortization.Schedule](client, "lending:quote:", cfg.QuoteCacheTTL)
		}
		logger.Error("Failed to connect to Redis, using in-process quote cache", "error", err)
	}
	return cache.NewTTLCache[string, *amortization.Schedule](cfg.QuoteCacheTTL, 1024, cache.SystemClock)
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	paymentLimiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health.Index)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Read access for every role
			protected.GET("/loans", h.Loan.Index)
			protected.GET("/loans/:loan_id", h.Loan.Show)
			protected.GET("/loans/:loan_id/audits", h.Loan.Audits)
			protected.GET("/loans/:loan_id/schedule", h.Schedule.Show)
			protected.GET("/loans/:loan_id/schedule.xlsx", h.Schedule.ExportXLSX)
			protected.GET("/loans/:loan_id/schedule.pdf", h.Schedule.ExportPDF)
			protected.GET("/schedules/:schedule_id/income", h.Payment.Income)
			protected.GET("/income", h.Income.Index)
			protected.GET("/income.xlsx", h.Income.ExportXLSX)
			protected.GET("/reports/archive", h.Report.Download)
			protected.POST("/amortization/quote", h.Quote.Create)

			officer := protected.Group("")
			officer.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOfficer))
			{
				officer.POST("/loans", h.Loan.Create)
				officer.PATCH("/loans/:loan_id", h.Loan.Update)
				officer.POST("/loans/:loan_id/disburse", h.Loan.Disburse)
				officer.POST("/loans/:loan_id/close", h.Loan.Close)
				officer.POST("/schedules/:schedule_id/payments", middleware.RateLimit(paymentLimiter), h.Payment.Create)
			}

			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.DELETE("/loans/:loan_id", h.Loan.Delete)
				admin.POST("/loans/:loan_id/approve", h.Loan.Approve)
				admin.POST("/loans/:loan_id/reject", h.Loan.Reject)
				admin.DELETE("/reports/archive", h.Report.Delete)
				admin.GET("/jobs/status", h.Job.Status)
				admin.POST("/jobs/overdue_sweep", h.Job.OverdueSweep)
			}
		}
	}

	return router
}
