package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	accrualapp "github.com/fuelerp/backend/internal/application/accrual"
	creditapp "github.com/fuelerp/backend/internal/application/credit"
	lendingapp "github.com/fuelerp/backend/internal/application/lending"
	paymentapp "github.com/fuelerp/backend/internal/application/payment"
	settlementapp "github.com/fuelerp/backend/internal/application/settlement"
	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/fuelerp/backend/internal/infrastructure/bank"
	"github.com/fuelerp/backend/internal/infrastructure/cache"
	"github.com/fuelerp/backend/internal/infrastructure/config"
	"github.com/fuelerp/backend/internal/infrastructure/event"
	"github.com/fuelerp/backend/internal/infrastructure/logger"
	"github.com/fuelerp/backend/internal/infrastructure/persistence"
	"github.com/fuelerp/backend/internal/infrastructure/pricing"
	"github.com/fuelerp/backend/internal/infrastructure/scheduler"
	"github.com/fuelerp/backend/internal/interfaces/http/handler"
	"github.com/fuelerp/backend/internal/interfaces/http/middleware"
	"github.com/fuelerp/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting settlement engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	db, err := persistence.NewDatabaseWithLogger(
		&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	if err := persistence.AutoMigrate(db.DB); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis backs the disbursement ledger
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		_ = redisClient.Close()
	}()

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)

	// Repositories
	accrualRepo := persistence.NewGormMarginAccrualRepository(db.DB)
	settlementRepo := persistence.NewGormSettlementRepository(db.DB)
	loanRepo := persistence.NewGormLoanRepository(db.DB)
	batchRepo := persistence.NewGormPaymentBatchRepository(db.DB)
	ruleRepo := persistence.NewGormPaymentRuleRepository(db.DB)
	instructionRepo := persistence.NewGormPaymentInstructionRepository(db.DB)
	stationDirectory := persistence.NewGormStationDirectory(db.DB)
	tenantSource := persistence.NewGormTenantSource(db.DB)

	// External adapters
	pricingClient := pricing.NewHTTPClient(&cfg.Pricing, log)
	bankRail := bank.NewRail(&cfg.BankRail, log)

	// Velocity limits fall back to process-local counters when redis is
	// unreachable at startup
	var ledger payment.DisbursementLedger = cache.NewRedisDisbursementLedger(redisClient)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unreachable, using in-memory disbursement ledger", zap.Error(err))
		ledger = cache.NewInMemoryDisbursementLedger()
	}
	cancelPing()

	// Application services
	accrualService := accrualapp.NewMarginAccrualService(accrualRepo, pricingClient, eventBus, log)
	loanService := lendingapp.NewLoanService(loanRepo, eventBus, log, lendingapp.DefaultLoanServiceConfig())
	settlementService := settlementapp.NewSettlementService(
		settlementRepo, accrualRepo, loanRepo, pricingClient, eventBus, log)
	statementService := settlementapp.NewStatementService(settlementRepo, accrualRepo, loanRepo, log)
	paymentService := paymentapp.NewPaymentAutomationService(
		batchRepo, ruleRepo, instructionRepo, settlementRepo,
		settlementService, stationDirectory, ledger, bankRail,
		eventBus, log,
		paymentapp.AutomationConfig{
			MinDaysFromApproval: cfg.Payment.MinDaysFromApproval,
			MaxBatchSize:        cfg.Payment.MaxBatchSize,
			Currency:            cfg.Payment.Currency,
		},
	)
	creditService := creditapp.NewCreditService(accrualRepo, settlementRepo, loanRepo, log)

	// Background scheduler
	var cronScheduler *scheduler.SettlementCronScheduler
	if cfg.Scheduler.Enabled {
		cronScheduler = scheduler.NewSettlementCronScheduler(
			scheduler.SettlementCronSchedulerConfig{
				Enabled:            true,
				PenaltyHour:        cfg.Scheduler.PenaltyHour,
				SettlementHour:     cfg.Scheduler.SettlementHour,
				SweepIntervalHours: cfg.Scheduler.SweepIntervalHours,
				JobTimeout:         cfg.Scheduler.JobTimeout,
			},
			loanService,
			settlementService,
			paymentService,
			tenantSource,
			pricingClient,
			log,
		)
		if err := cronScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		log.Info("Settlement scheduler started",
			zap.Int("penalty_hour", cfg.Scheduler.PenaltyHour),
			zap.Int("settlement_hour", cfg.Scheduler.SettlementHour),
			zap.Int("sweep_interval_hours", cfg.Scheduler.SweepIntervalHours),
		)
	}

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}
	engine.Use(
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		}),
	)

	// Handlers and routes
	systemHandler := handler.NewSystemHandler(db.DB, cronScheduler)
	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithHealth(systemHandler),
	)
	r.Register(
		handler.NewAccrualHandler(accrualService),
		handler.NewLoanHandler(loanService),
		handler.NewSettlementHandler(settlementService, statementService),
		handler.NewPaymentHandler(paymentService, ruleRepo),
		handler.NewCreditHandler(creditService),
	)
	r.RegisterSystem(systemHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cronScheduler != nil {
		if err := cronScheduler.Stop(shutdownCtx); err != nil {
			log.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
