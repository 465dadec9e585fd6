package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/seatswap/internal/config"
	"github.com/iliyamo/seatswap/internal/database"
	"github.com/iliyamo/seatswap/internal/handler"
	"github.com/iliyamo/seatswap/internal/matching"
	"github.com/iliyamo/seatswap/internal/queue"
	"github.com/iliyamo/seatswap/internal/repository"
	"github.com/iliyamo/seatswap/internal/router"
	"github.com/iliyamo/seatswap/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine outside development

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Error("database unavailable", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	rdb := config.NewRedisClient() // nil when Redis is not reachable
	if rdb != nil {
		defer rdb.Close()
	}

	// Repositories
	credits := repository.NewCreditRepo(db)
	listings := repository.NewListingRepo(db, credits)
	convs := repository.NewConversationRepo(db, credits, listings)
	msgs := repository.NewMessageRepo(db)
	notes := repository.NewNotificationRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Services
	ledger := service.NewCreditLedger(credits, logger)
	mailer := service.NewQueueMailer(config.AMQPURL(), cfg.EmailQueue)
	dispatcher := service.NewDispatcher(notes, users, mailer, logger)
	coordinator := service.NewCoordinator(convs, users, listings, ledger, cfg.PaywallEnabled, logger)
	messages := service.NewMessageService(convs, msgs, users, dispatcher, service.NewRedisPublisher(rdb), logger)
	finder := matching.NewFinder(matching.NewScorer(config.LoadScoringWeights()))
	listingSvc := service.NewListingService(listings, finder, dispatcher, service.ListingOptions{
		NotifyLimit:  cfg.MatchNotifyLimit,
		RelatedLimit: cfg.RelatedLimit,
		MinScore:     cfg.MatchMinScore,
		PoolSize:     cfg.MatchPoolSize,
		BoostCost:    cfg.BoostCostCredits,
	}, logger)

	if cfg.EmailConsumerEnabled {
		go func() {
			err := queue.StartEmailConsumer(ctx, config.AMQPURL(), cfg.EmailQueue, &queue.FileMailer{Path: cfg.EmailLogPath})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("email consumer stopped", "err", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "err", v.Error)
			}
			logger.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	router.RegisterRoutes(e, router.Deps{
		JWTSecret:     cfg.JWTSecret,
		Redis:         rdb,
		Cache:         config.LoadCacheConfig(),
		RateLimit:     config.LoadRateLimitConfig(),
		Health:        &handler.Health{DB: db, Redis: rdb},
		Auth:          handler.NewAuthHandler(cfg, users, tokens),
		Listings:      handler.NewListingHandler(listingSvc),
		Conversations: handler.NewConversationHandler(coordinator, messages),
		Notifications: handler.NewNotificationHandler(dispatcher),
		Credits:       handler.NewCreditHandler(ledger),
		Admin:         handler.NewAdminHandler(listingSvc, ledger),
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "paywall", cfg.PaywallEnabled)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
