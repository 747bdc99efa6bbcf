package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fan-activity-engine/config"
	"fan-activity-engine/handlers"
	"fan-activity-engine/logger"
	"fan-activity-engine/middleware"
	"fan-activity-engine/models"
	"fan-activity-engine/services"
	"fan-activity-engine/utils"
	"fan-activity-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if cfg.AutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			log.Fatal("failed to migrate database", "error", err)
		}
	}

	policy, err := rankingPolicy(cfg)
	if err != nil {
		log.Fatal("invalid ranking policy", "error", err)
	}

	var events services.EventSink = services.LogSink{Log: log}
	if cfg.Redis.Addr != "" {
		rdb, err := utils.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("failed to connect to redis", "error", err)
		}
		defer rdb.Close()
		events = services.NewRedisStreamSink(rdb, cfg.Redis.EventStream)
		log.Info("publishing activity events to redis stream", "stream", cfg.Redis.EventStream)
	} else {
		log.Warn("REDIS_ADDR not set, activity events are only logged")
	}

	feedService := services.NewFeedService(db, cfg.Feed.MaxPageSize, log)
	contestService := services.NewContestService(db, log)
	rankingService := services.NewRankingService(db, policy, log)
	finishService := services.NewFinishService(db, rankingService, services.GormLedger{}, events, log)
	participationService := services.NewParticipationService(db, services.WalletBalances{DB: db}, log)

	if cfg.R2.Bucket != "" {
		r2, err := utils.NewR2Client(ctx, utils.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			CDNBaseURL:      cfg.R2.CDNBaseURL,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client", "error", err)
		}
		finishService.Archive = services.ObjectStoreArchiver{Store: r2}
	}

	if cfg.Sync.ServiceURL != "" {
		client, err := workers.NewSyncClient(cfg.Sync.ServiceURL, cfg.GatewayToken)
		if err != nil {
			log.Fatal("invalid sync service config", "error", err)
		}
		workers.NewTeamSyncWorker(db, client, cfg.Sync.TeamsPath, cfg.Sync.Interval, log).Start(ctx)
		workers.NewWalletSyncWorker(db, client, cfg.Sync.BalancesPath, cfg.Sync.Interval, log).Start(ctx)
	} else {
		log.Warn("SYNC_SERVICE_URL not set, team and wallet mirrors are not refreshed")
	}

	if cfg.Scheduler.AutoFinishEnabled {
		finisher := services.NewAutoFinisher(finishService, log)
		if err := finisher.Start(ctx, cfg.Scheduler.AutoFinishInterval); err != nil {
			log.Fatal("failed to start auto-finish scheduler", "error", err)
		}
		defer finisher.Stop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	// Only Gateway requests allowed.
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(middleware.UserContextMiddleware())

	handlers.SetupFeedRoutes(app, feedService, cfg.Feed.DefaultPageSize, log)
	handlers.SetupContestRoutes(app, handlers.NewContestHandler(
		contestService, rankingService, finishService, participationService, log,
	))

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()
	log.Info("server running", "addr", cfg.HTTPAddr, "origins", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

func rankingPolicy(cfg *config.Config) (services.RankingPolicy, error) {
	prediction, err := services.ParseTieBreak(cfg.Ranking.PredictionTieBreak)
	if err != nil {
		return services.RankingPolicy{}, err
	}
	trivia, err := services.ParseTieBreak(cfg.Ranking.TriviaTieBreak)
	if err != nil {
		return services.RankingPolicy{}, err
	}
	return services.RankingPolicy{Prediction: prediction, Trivia: trivia}, nil
}
