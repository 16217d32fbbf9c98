package main // Entry point package

import (
	"log"  // Logging library for startup errors
	"time" // Service token TTL

	"github.com/joho/godotenv"    // Loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/hyeonwoo/railbot/internal/admission"
	"github.com/hyeonwoo/railbot/internal/config"
	"github.com/hyeonwoo/railbot/internal/conversation"
	"github.com/hyeonwoo/railbot/internal/database"
	"github.com/hyeonwoo/railbot/internal/handler"
	"github.com/hyeonwoo/railbot/internal/notifier"
	"github.com/hyeonwoo/railbot/internal/provider"
	"github.com/hyeonwoo/railbot/internal/queue"
	"github.com/hyeonwoo/railbot/internal/repository"
	"github.com/hyeonwoo/railbot/internal/router"
	queuepublisher "github.com/hyeonwoo/railbot/internal/service"
	"github.com/hyeonwoo/railbot/internal/telegram"
	"github.com/hyeonwoo/railbot/internal/utils"
	"github.com/hyeonwoo/railbot/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()
	utils.InitializeLogger()
	logger := utils.GetLogger()

	// MySQL is optional.  Without it the allow list comes from ALLOW_LIST
	// and reservation history is not recorded.
	var allow repository.AllowList
	var history *repository.HistoryRepo
	if cfg.DBUser != "" {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("mysql connection failed: %v", err)
		}
		allow = repository.NewAllowListRepo(db)
		history = repository.NewHistoryRepo(db)
	} else {
		allow = repository.NewStaticAllowList(cfg.AllowList)
		log.Println("running without MySQL; using static allow list")
	}

	// Redis degrades gracefully: a nil client means in-memory subscribers
	// and no webhook rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; subscriber set is process-local")
	}
	subs := repository.NewSubscriberStore(rdb)

	sessions := repository.NewSessionStore()
	messenger := telegram.NewClient(cfg.BotToken)

	// The worker reports outcomes over HTTP to our own completion endpoint,
	// authenticated with a long-lived service token.
	token, err := utils.NewServiceToken(cfg.InternalSecret, "reservation-worker", 365*24*time.Hour)
	if err != nil {
		log.Fatalf("service token: %v", err)
	}
	reporter := worker.NewCallbackReporter(cfg.CallbackBaseURL, token, logger)
	w := worker.New(worker.Config{
		MaxAttempts:    cfg.MaxAttempts,
		Interval:       cfg.PollInterval,
		ErrorThreshold: cfg.ErrorThreshold,
		ErrorCooldown:  cfg.ErrorCooldown,
	}, provider.NewKorailClient, reporter, logger)

	control := admission.New(w.Run)
	notify := notifier.New(sessions, control, messenger, history,
		queuepublisher.PublishReservationCompleted, logger)

	engine := conversation.New(conversation.Config{
		AdminSecretHash:     cfg.AdminSecretHash,
		AdminChatID:         cfg.AdminChatID,
		OperatorLoginID:     cfg.OperatorLoginID,
		OperatorLoginSecret: cfg.OperatorSecret,
	}, sessions, allow, control, provider.NewKorailClient, messenger, subs, logger, nil)

	// Consume completion events into the audit log.  Runs for the life of
	// the process and reconnects on broker failure.
	go func() {
		if err := queue.StartCompletionConsumer(); err != nil {
			log.Printf("completion consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e,
		handler.NewWebhookHandler(engine, messenger),
		handler.NewCompletionHandler(notify),
		cfg.InternalSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
