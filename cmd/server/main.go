package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rpsarena/backend/internal/admin"
	"github.com/rpsarena/backend/internal/api"
	"github.com/rpsarena/backend/internal/api/handlers"
	"github.com/rpsarena/backend/internal/config"
	"github.com/rpsarena/backend/internal/database"
	"github.com/rpsarena/backend/internal/events"
	"github.com/rpsarena/backend/internal/game"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/rpsarena/backend/internal/middleware"
	"github.com/rpsarena/backend/internal/migrations"
	"github.com/rpsarena/backend/internal/redis"
	"github.com/rpsarena/backend/internal/telegram"
	"github.com/rpsarena/backend/internal/ws"
)

func main() {
	cfg := config.Load()

	econ := game.NewEconomics(cfg)
	if err := econ.Validate(); err != nil {
		log.Fatalf("Invalid game settings: %v", err)
	}
	if cfg.VIPReferralMultiplier < 1 {
		log.Fatalf("Invalid game settings: VIP referral multiplier must be at least 1, got %v", cfg.VIPReferralMultiplier)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger, journal and admin store
	var (
		store   ledger.Store
		journal game.Journal
		admins  admin.Store
	)
	switch cfg.LedgerBackend {
	case "postgres":
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			log.Println("[MIGRATE] Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
		store = ledger.NewPostgresStore(db)
		journal = game.NewPostgresJournal(db)
		admins = admin.NewPostgresStore(db)
	case "memory", "":
		log.Println("[LEDGER] Using in-memory ledger; balances are lost on restart")
		store = ledger.NewMemoryStore()
		journal = game.NewMemoryJournal()
		mem := admin.NewMemoryStore()
		if cfg.AdminToken != "" {
			if err := admin.CreateAdminAccount(ctx, mem, cfg.AdminUsername, "Admin", cfg.AdminToken); err != nil {
				log.Fatalf("Failed to seed admin account: %v", err)
			}
			log.Printf("[ADMIN] Seeded in-memory admin %s", cfg.AdminUsername)
		}
		admins = mem
	default:
		log.Fatalf("Unknown LEDGER_BACKEND %q (want memory or postgres)", cfg.LedgerBackend)
	}

	// Redis is optional; without it events are delivered to this instance only
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("[REDIS] Unavailable, continuing without pub/sub and rate limits: %v", err)
		} else {
			rdb = client
			defer rdb.Close()
		}
	}

	hub := ws.NewHub()
	notifiers := game.MultiNotifier{}
	if rdb != nil {
		notifiers = append(notifiers, events.NewNotifier(events.RedisSink(rdb, events.Channel)))
		ws.StartEventSubscriber(ctx, rdb, hub)
	} else {
		notifiers = append(notifiers, events.NewNotifier(hub.Deliver))
	}

	var bot *telegram.Bot
	var botAPI *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		var err error
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("Failed to start Telegram bot: %v", err)
		}
		botAPI.Debug = cfg.TelegramDebug
		bot = telegram.New(botAPI, botAPI.Self.UserName, store, telegram.Referral{
			Reward:        int64(cfg.ReferralReward),
			InviteeReward: int64(cfg.ReferralInviteeReward),
			VIPMultiplier: cfg.VIPReferralMultiplier,
		})
		notifiers = append(notifiers, bot)
		log.Printf("[TG] Authorized as @%s", botAPI.Self.UserName)
	} else {
		log.Println("[TG] TELEGRAM_BOT_TOKEN not set; bot disabled")
	}

	engine := game.NewEngine(store, journal, notifiers, nil, econ)

	if bot != nil {
		bot.Bind(engine)
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := botAPI.GetUpdatesChan(u)
		go bot.Run(ctx, updates)
	}

	if _, err := game.StartRecoveryWorker(ctx, engine, time.Duration(cfg.RecoveryIntervalSecs)*time.Second); err != nil {
		log.Fatalf("Failed to start settlement recovery: %v", err)
	}

	var throttle ws.ThrottleFunc
	if rdb != nil && cfg.JoinRateLimitSeconds > 0 {
		window := time.Duration(cfg.JoinRateLimitSeconds) * time.Second
		throttle = func(ctx context.Context, accountID string) (bool, error) {
			return redis.Throttle(ctx, rdb, "join:"+accountID, window)
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg))

	api.SetupRoutes(router, &handlers.Deps{
		Config:   cfg,
		Engine:   engine,
		Store:    store,
		Admins:   admins,
		Redis:    rdb,
		Throttle: throttle,
	}, ws.NewHandler(hub, engine, throttle))

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Printf("Starting RPS Arena server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), econ.ChoiceWindow+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if botAPI != nil {
		botAPI.StopReceivingUpdates()
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MATCH] Shutdown incomplete: %v", err)
	}
	if n, err := engine.RecoverPending(shutdownCtx); err != nil {
		log.Printf("[RECOVERY] Final pass failed after %d intents: %v", n, err)
	}
	log.Println("Server stopped")
}
