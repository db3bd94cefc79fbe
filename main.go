package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
	"github.com/robfig/cron/v3"

	telegoBot "wavebot/bot"
	"wavebot/internal/audit"
	"wavebot/internal/auth"
	"wavebot/internal/broadcast"
	"wavebot/internal/channels"
	"wavebot/internal/config"
	"wavebot/internal/handlers"
	"wavebot/internal/locales"
	"wavebot/internal/schedule"
	"wavebot/internal/server"
	"wavebot/internal/session"
	"wavebot/internal/storage"
	"wavebot/internal/watermark"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(locales.DefaultLanguage)

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the key-value store holding all bot state
	kv, err := storage.Connect(ctx, cfg.RedisURL)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}()

	// Optional broadcast audit log in MongoDB
	var auditLogger audit.Logger = audit.NopLogger{}
	if cfg.MongoDBURI != "" {
		client, db, err := audit.ConnectDB(cfg.MongoDBURI, cfg.MongoDBName)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal(err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			} else {
				log.Println("Disconnected from MongoDB.")
			}
		}()
		auditLogger = audit.NewMongoLogger(db)
	}

	// --- Bot Initialization ---
	// 1. Create the raw telego bot instance first
	var tgBot *telego.Bot
	if cfg.Debug {
		tgBot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		tgBot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	// 2. Create the Admin Checker
	adminChecker, err := auth.NewAdminChecker(cfg.AdminUserID)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create admin checker: %v", err)
	}

	// 3. Wire the domain components onto the store
	registry := channels.NewRegistry(kv)
	queue := schedule.NewQueue(kv)
	sessions := session.NewStore(kv)
	watermarks := watermark.NewStore(kv)
	engine := broadcast.NewEngine(tgBot, registry, watermarks, kv, auditLogger)

	// 4. Create message handler with dependencies
	messageHandler := handlers.NewMessageHandler(
		tgBot,
		cfg.AdminUserID,
		cfg.Version,
		engine,
		registry,
		queue,
		sessions,
		watermarks,
		adminChecker,
	)

	// 5. The reconciler reports scheduled dispatches back to the admin
	reconciler := schedule.NewReconciler(queue, engine, messageHandler)

	// 6. Choose the update transport: webhook when a public URL is
	// configured, long polling otherwise.
	var updatesChan <-chan telego.Update
	if cfg.PublicURL != "" {
		err = tgBot.SetWebhook(ctx, &telego.SetWebhookParams{URL: cfg.PublicURL + "/webhook"})
		if err != nil {
			sentry.CaptureException(err)
			log.Fatalf("Failed to set webhook: %v", err)
		}
		log.Printf("Webhook registered at %s/webhook", cfg.PublicURL)
	} else {
		if err := tgBot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			log.Printf("Failed to delete webhook before polling: %v", err)
		}
		updatesChan, err = tgBot.UpdatesViaLongPolling(ctx, nil)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatalf("Failed to start long polling: %v", err)
		}
	}

	// 7. Create the bot wrapper
	appBot, err := telegoBot.New(telegoBot.BotDeps{
		Bot:         tgBot,
		UpdatesChan: updatesChan,
		Debug:       cfg.Debug,
		Handler:     messageHandler,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	if updatesChan != nil {
		go appBot.Start(ctx)
	}

	// Register the command menu up front; /start repeats this on demand.
	if err := messageHandler.SetupCommands(ctx, tgBot); err != nil {
		log.Printf("Failed to set up commands: %v", err)
	}

	// Internal reconciliation ticker, for deployments without an external
	// cron hitting the /cron endpoint.
	if cfg.CronInterval > 0 {
		c := cron.New()
		c.Schedule(cron.Every(cfg.CronInterval), cron.FuncJob(func() {
			if _, err := reconciler.Run(ctx, time.Now()); err != nil {
				log.Printf("[Cron] Internal reconciliation failed: %v", err)
				sentry.CaptureException(err)
			}
		}))
		c.Start()
		defer c.Stop()
		log.Printf("Internal reconciliation ticker running every %s", cfg.CronInterval)
	}

	srv := server.New(cfg.ListenAddr, cfg.CronSecret, appBot, reconciler)
	go func() {
		if err := srv.Start(); err != nil {
			sentry.CaptureException(err)
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Shutdown complete.")
}
