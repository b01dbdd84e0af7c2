package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/marminbh/appstore-notify/internal/appstore"
	"github.com/marminbh/appstore-notify/internal/config"
	"github.com/marminbh/appstore-notify/internal/handlers"
	"github.com/marminbh/appstore-notify/internal/lark"
	"github.com/marminbh/appstore-notify/internal/logger"
	"github.com/marminbh/appstore-notify/internal/parser"
	"github.com/marminbh/appstore-notify/internal/routes"
	"github.com/marminbh/appstore-notify/internal/service"
)

func main() {
	// Pick up a local .env in development; absence is fine.
	_ = godotenv.Load()

	log, err := logger.Init(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// App metadata enrichment is optional: without API credentials the
	// cards fall back to raw app identifiers.
	var metadata *appstore.Client
	if cfg.AppStore.EnrichmentEnabled() {
		metadata, err = appstore.NewClient(&cfg.AppStore, log)
		if err != nil {
			log.Fatal("Failed to initialize App Store Connect client", zap.Error(err))
		}
		log.Info("App metadata enrichment enabled",
			zap.String("key_id", cfg.AppStore.KeyID),
		)
	} else {
		log.Warn("App Store Connect API credentials not configured, enrichment disabled")
	}

	dispatcher := lark.NewDispatcher(&cfg.Lark, log)
	svc := service.New(metadata, dispatcher, log)

	healthHandler := handlers.NewHealthHandler(cfg)
	webhookHandler := handlers.NewWebhookHandler(cfg.AppStore.WebhookSecret, parser.New(), svc, log)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "App Store Notify",
		ServerHeader: "Fiber",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Apple-Signature",
	}))

	// Setup routes
	routes.SetupRoutes(app, healthHandler, webhookHandler)

	// Start server in a goroutine
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Server starting",
			zap.String("address", addr),
		)
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
