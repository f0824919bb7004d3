package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"booksync/core/cache"
	"booksync/core/config"
	"booksync/core/database"
	"booksync/core/events"
	"booksync/core/kvstore"
	"booksync/core/loader"
	"booksync/core/logger"
	"booksync/core/middleware/auth"
	"booksync/core/middleware/rayid"
	"booksync/core/storage"

	"booksync/feature/apply"
	"booksync/feature/book"
	"booksync/feature/compare"
	"booksync/feature/conflict"
	"booksync/feature/jobs"
	"booksync/feature/library"
	"booksync/feature/sync"
	"booksync/feature/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "booksync/docs/swagger"
)

// @title Booksync API
// @version 1.0
// @description API for reconciling book records across reading platforms.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Database connection failed", zap.Error(err))
		}
		store := library.NewStore(db, logg)
		if err := store.AutoMigrate(); err != nil {
			logg.Fatal("Library migration failed", zap.Error(err))
		}
		if missing, err := database.MissingColumns(db, book.Record{}.TableName(), []string{"id", "title", "status"}); err != nil {
			logg.Warn("Schema inspection failed", zap.Error(err))
		} else if len(missing) > 0 {
			logg.Warn("Books table is missing columns", zap.Strings("missing", missing))
		}

		// 4. Persistent cache tier (optional). A failed object store
		// connection degrades to memory-only caching.
		var persistent kvstore.Store
		if cfg.Cache.Persistent {
			if client, err := storage.NewClient(cfg.Storage); err != nil {
				logg.Warn("Object storage unavailable, cache is memory-only", zap.Error(err))
			} else {
				persistent = kvstore.NewObjectStore(client, cfg.Storage.Bucket, "cache")
			}
		}

		// 5. Core services
		bus := events.NewBus(0, logg)
		defer bus.Close()
		cacheMgr := cache.NewManager(cfg.Cache, persistent, logg)
		bus.Subscribe(events.TopicConfigUpdated, func(events.Event) {
			cacheMgr.Clear(cache.TypeRules)
		})

		validator := validate.NewValidator(cfg.Validation, cacheMgr, bus, logg)
		engine := compare.NewEngine(compare.Config{}, logg)
		detector := conflict.NewDetector(logg)
		resolver := conflict.NewResolver(cfg.Sync.ConflictHistorySize, logg)
		processor := apply.NewProcessor(cfg.Apply, bus, logg)
		monitor := jobs.NewMonitor(cfg.Sync.JobRetention(), bus, logg)

		service := sync.NewService(cfg.Sync, validator, engine, detector, resolver,
			processor, store, monitor, cacheMgr, bus, logg)

		sweepCtx, stopSweeper := context.WithCancel(context.Background())
		defer stopSweeper()
		go service.RunSweeper(sweepCtx, cfg.Sync.SweepInterval())

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// 7. Feature Loader
		mgr := loader.NewManager()
		mgr.Register(sync.NewFeature(service, cfg.Sync.Enabled))

		// Middleware Registration
		// RayID first so every log line can be traced.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Swagger Documentation (Public)
		app.Get("/swagger/*", swagger.HandlerDefault)

		// Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 8. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 9. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(cfg.Server.Addr()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 10. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
