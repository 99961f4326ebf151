// Package main is the entry point for the CAJ2PDF API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/config"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/database"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/handlers"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/middleware"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/router"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/services/webhook"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/services/worker"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/wasm"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 CAJ2PDF API %s starting...", Version)

	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	log.Printf("📋 Config loaded: port=%s, workers=%d, queue=%d, gin_mode=%s", cfg.Port, cfg.WorkerCount, cfg.JobQueueSize, cfg.GinMode)
	log.Printf("🔧 Modules: conversion=%s cleanup=%s", cfg.ConversionModule, cfg.CleanupModule)

	os.Setenv("GIN_MODE", cfg.GinMode)

	// Step 2: Connect to Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✅ Database connected")

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// Step 3: Load the WebAssembly modules in the background.
	// The server starts accepting requests right away; conversions wait
	// (up to MODULE_WAIT_TIMEOUT) until both modules are ready.
	hostCtx, stopHost := context.WithCancel(context.Background())
	defer stopHost()

	host, err := wasm.NewHost(hostCtx, wasm.Config{
		ConversionSource: cfg.ConversionModule,
		CleanupSource:    cfg.CleanupModule,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create wasm runtime: %v", err)
	}
	host.Start(hostCtx)

	// Step 4: Create and Start Worker Pool
	// Go Pattern: each worker gets its own bridge, so cleanup module memory
	// is never shared between goroutines.
	converters := make([]worker.Converter, cfg.WorkerCount)
	for i := range converters {
		converters[i] = host.NewBridge(hostCtx)
	}
	pool := worker.NewPool(converters, cfg.JobQueueSize)
	pool.Start()

	go func() {
		if err := pool.AwaitReady(hostCtx); err != nil {
			log.Printf("❌ Conversion modules failed to load: %v", err)
			return
		}
		log.Println("✅ Conversion modules ready")
	}()

	// Webhook notification service
	webhookService := webhook.New(db)
	log.Println("✅ Webhook notification service initialized")

	// Log admin API key status
	if cfg.AdminAPIKey != "" {
		log.Println("✅ Admin API key configured (API key management protected)")
	} else {
		log.Println("⚠️  No admin API key set (API key creation is open — set ADMIN_API_KEY in production)")
	}

	owner := middleware.Owner{KeyID: cfg.OwnerAPIKeyID, KeyPrefix: cfg.OwnerAPIKeyPrefix}
	rateLimiter := middleware.NewRateLimiter(cfg.DefaultRateLimit, owner)

	// Step 5: Setup HTTP Router
	h := handlers.NewHandler(db, pool, webhookService, handlers.Options{
		Version:           Version,
		JWTSecret:         cfg.JWTSecret,
		AdminAPIKey:       cfg.AdminAPIKey,
		Owner:             owner,
		DefaultRateLimit:  cfg.DefaultRateLimit,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		ModuleWaitTimeout: cfg.ModuleWaitTimeout,
		ConvertTimeout:    cfg.ConvertTimeout,
		OutputFilename:    cfg.OutputFilename,
	})
	r := router.Setup(h, db, rateLimiter, cfg.AllowedOrigins)

	// Step 6: Start the HTTP Server
	// Uploads and conversions are slow, so the write timeout follows the
	// conversion deadline.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: cfg.ConvertTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://localhost:%s", cfg.Port)
		log.Printf("📖 Health check: http://localhost:%s/api/v1/health", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Step 7: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("🛑 Received signal %v, shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// In-flight requests are done; let the workers drain, then wait for the
	// webhook deliveries they triggered.
	pool.Stop()
	webhookService.Shutdown()
	log.Println("⏳ Webhook deliveries stopped")
	rateLimiter.Stop()

	stopHost()
	if err := host.Close(ctx); err != nil {
		log.Printf("⚠️  Failed to close wasm runtime: %v", err)
	}

	log.Println("👋 Server stopped. Goodbye!")
}
