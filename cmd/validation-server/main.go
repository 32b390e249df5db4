// Package main provides the validation workflow server entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"

	"github.com/modelrisk/validation-workflow/internal/db"
	"github.com/modelrisk/validation-workflow/pkg/audit"
	"github.com/modelrisk/validation-workflow/pkg/authz"
	"github.com/modelrisk/validation-workflow/pkg/ha"
	"github.com/modelrisk/validation-workflow/pkg/registry"
	"github.com/modelrisk/validation-workflow/pkg/validation"
)

func main() {
	var (
		listenAddr   string
		configPath   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&configPath, "config", "/config/validation.yaml", "Path to workflow policy config")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres, mysql, or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting validation server",
		"listen", listenAddr,
		"config", configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := validation.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}

	if databaseDSN == "" {
		databaseDSN = os.Getenv("DATABASE_DSN")
	}
	if v := os.Getenv("DATABASE_TYPE"); databaseType == "" && v != "" {
		databaseType = v
	}
	gormDB, err := db.Connect(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	registryStore := registry.NewStore(gormDB)
	auditStore := audit.NewStore(gormDB)
	workflowStore := validation.NewStore(gormDB)

	// Serialize schema migration across replicas.
	haCfg := ha.HAConfigFromEnv()
	migrate := func() error {
		if err := registryStore.AutoMigrate(); err != nil {
			return err
		}
		if err := auditStore.AutoMigrate(); err != nil {
			return err
		}
		return workflowStore.AutoMigrate()
	}
	if haCfg.MigrationLockEnabled {
		locker := ha.NewMigrationLocker(gormDB)
		err = locker.WithLock(ctx, migrate)
	} else {
		err = migrate()
	}
	if err != nil {
		glog.Fatalf("Failed to migrate database schema: %v", err)
	}

	configStore := validation.NewConfigStore(gormDB)
	planEngine := validation.NewPlanEngine(gormDB, configStore, registryStore, auditStore, logger)
	resolver := validation.NewResolver(logger)
	approvalStore := validation.NewApprovalStore(gormDB)
	engine := validation.NewEngine(gormDB, workflowStore, registryStore, resolver, planEngine, auditStore, cfg, logger)
	scheduler := validation.NewScheduler(workflowStore, registryStore, cfg)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Remote-User", "X-Remote-Role", "X-Remote-Region"},
	}))
	router.Use(authz.IdentityMiddleware())
	router.Use(audit.Middleware(auditStore, logger))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Route("/api/validation/v1alpha1", func(r chi.Router) {
		r.Mount("/", validation.Router(validation.Services{
			Engine:    engine,
			Store:     workflowStore,
			Approvals: approvalStore,
			Plans:     planEngine,
			Configs:   configStore,
			Scheduler: scheduler,
		}))
		r.Mount("/audit", audit.Router(auditStore))
	})

	logger.Info("validation server ready", "listen", listenAddr)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("validation server stopped")
}
