// Package main is the entry point for the record store server binary.
// It dispatches three subcommands (serve, migrate and version) with a plain
// switch on os.Args. The postgres and sqlite backends migrate their schema
// when the persister is opened, so serve needs no separate migration step.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recordstore/recordstore/internal/api"
	"github.com/recordstore/recordstore/internal/audit"
	"github.com/recordstore/recordstore/internal/auth"
	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/db"
	_ "github.com/recordstore/recordstore/internal/db/repositories" // postgres backend
	_ "github.com/recordstore/recordstore/internal/db/sqlite"       // sqlite backend
	"github.com/recordstore/recordstore/internal/persist"
	"github.com/recordstore/recordstore/internal/recordstore"
	_ "github.com/recordstore/recordstore/internal/storage/azure"
	_ "github.com/recordstore/recordstore/internal/storage/gcs"
	_ "github.com/recordstore/recordstore/internal/storage/local"
	_ "github.com/recordstore/recordstore/internal/storage/s3"
	"github.com/recordstore/recordstore/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "version":
		fmt.Printf("Record Store v%s\n", api.Version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	persister, err := persist.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s persister: %w", cfg.Store.Backend, err)
	}
	store, err := recordstore.Open(ctx, persister, recordstore.Options{
		KeyPrefix: cfg.Store.KeyPrefix,
		Backend:   cfg.Store.Backend,
	})
	if err != nil {
		persister.Close()
		return fmt.Errorf("failed to load record store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close store: %v", err)
		}
	}()
	log.Printf("Record store loaded (backend: %s, keys: %d)", cfg.Store.Backend, len(store.Keys()))

	adminHash, err := resolveAdminTokenHash(cfg.Auth.AdminTokenHash)
	if err != nil {
		return err
	}

	var sessions *auth.SessionIssuer
	if cfg.Auth.Session.Enabled {
		sessions, err = auth.NewSessionIssuer(cfg.Auth.Session.Secret, cfg.Auth.Session.TTL)
		if err != nil {
			return fmt.Errorf("failed to create session issuer: %w", err)
		}
		log.Printf("Session tokens enabled (required: %v)", cfg.Auth.Session.Required)
	}

	var shipper audit.Shipper
	if cfg.Audit.Enabled {
		ms, err := audit.NewFromConfig(&cfg.Audit)
		if err != nil {
			return fmt.Errorf("failed to configure audit shipping: %w", err)
		}
		if ms.Len() > 0 {
			shipper = ms
		}
	}

	// Metrics live on their own port so the scrape path stays off the public listener.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	router, bgServices := api.NewRouter(cfg, api.Dependencies{
		Store:          store,
		AdminTokenHash: adminHash,
		Sessions:       sessions,
		Shipper:        shipper,
	})

	server := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.Server.GetAddress())
		log.Println("Server is ready to accept connections")

		var err error
		if cfg.Security.TLS.Enabled {
			log.Printf("TLS enabled: cert=%s, key=%s", cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Background jobs go after the listener so in-flight requests can still audit.
	bgServices.Shutdown()

	log.Println("Server stopped gracefully")
	return nil
}

// resolveAdminTokenHash returns the configured admin token hash, or generates
// a fresh token, prints it once and returns its hash.
func resolveAdminTokenHash(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	token, hash, err := auth.GenerateAdminToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate admin token: %w", err)
	}

	separator := strings.Repeat("═", 66)
	log.Println("")
	log.Println(separator)
	log.Println("  ADMIN TOKEN GENERATED")
	log.Println("")
	log.Printf("  Admin Token: %s", token)
	log.Println("")
	log.Println("  Send it as 'Authorization: Bearer <token>' to /api/admin/*.")
	log.Println("  It is valid until the server restarts. To keep a stable token,")
	log.Println("  hash one with cmd/hash and set RS_AUTH_ADMIN_TOKEN_HASH.")
	log.Println(separator)
	log.Println("")

	return hash, nil
}

func runMigrations(cfg *config.Config, direction string) error {
	if cfg.Store.Backend != "postgres" {
		return fmt.Errorf("migrate applies to the postgres backend only (store.backend is %q)", cfg.Store.Backend)
	}

	database, err := db.Connect(context.Background(), cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)

	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", version, dirty)
	return nil
}
