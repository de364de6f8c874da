// @title           MailNow Admin API
// @version         1.0.0
// @description     Multi-tenant email platform backend: accounts, companies, API keys, SMTP profiles, templates, webhooks, team management, email logs and the public send API.
// @contact.name    Support
// @contact.email   support@mailnow.io
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                        Authorization
// @description                 "User session token: 'Bearer {token}'"
// @securityDefinitions.apiKey  APIKey
// @in                          header
// @name                        X-API-Key
//
// @tag.name         System
// @tag.description  Health, readiness and version endpoints.

// Package main is the entry point for the MailNow admin server binary.
// The serve command runs migrations on startup so a fresh container needs no separate
// migration step.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/mailnow/mailnow-admin/internal/api"
	"github.com/mailnow/mailnow-admin/internal/config"
	"github.com/mailnow/mailnow-admin/internal/db"
	"github.com/mailnow/mailnow-admin/internal/safego"
	"github.com/mailnow/mailnow-admin/internal/telemetry"
)

var version = "0.1.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mailnow-admin",
		Usage:   "admin backend for the MailNow email platform",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to the YAML config file; defaults to ./config.yaml when present",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run migrations and start the HTTP server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "manage the database schema",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateAction("up")},
					{Name: "down", Usage: "roll back all migrations", Action: migrateAction("down")},
					{Name: "version", Usage: "print the current schema version", Action: migrationVersion},
				},
			},
			{
				Name:   "keygen",
				Usage:  "print fresh values for ENCRYPTION_KEY and JWT_SECRET",
				Action: keygen,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Log level follows edits to the config file without a restart.
	cfg.OnChange(func(next *config.Config) {
		telemetry.SetLevel(next.Logging.Level)
	})

	slog.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"name", cfg.Database.Name,
		"ssl_mode", cfg.Database.SSLMode,
	)
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections, cfg.Database.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to read migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", v, "dirty", dirty)
	}

	ctx, stop := context.WithCancel(c.Context)
	defer stop()

	if cfg.Telemetry.MetricsEnabled {
		safego.Go("db-stats-collector", func() {
			telemetry.StartDBStatsCollector(ctx, database.DB, 15*time.Second)
		})
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	router, bgServices, err := api.NewRouter(cfg, api.Options{
		DB:      database,
		Redis:   redisClient,
		Version: version,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	safego.Go("http-server", func() {
		slog.Info("starting server",
			"addr", server.Addr,
			"base_url", cfg.Server.BaseURL,
			"storage_backend", cfg.Storage.DefaultBackend,
			"tls", cfg.Security.TLS.Enabled,
		)
		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		bgServices.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Background jobs stop after in-flight requests have drained.
	bgServices.Shutdown()
	stop()

	slog.Info("server stopped gracefully")
	return nil
}

func migrateAction(direction string) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections, cfg.Database.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		slog.Info("running migrations", "direction", direction)
		if err := db.RunMigrations(database, direction); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		v, dirty, err := db.GetMigrationVersion(database)
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		slog.Info("migration completed", "version", v, "dirty", dirty)
		return nil
	}
}

func migrationVersion(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections, cfg.Database.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%d (dirty: %v)\n", v, dirty)
	return nil
}

// keygen prints random secrets in the formats the server accepts: a 32-byte hex key for
// ENCRYPTION_KEY and a 48-byte hex string for JWT_SECRET.
func keygen(c *cli.Context) error {
	encKey := make([]byte, 32)
	if _, err := rand.Read(encKey); err != nil {
		return fmt.Errorf("failed to generate encryption key: %w", err)
	}
	jwtSecret := make([]byte, 48)
	if _, err := rand.Read(jwtSecret); err != nil {
		return fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "ENCRYPTION_KEY=%s\n", hex.EncodeToString(encKey))
	fmt.Fprintf(c.App.Writer, "JWT_SECRET=%s\n", hex.EncodeToString(jwtSecret))
	return nil
}
