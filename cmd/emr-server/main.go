package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayushbridge/emr/internal/config"
	"github.com/ayushbridge/emr/internal/domain/auditevent"
	"github.com/ayushbridge/emr/internal/domain/medicalrecord"
	"github.com/ayushbridge/emr/internal/domain/terminology"
	"github.com/ayushbridge/emr/internal/platform/auth"
	"github.com/ayushbridge/emr/internal/platform/db"
	"github.com/ayushbridge/emr/internal/platform/middleware"
	"github.com/ayushbridge/emr/internal/platform/who"
)

func main() {
	root := &cobra.Command{
		Use:   "emr-server",
		Short: "AyushBridge EMR: NAMASTE / ICD-11 terminology bridge and curator workflow",
	}
	root.AddCommand(serveCmd(), migrateCmd(), loadTerminologyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if cfg.IsProduction() {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	auditSvc := auditevent.NewService(auditevent.NewRepoPG(pool), logger)
	recordSvc := medicalrecord.NewService(medicalrecord.NewRepoPG(pool), auditSvc, logger)

	termSvc := terminology.NewService(logger)
	if cfg.WHOEnabled() {
		termSvc.SetVerifier(who.NewClient(
			cfg.WHOAPIBaseURL, cfg.WHOTokenURL,
			cfg.WHOClientID, cfg.WHOClientSecret,
			time.Duration(cfg.WHOTimeoutSecs)*time.Second, logger))
	}

	// Terminology initialization is synchronous to completion; readiness
	// flips only after the dataset and FHIR caches are fully built.
	report, err := initializeTerminology(ctx, cfg, termSvc, auditSvc)
	if err != nil {
		return err
	}
	logger.Info().
		Int("mappings", report.MappingsLoaded).
		Int("skipped", report.RowsSkipped).
		Msg("terminology ready")

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "X-Request-ID"},
	}))
	e.Use(middleware.Audit(logger, auditevent.NewAccessRecorder(auditSvc)))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if !termSvc.Ready() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSigningKey),
		})
	}

	api := e.Group("/api/v1", authMW)
	fhirGroup := e.Group("/fhir", authMW)

	terminology.NewHandler(termSvc).RegisterRoutes(api, fhirGroup)
	medicalrecord.NewHandler(recordSvc).RegisterRoutes(api)
	auditevent.NewHandler(auditSvc).RegisterRoutes(api)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(":" + cfg.Port)
	}()
	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down")
	return e.Shutdown(shutdownCtx)
}

func readSources(cfg *config.Config) (namaste, tm2, mappings []terminology.Row, err error) {
	if namaste, err = terminology.ReadCSV(cfg.NamasteCSVPath); err != nil {
		return nil, nil, nil, err
	}
	if tm2, err = terminology.ReadCSV(cfg.TM2CSVPath); err != nil {
		return nil, nil, nil, err
	}
	if mappings, err = terminology.ReadCSV(cfg.MappingCSVPath); err != nil {
		return nil, nil, nil, err
	}
	return namaste, tm2, mappings, nil
}

func initializeTerminology(ctx context.Context, cfg *config.Config, svc *terminology.Service, auditor auditevent.Recorder) (*terminology.IngestReport, error) {
	namaste, tm2, mappings, err := readSources(cfg)
	if err != nil {
		return nil, fmt.Errorf("read terminology sources: %w", err)
	}
	report := svc.Initialize(namaste, tm2, mappings)

	entry := &auditevent.Entry{
		Action:       auditevent.ActionTerminologyLoaded,
		Actor:        auditevent.Actor{ID: "system", Role: "system"},
		ResourceType: "Terminology",
		ResourceID:   "dataset",
		Description: fmt.Sprintf("loaded %d mappings, skipped %d rows",
			report.MappingsLoaded, report.RowsSkipped),
	}
	// Startup audit is best-effort like every other emission.
	_ = auditor.Record(ctx, entry)
	return report, nil
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "directory containing .sql migration files")

	withMigrator := func(run func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := c.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()
			return run(ctx, db.NewMigrator(pool, dir))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			applied, err := m.Up(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", applied)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%03d  %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		}),
	})
	return cmd
}

func loadTerminologyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-terminology",
		Short: "Dry-run the terminology ingestion and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			namaste, tm2, mappings, err := readSources(cfg)
			if err != nil {
				return err
			}
			svc := terminology.NewService(logger)
			report := svc.Initialize(namaste, tm2, mappings)

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
