package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docteurlibre/med-api/internal/config"
	"github.com/docteurlibre/med-api/internal/domain/billing"
	"github.com/docteurlibre/med-api/internal/domain/identity"
	"github.com/docteurlibre/med-api/internal/domain/scheduling"
	"github.com/docteurlibre/med-api/internal/platform/db"
	"github.com/docteurlibre/med-api/internal/platform/middleware"
	"github.com/docteurlibre/med-api/internal/platform/ormdb"
	"github.com/docteurlibre/med-api/internal/validation"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "med-server",
		Short: "DocteurLibre medical practice API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			if cfg.DBDriver == config.DriverMySQL {
				gdb, err := ormdb.Open(ctx, cfg.DatabaseURL, ormdb.Options{Logger: newLogger(cfg)})
				if err != nil {
					return err
				}
				defer gdb.Close()

				created, err := ormdb.Migrate(ctx, gdb.DB, identity.GormSchema(), scheduling.GormSchema(), billing.GormSchema())
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Schema synced, %d foreign key(s) added.\n", len(created))
				return nil
			}

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status (postgres only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DBDriver != config.DriverPostgres {
				return fmt.Errorf("migrate status requires DB_DRIVER=%s", config.DriverPostgres)
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
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

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// stores is the repository set of one driver plus its health surface.
type stores struct {
	driver        string
	patients      identity.PatientRepository
	practitioners identity.PractitionerRepository
	appointments  scheduling.AppointmentRepository
	bills         billing.BillRepository
	pinger        db.Pinger
	stats         func() any
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config, schemas *validation.Schemas, logger zerolog.Logger) (*stores, error) {
	if cfg.DBDriver == config.DriverMySQL {
		gdb, err := ormdb.Open(ctx, cfg.DatabaseURL, ormdb.Options{
			MaxConns:           int(cfg.DBMaxConns),
			MinConns:           int(cfg.DBMinConns),
			SlowQueryThreshold: cfg.SlowQueryThreshold,
			Logger:             logger.With().Str("component", "gorm").Logger(),
		})
		if err != nil {
			return nil, err
		}
		return &stores{
			driver:        config.DriverMySQL,
			patients:      identity.NewPatientRepoGorm(gdb.DB, schemas.Patient),
			practitioners: identity.NewPractitionerRepoGorm(gdb.DB, schemas.Practitioner),
			appointments:  scheduling.NewAppointmentRepoGorm(gdb.DB, schemas.Appointment),
			bills:         billing.NewBillRepoGorm(gdb.DB, schemas.Bill),
			pinger:        gdb,
			stats:         gdb.Stats,
			close:         func() { _ = gdb.Close() },
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	return pgStores(pool, schemas), nil
}

func pgStores(pool *pgxpool.Pool, schemas *validation.Schemas) *stores {
	return &stores{
		driver:        config.DriverPostgres,
		patients:      identity.NewPatientRepoPG(pool, schemas.Patient),
		practitioners: identity.NewPractitionerRepoPG(pool, schemas.Practitioner),
		appointments:  scheduling.NewAppointmentRepoPG(pool, schemas.Appointment),
		bills:         billing.NewBillRepoPG(pool, schemas.Bill),
		pinger:        pool,
		stats:         func() any { return db.GetPoolStats(pool) },
		close:         pool.Close,
	}
}

func buildSchemas(cfg *config.Config) *validation.Schemas {
	opts := validation.Options{Location: cfg.Location()}
	if cfg.BusinessHoursEnabled {
		opts.BusinessHours = &validation.HourRange{Open: cfg.BusinessOpenHour, Close: cfg.BusinessCloseHour}
	}
	return validation.NewSchemas(opts)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

// newServer builds the echo instance with middleware and every route.
func newServer(cfg *config.Config, logger zerolog.Logger, schemas *validation.Schemas, st *stores) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	api := e.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "OK",
			"message": "DocteurLibre API is running",
		})
	})
	api.GET("/health/db", db.HealthHandler(st.driver, st.pinger, st.stats))

	identitySvc := identity.NewService(st.patients, st.practitioners, schemas)
	identity.NewHandler(identitySvc).RegisterRoutes(api)

	checker := scheduling.NewConflictChecker(cfg.ConflictWindow)
	schedulingSvc := scheduling.NewService(st.appointments, schemas.Appointment, checker, logger)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	billingSvc := billing.NewService(st.bills, schedulingSvc, schemas.Bill, logger)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		l := newLogger(nil)
		l.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	schemas := buildSchemas(cfg)
	st, err := openStores(ctx, cfg, schemas, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database")
		return err
	}
	defer st.close()
	logger.Info().Str("driver", st.driver).Msg("connected to database")

	e := newServer(cfg, logger, schemas, st)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
