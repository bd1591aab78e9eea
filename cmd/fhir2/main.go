package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/config"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/auth"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/cache"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/codesystem"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/middleware"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/translators"
)

const apiPrefix = "/fhir2"

func main() {
	rootCmd := &cobra.Command{
		Use:          "fhir2",
		Short:        "OpenMRS to FHIR R4 translation service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(translateCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the translation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, newLogger(cfg))
		},
	}
}

func translateCmd() *cobra.Command {
	var (
		resourceType string
		direction    string
		input        string
		existing     string
	)
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate one resource read from a file or stdin",
		Example: `  fhir2 translate --type Patient --to fhir --in patient.json
  fhir2 translate --type Condition --to openmrs --existing cond.json < condition.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validDirection(direction); err != nil {
				return err
			}
			body, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var prior []byte
			if existing != "" {
				if prior, err = os.ReadFile(existing); err != nil {
					return fmt.Errorf("read existing record: %w", err)
				}
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg).Level(zerolog.WarnLevel)
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var out []byte
			switch direction {
			case "fhir":
				out, err = a.registry.ToFHIRJSON(ctx, resourceType, body)
			case "openmrs":
				out, err = a.registry.ToOpenmrsJSON(ctx, resourceType, body, prior)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVarP(&resourceType, "type", "t", "", "FHIR resource type, e.g. Patient")
	cmd.Flags().StringVar(&direction, "to", "fhir", "target representation: fhir or openmrs")
	cmd.Flags().StringVarP(&input, "in", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVar(&existing, "existing", "", "native record to update (only with --to openmrs)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func validDirection(d string) error {
	if d != "fhir" && d != "openmrs" {
		return fmt.Errorf("--to must be fhir or openmrs, got %q", d)
	}
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the lookup table migrations",
	}

	var dir string
	withMigrator := func(run func(context.Context, *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(ctx, db.NewMigrator(pool, dir))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			n, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", n)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			printStatus(os.Stdout, statuses)
			return nil
		}),
	})
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		state, at := "pending", ""
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
	}
}

// app holds everything a translation needs: the pool, the cache and the
// translator registry built on them.
type app struct {
	pool     *pgxpool.Pool
	cache    cache.Cache
	registry *translators.Registry
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "fhir2:")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.cache = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	} else {
		mc := cache.NewMemory()
		cctx, cancel := context.WithCancel(context.Background())
		mc.StartCleanup(cctx, time.Minute)
		a.cache = mc
		a.closers = append(a.closers, cancel)
	}

	displays := codesystem.NewRegistry(logger)
	loadCodeSystems(ctx, cfg, displays, logger)
	logger.Info().Int("code_systems", displays.Systems()).Msg("code system displays ready")

	concepts := terminology.NewConceptRepoPG(pool)
	drugs := medication.NewDrugRepoPG(pool, concepts)

	a.registry = translators.NewRegistry(translators.Dependencies{
		Concepts:       terminology.NewConceptService(concepts, logger),
		ConceptSources: terminology.NewConceptSourceService(terminology.NewConceptSourceRepoPG(pool), a.cache, cfg.CacheTTL(), logger),
		Displays:       displays,
		Mappings:       terminology.NewMappingRepoPG(pool),
		Patients:       identity.NewPatientRepoPG(pool),
		Persons:        identity.NewPersonRepoPG(pool),
		Providers:      identity.NewProviderRepoPG(pool),
		Locations:      admin.NewLocationRepoPG(pool),
		Encounters:     encounter.NewRepo(pool),
		Obs:            clinical.NewObsRepoPG(pool, concepts),
		Conditions:     clinical.NewConditionRepoPG(pool, concepts),
		Allergies:      clinical.NewAllergyRepoPG(pool, concepts),
		Drugs:          drugs,
		Orders:         medication.NewOrderRepoPG(pool, concepts, drugs),
		Settings: translators.Settings{
			Locale:                   cfg.Locale,
			ContactAttributeTypeUUID: cfg.ContactAttributeTypeUUID,
			AllergySeverity: translators.AllergySeverityConcepts{
				Mild:          cfg.AllergySeverityMild,
				Moderate:      cfg.AllergySeverityModerate,
				Severe:        cfg.AllergySeveritySevere,
				OtherNonCoded: cfg.AllergyOtherNonCoded,
			},
		},
		Logger: logger,
	})
	return a, nil
}

// loadCodeSystems fills the display registry. A code system that fails to
// load costs displays, not startup.
func loadCodeSystems(ctx context.Context, cfg *config.Config, reg *codesystem.Registry, logger zerolog.Logger) {
	for _, path := range cfg.CodeSystemFiles {
		n, err := reg.LoadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("failed to load code system")
			continue
		}
		logger.Info().Str("file", path).Int("codes", n).Msg("loaded code system")
	}
	if len(cfg.CodeSystemURLs) == 0 {
		return
	}
	fetcher := codesystem.NewFetcher(cfg.CodeSystemRetryMax, 15*time.Second)
	for _, url := range cfg.CodeSystemURLs {
		n, err := reg.LoadURL(ctx, fetcher, url)
		if err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("failed to fetch code system")
			continue
		}
		logger.Info().Str("url", url).Int("codes", n).Msg("loaded code system")
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newServer(cfg, logger, a)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newServer(cfg *config.Config, logger zerolog.Logger, a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	api := e.Group(apiPrefix)
	api.GET("/health", healthHandler(a.pool))

	secured := api.Group("")
	if cfg.IsDev() {
		secured.Use(auth.DevAuthMiddleware())
	} else {
		secured.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	secured.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	secured.Use(middleware.Audit(logger, apiPrefix))

	translators.NewHandler(a.registry, logger).RegisterRoutes(secured)
	return e
}

func healthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		status, code := "ok", http.StatusOK
		if err := pool.Ping(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]interface{}{
			"status": status,
			"db":     db.Stats(pool),
		})
	}
}
