package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/featureflags"
	"github.com/kekelo17/Swift-Meds-sub000/internal/handler"
	"github.com/kekelo17/Swift-Meds-sub000/internal/infrastructure/logger"
	"github.com/kekelo17/Swift-Meds-sub000/internal/infrastructure/redis"
	"github.com/kekelo17/Swift-Meds-sub000/internal/observability/metrics"
	"github.com/kekelo17/Swift-Meds-sub000/internal/observability/tracing"
	"github.com/kekelo17/Swift-Meds-sub000/internal/realtime"
	"github.com/kekelo17/Swift-Meds-sub000/internal/repository"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/audit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/auth"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/ratelimit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
	"github.com/kekelo17/Swift-Meds-sub000/internal/worker"
	"github.com/kekelo17/Swift-Meds-sub000/pkg/config"
	"github.com/kekelo17/Swift-Meds-sub000/pkg/database"
)

func main() {
	root := &cobra.Command{
		Use:           "swiftmeds-server",
		Short:         "SwiftMeds pharmacy reservation API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	// serve is the default when no subcommand is given
	root.RunE = serveCmd().RunE

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *database.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("applied %d migration(s)\n", n)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *database.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
				for _, s := range statuses {
					applied := "pending"
					if s.AppliedAt != nil {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%03d\t%s\t%s\n", s.Version, s.Name, applied)
				}
				return tw.Flush()
			})
		},
	})
	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *database.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewLogger(cfg.LogLevel)

	pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL, MaxOpenConns: 2}, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, database.NewMigrator(pool.GetDB(), database.Migrations(), log))
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting SwiftMeds server",
		slog.String("environment", cfg.Environment),
		slog.Any("flags", featureflags.Snapshot()),
	)

	// 2. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, "swiftmeds", cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// 3. Database
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	db := pool.GetDB()

	if cfg.MigrateOnStart {
		if _, err := database.NewMigrator(db, database.Migrations(), log).Up(ctx); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	// 4. Redis is optional; without it events stay on this instance
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	// 5. Change relay
	hub := realtime.NewHub(cfg.RelayBuffer, log)
	var events domain.EventPublisher = hub
	if redisClient != nil {
		bridge := realtime.NewBridge(hub, redisClient, log)
		events = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay bridge stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// 6. Repositories
	store := repository.NewStore(db, log)
	users := repository.NewUserRepository(db, log)
	profiles := repository.NewProfileRepository(db, log)
	pharmacyRepo := repository.NewPharmacyRepository(db, log)
	medicationRepo := repository.NewMedicationRepository(db, log)
	inventoryRepo := repository.NewInventoryRepository(db, log)
	reservationRepo := repository.NewReservationRepository(db, log)

	// 7. Services
	tokens := auth.NewTokenManager(cfg.JWTSecret, "swiftmeds")
	authService := service.NewAuthService(users, profiles, pharmacyRepo, store, tokens, cfg.TokenTTL, events, log)
	if redisClient != nil {
		authService.UseRevocationStore(redisClient)
	}
	inventoryService := service.NewInventoryService(inventoryRepo, pharmacyRepo, medicationRepo, events, log)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), events, log)
	reservationService := service.NewReservationService(reservationRepo, profiles, pharmacyRepo, medicationRepo,
		inventoryService, notificationService, store, events, cfg.ReservationTTL, log)

	// 8. Security components
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer rateLimiter.Stop()

	checks := map[string]handler.Pinger{"database": pool, "redis": nil}
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	// 9. HTTP routes
	api := handler.NewRouter(handler.Dependencies{
		Auth:             authService,
		Reservations:     reservationService,
		Pharmacies:       service.NewPharmacyService(pharmacyRepo, repository.NewReviewRepository(db), profiles, store, events, log),
		Inventory:        inventoryService,
		Medications:      service.NewMedicationService(medicationRepo, pharmacyRepo, log),
		Analytics:        service.NewAnalyticsService(reservationRepo, log),
		Notifications:    notificationService,
		Hub:              hub,
		Limiter:          rateLimiter,
		AuditLog:         audit.NewLogger(log),
		Checks:           checks,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowAdminSignup: cfg.AllowAdminSignup,
		Logger:           log,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", metrics.HTTPMetricsMiddleware(api))

	// request ID -> CORS -> tracing -> routes
	rootHandler := withRequestID(
		withCORS(cfg.CORSAllowedOrigins,
			otelhttp.NewHandler(mux, "swiftmeds"),
		),
		log,
	)

	// 10. Expiry worker
	go worker.NewExpiryWorker(reservationService, log, cfg.ExpirySweep).Start(ctx)

	// 11. HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("redis", redisClient != nil),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.Duration("reservation_ttl", cfg.ReservationTTL),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
	return nil
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func withCORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(allowed) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", allowed[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
