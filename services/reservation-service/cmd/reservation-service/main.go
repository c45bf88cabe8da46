package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/manphil/backoffice/libs/config"
	"github.com/manphil/backoffice/libs/db"
	"github.com/manphil/backoffice/libs/httpx"
	"github.com/manphil/backoffice/libs/kafkax"
	otelx "github.com/manphil/backoffice/libs/otel"
	"github.com/manphil/backoffice/libs/runtime"
	"github.com/manphil/backoffice/services/reservation-service/internal/audit"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/handlers"
	"github.com/manphil/backoffice/services/reservation-service/internal/imports"
	"github.com/manphil/backoffice/services/reservation-service/internal/migrate"
	"github.com/manphil/backoffice/services/reservation-service/internal/outbox"
	"github.com/manphil/backoffice/services/reservation-service/internal/reservations"
	"github.com/manphil/backoffice/services/reservation-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// newLimiter prefers the shared Redis limiter and falls back to a per-process one.
func newLimiter(logger *slog.Logger, perMinute int) (httpx.Limiter, *redis.Client) {
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		logger.Info("REDIS_ADDR not set; using in-memory rate limiter")
		return httpx.NewRateLimiter(perMinute, time.Minute, httpx.ClientKey), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	return httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "reservation-service:rl", httpx.ClientKey), rdb
}

func main() {
	service := config.String("SERVICE_NAME", "reservation-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		applied, err := migrate.Up(ctx, pool)
		if err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied", "count", len(applied), "files", applied)
	}

	repo := storage.NewReservationRepository(pool)
	outboxRepo := outbox.NewRepository()
	auditRepo := audit.NewRepository(pool)

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	limiter, rdb := newLimiter(logger, config.Int("RATE_LIMIT_PER_MINUTE", 120))
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)

	defaultGrace := time.Duration(config.Float("DEFAULT_GRACE_PERIOD_HOURS", 0) * float64(time.Hour))
	handlers.Register(mux, handlers.Routes{
		Availability: handlers.NewAvailabilityHandler(availability.NewChecker(repo), defaultGrace, logger),
		Reservations: handlers.NewReservationHandler(
			reservations.NewService(repo, outboxRepo, auditRepo, logger),
			repo,
			imports.NewImporter(repo, outboxRepo, auditRepo, logger),
			logger,
		),
		Audit:     handlers.NewAuditHandler(auditRepo, logger),
		JWTSecret: jwtSecret,
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second)),
		httpx.WithRateLimit(limiter, true, func(err error) {
			logger.Warn("rate limiter unavailable", "err", err)
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "reservation")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
	}
}
