// Command user-api-svc serves the account credential API over HTTP.
//
// Configuration comes from the environment, an optional .env file and an
// optional YAML file:
//
//	user-api-svc -config config.yml -env .env
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/config"
	"github.com/LeeSeungPhill/user-api-svc/httpapi"
	"github.com/LeeSeungPhill/user-api-svc/logging"
	otelexport "github.com/LeeSeungPhill/user-api-svc/metrics/export/otel"
	promexport "github.com/LeeSeungPhill/user-api-svc/metrics/export/prometheus"
	"github.com/LeeSeungPhill/user-api-svc/store/memory"
	"github.com/LeeSeungPhill/user-api-svc/store/redisstore"
	"github.com/LeeSeungPhill/user-api-svc/store/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

const serviceName = "user-api-svc"

// backend is the store a process runs on.
type backend interface {
	usersvc.AccountStore
	usersvc.Ledger
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile = flag.String("config", "", "optional YAML config file")
		envFile    = flag.String("env", ".env", "optional .env file")
	)
	flag.Parse()

	cfg, err := config.Load(config.WithConfigFile(*configFile), config.WithEnvFile(*envFile))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Log, serviceName)
	if cfg.SecretGenerated {
		log.Warn().Msg("SECRET_KEY is not set; using a random secret, tokens will not survive a restart")
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()
	log.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	engine, err := usersvc.New().
		WithConfig(cfg.EngineConfig()).
		WithAccountStore(store).
		WithLogger(log).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	engineCfg := engine.Config()
	for _, w := range engineCfg.Lint() {
		log.Warn().Str("code", w.Code).Str("severity", w.Severity.String()).Msg(w.Message)
	}
	report := engine.SecurityReport()
	log.Info().
		Str("signing_algorithm", report.SigningAlgorithm).
		Dur("access_ttl", report.AccessTTL).
		Dur("refresh_ttl", report.RefreshTTL).
		Bool("lockout_active", report.LockoutActive).
		Bool("fingerprint_binding", report.FingerprintBindingEnabled).
		Bool("refresh_lockout_recheck", report.RefreshLockoutRecheck).
		Str("password_algorithm", report.Password.Algorithm).
		Msg("engine ready")

	if cfg.OTLP.Endpoint != "" {
		provider, err := otelexport.NewMeterProvider(ctx, otelexport.MeterConfig{
			ServiceName: serviceName,
			Endpoint:    cfg.OTLP.Endpoint,
			Insecure:    cfg.OTLP.Insecure,
			Interval:    cfg.OTLP.Interval,
		})
		if err != nil {
			return fmt.Errorf("init otlp metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown meter provider")
			}
		}()

		otelMetrics, err := otelexport.NewOTelExporter(otel.Meter(serviceName), engine)
		if err != nil {
			return fmt.Errorf("register otel metrics: %w", err)
		}
		defer func() { _ = otelMetrics.Close() }()
		log.Info().Str("endpoint", cfg.OTLP.Endpoint).Dur("interval", cfg.OTLP.Interval).Msg("otlp metrics enabled")
	}

	router := httpapi.NewRouter(engine, httpapi.Options{
		Logger:  log,
		CORS:    httpapi.CORSConfig{AllowedOrigins: cfg.HTTP.CORSAllowedOrigins},
		Metrics: promexport.NewPrometheusExporter(engine).Handler(),
		Health:  health,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore opens the configured backend and returns its health check and
// closer.
func openStore(ctx context.Context, cfg config.StoreConfig) (backend, func(context.Context) error, func() error, error) {
	switch cfg.Driver {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisstore.New(client, cfg.Redis.Prefix)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return store, store.Ping, client.Close, nil
	case config.StoreMemory:
		return memory.New(), nil, func() error { return nil }, nil
	default:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store.Ping, store.Close, nil
	}
}
