package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkayan/warden/config"
	"github.com/getkayan/warden/internal/api"
	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/flow"
	"github.com/getkayan/warden/internal/health"
	"github.com/getkayan/warden/internal/logger"
	"github.com/getkayan/warden/internal/notify"
	"github.com/getkayan/warden/internal/persistence"
	"github.com/getkayan/warden/internal/revocation"
	"github.com/getkayan/warden/internal/session"
	"github.com/getkayan/warden/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel, !cfg.IsProduction())
	defer logger.Log.Sync()

	logger.Log.Info("Starting Warden",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("environment", cfg.Environment),
		zap.String("db_type", cfg.DBType),
		zap.String("kv_backend", cfg.KVBackend),
	)

	repo, err := persistence.Open(cfg.DBType, cfg.DSN, &gorm.Config{
		Logger: persistence.NewLogger(logger.Named("gorm")),
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	checks := health.NewManager(cfg.Version,
		health.WithTimeout(3*time.Second),
		health.WithLogger(logger.Named("health")),
	)
	checks.Register(health.NewPingChecker("database", repo.Ping))

	var kv domain.KeyValueStore
	switch cfg.KVBackend {
	case "memory":
		kv = revocation.NewMemoryStore(time.Minute)
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		store := revocation.NewRedisStore(client, "")
		checks.Register(health.NewPingChecker("redis", store.Ping))
		kv = store
	}
	revoked := revocation.NewStore(kv,
		revocation.WithBlacklistTTL(cfg.BlacklistTTL),
		revocation.WithResetTokenTTL(cfg.ResetTokenTTL),
	)

	metrics, err := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "warden",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Enabled:        cfg.MetricsEnabled,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TraceSamplingRate,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize metrics", zap.Error(err))
	}

	hasher, err := flow.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		logger.Log.Fatal("failed to initialize password hasher", zap.Error(err))
	}

	codec, err := session.NewHMACCodec(cfg.JWTAlgorithm, cfg.JWTSecretKey, cfg.AccessTokenLifetime())
	if err != nil {
		logger.Log.Fatal("failed to initialize token codec", zap.Error(err))
	}

	var notifier domain.Notifier
	if cfg.SMTPHost == "" {
		logger.Log.Warn("SMTP_HOST not set, emails will only be logged")
		notifier = notify.NewLogNotifier(logger.Named("notify"), cfg.ResetLinkBase)
	} else {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			Username:      cfg.SMTPUsername,
			Password:      cfg.SMTPPassword,
			FromEmail:     cfg.SMTPFromEmail,
			FromName:      cfg.SMTPFromName,
			ResetLinkBase: cfg.ResetLinkBase,
			ResetTokenTTL: cfg.ResetTokenTTL,
		}, logger.Named("notify"))
	}

	users := repo.Users()
	sessions := session.NewManager(codec, revoked, users, session.WithLogger(logger.Named("session")))

	limiter := flow.NewKVRateLimiter(kv)
	limits := flow.RateLimitConfig{Limit: cfg.LoginRateLimit, Window: cfg.RateLimitWindow}

	regManager := flow.NewRegistrationManager(users, hasher)
	regManager.SetNotifier(notifier)
	regManager.SetMetrics(metrics)
	regManager.SetLogger(logger.Named("registration"))

	logManager := flow.NewLoginManager(users, hasher, sessions)
	logManager.SetMetrics(metrics)
	logManager.SetLogger(logger.Named("login"))
	logManager.SetRateLimit(limiter, limits)

	recManager := flow.NewRecoveryManager(users, revoked, hasher, notifier)
	recManager.SetMetrics(metrics)
	recManager.SetLogger(logger.Named("recovery"))
	recManager.SetRateLimit(limiter, limits)

	e := api.NewRouter(api.RouterConfig{
		Prefix:      cfg.APIPrefix,
		CORSOrigins: cfg.CORSOriginsList(),
		Logger:      logger.Named("http"),
		Auth:        api.NewHandler(regManager, logManager, recManager, sessions),
		Resources:   api.NewResourceHandler(users, repo.Templates(), hasher),
		Health:      checks,
		Metrics:     metrics.Handler(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Log.Info("Server is starting", zap.String("addr", cfg.ListenAddr()))
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown failed", zap.Error(err))
	}

	// Let queued emails finish before the process exits.
	regManager.Wait()
	recManager.Wait()

	if err := metrics.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("metrics shutdown failed", zap.Error(err))
	}
}
