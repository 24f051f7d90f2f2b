package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/mongodb"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/email"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/logger"
	http_handlers "github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/handlers"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/response"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/router"
)

const startupTimeout = 10 * time.Second

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB   func(addr string, debug bool) (*sql.DB, error)
	Migrate func(ctx context.Context, db *sql.DB) error

	ConnectMongo func(ctx context.Context, uri string) (*mongo.Client, error)

	NewRedis func(addr, password string, db int) *redis.Client

	NewNotifier func(cfg *config.Config) (account.Notifier, func(), error)

	NewRouter func(router.Deps) (http.Handler, error)
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// 1) store
	store, checks, storeCleanup, err := openStore(ctx, deps, cfg)
	if err != nil {
		return fail(err)
	}
	cleanupFns = append(cleanupFns, storeCleanup)

	// 2) redis (best-effort; limiter fails open without it)
	var limiter *redis.FixedWindowLimiter
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(ctx); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; rate limiting disabled")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			limiter = redis.NewFixedWindowLimiter(c)
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) notifier
	notifier, notifierCleanup, err := deps.NewNotifier(cfg)
	if err != nil {
		if cfg.Env != "dev" {
			return fail(err)
		}
		logger.Logger.Warn().Err(err).Str("notifier", cfg.Notifier).Msg("notifier unavailable; codes will be logged")
		notifier, notifierCleanup = memory.NewLogNotifier(), func() {}
	}
	cleanupFns = append(cleanupFns, notifierCleanup)

	// 4) security
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)

	if cfg.SeedAdminEmail != "" {
		if err := SeedAdmin(ctx, store, hasher, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return fail(err)
		}
	}

	// 5) service
	svc := account.NewService(
		store,
		hasher,
		security.NewOTPGenerator(),
		notifier,
		signer,
		account.Config{TokenTTL: cfg.TokenTTL},
	).
		WithLogger(logger.Logger).
		WithAudit(audit.New(logger.Logger).Record)

	// 6) handlers + middleware
	accountH := http_handlers.NewAccountHandler(svc)
	healthH := http_handlers.NewHealthHandler(checks)

	authMW := middleware.Auth(signer, response.WriteError)
	adminMW := middleware.RequireAtLeast(string(domain.RoleAdmin), response.WriteError)

	var rl func(string) func(http.Handler) http.Handler
	if limiter != nil {
		rl = func(key string) func(http.Handler) http.Handler {
			return middleware.RateLimitFixedWindow(
				limiter,
				middleware.FixedWindowConfig{
					RouteKey: key,
					Limit:    cfg.RateLimitAuth,
					Window:   cfg.RateLimitWindow,
				},
				response.WriteError,
			)
		}
	}

	// 7) router
	mux, err := deps.NewRouter(router.Deps{
		Health:      healthH,
		Account:     accountH,
		RequestIDMW: middleware.RequestID,
		AuthMW:      authMW,
		AdminMW:     adminMW,
		RateLimit:   rl,
		Observe:     []func(http.Handler) http.Handler{middleware.Metrics, middleware.AccessLog},
	})
	if err != nil {
		return fail(err)
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { runCleanup(cleanupFns) })
	}

	return srv, cleanup, nil
}

// openStore connects the configured account store and returns its readiness checks.
func openStore(ctx context.Context, deps Deps, cfg *config.Config) (account.AccountStore, map[string]http_handlers.PingFunc, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.DBMigrate && deps.Migrate != nil {
			if err := deps.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		checks := map[string]http_handlers.PingFunc{"database": db.PingContext}
		return postgres.NewAccountStore(db), checks, func() { _ = db.Close() }, nil

	case config.StoreMongo:
		client, err := deps.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		closeClient := func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(c)
		}
		store := mongodb.NewAccountStore(client.Database(cfg.MongoDB))
		if err := store.EnsureIndexes(ctx); err != nil {
			closeClient()
			return nil, nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		checks := map[string]http_handlers.PingFunc{
			"database": func(ctx context.Context) error { return client.Ping(ctx, nil) },
		}
		return store, checks, closeClient, nil

	case config.StoreMemory:
		logger.Logger.Warn().Msg("using in-memory account store; data is lost on restart")
		return memory.NewAccountStore(), nil, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig:   config.Load,
		NewDB:        config.NewDB,
		Migrate:      postgres.Migrate,
		ConnectMongo: mongodb.Connect,
		NewRedis:     redis.New,
		NewNotifier:  newNotifier,
		NewRouter:    router.New,
	}
}

func newNotifier(cfg *config.Config) (account.Notifier, func(), error) {
	switch cfg.Notifier {
	case config.NotifierSMTP:
		n := email.NewSMTPNotifier(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.SMTP.Timeout,
			Insecure: cfg.SMTP.Insecure,
		}, logger.Logger)
		return n, func() {}, nil

	case config.NotifierRabbit:
		n, err := rabbitmq.NewNotifier(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { _ = n.Close() }, nil
	}
	return memory.NewLogNotifier(), func() {}, nil
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
