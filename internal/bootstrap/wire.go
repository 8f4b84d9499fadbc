package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/audit"
	"github.com/civitas-platform/identity-service/internal/config"
	"github.com/civitas-platform/identity-service/internal/directory"
	"github.com/civitas-platform/identity-service/internal/infrastructure/db/postgres"
	"github.com/civitas-platform/identity-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/civitas-platform/identity-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/civitas-platform/identity-service/internal/infrastructure/redis"
	"github.com/civitas-platform/identity-service/internal/infrastructure/security"
	"github.com/civitas-platform/identity-service/internal/logger"
	http_handlers "github.com/civitas-platform/identity-service/internal/transport/http/handlers"
	"github.com/civitas-platform/identity-service/internal/transport/http/middleware"
	"github.com/civitas-platform/identity-service/internal/transport/http/response"
	"github.com/civitas-platform/identity-service/internal/transport/http/router"
	"github.com/civitas-platform/identity-service/internal/transport/ws"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing.
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

	NewDB func(addr string, debug bool) (DBCloser, error)

	NewRedis func(addr, password string, db int) RedisClient

	NewPublisher func(rabbitURL string) (Publisher, error)

	NewDirectory func(cfg directory.Config) identity.Directory

	NewRouter func(router.Deps) (http.Handler, error)
}

type DBCloser interface {
	Close() error
}

type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

type Publisher interface{}

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

	// 1) db
	db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
	if err != nil {
		return nil, nil, err
	}

	cleanupFns := []func(){
		func() { _ = db.Close() },
	}

	sqlDB, ok := db.(*sql.DB)
	if !ok {
		runCleanup(cleanupFns)
		return nil, nil, errors.New("bootstrap: NewDB did not return *sql.DB")
	}

	userRepo := postgres.NewUserRepo(sqlDB)
	notifRepo := postgres.NewNotificationRepo(sqlDB)

	// 2) directory client
	dir := deps.NewDirectory(directory.Config{
		URL:            cfg.LDAPURL,
		BaseDN:         cfg.LDAPBaseDN,
		AdminDN:        cfg.LDAPAdminDN,
		AdminPassword:  cfg.LDAPAdminPassword,
		ConnectTimeout: cfg.LDAPConnectTimeout,
	})

	// 3) redis (best-effort)
	var redisCli RedisClient
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := c.Ping(ctx); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; sessions fall back to process memory")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 4) session store
	var sessionStore identity.SessionStore
	if redisCli != nil {
		sessionStore = redis.NewSessionStore(redisCli.(*redis.Client))
	} else {
		sessionStore = memory.NewSessionStore()
	}

	// 5) publisher
	var pub Publisher
	if cfg.RabbitURL != "" {
		pub, err = deps.NewPublisher(cfg.RabbitURL)
	} else {
		err = errors.New("no broker configured")
	}
	if err != nil {
		if cfg.Env == "dev" {
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
			pub = memory.NewNoopPublisher()
		} else {
			runCleanup(cleanupFns)
			return nil, nil, err
		}
	} else {
		if p, ok := pub.(*rabbitmq_pub.Publisher); ok && cfg.RabbitExchange != "" {
			p.WithExchange(cfg.RabbitExchange)
		}
	}

	if c, ok := pub.(interface{ Close() error }); ok {
		cleanupFns = append(cleanupFns, func() { _ = c.Close() })
	}

	// 6) security + audit
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)
	auditLog := audit.New(logger.Logger)

	// 7) service
	identitySvc := identity.NewService(
		userRepo,
		dir,
		signer,
		sessionStore,
		notifRepo,
		pub.(identity.EventPublisher),
		auditLog,
		logger.Logger,
		identity.Config{
			AccessTTL:            cfg.AccessTokenTTL,
			SessionTTL:           cfg.SessionTTL,
			PasswordResetTTL:     cfg.PasswordResetTokenTTL,
			PasswordResetBaseURL: cfg.PasswordResetBaseURL,
		},
	)

	// 8) handlers + middleware
	secureCookies := cfg.Env != "dev"

	identityH := http_handlers.NewIdentityHandler(identitySvc, cfg.SessionTTL, secureCookies)
	healthH := http_handlers.NewHealthHandler(sqlDB)
	adminH := http_handlers.NewAdminHomeHandler()

	bearerMW := middleware.BearerAuth(signer, response.WriteError)
	adminGuard := middleware.NewAdminGuard(sessionStore, userRepo, cfg.AdminLandingURL, logger.Logger)

	// rate limit (fail-open)
	var fwLimiter *redis.FixedWindowLimiter
	if redisCli != nil {
		fwLimiter = redis.NewFixedWindowLimiter(redisCli.(*redis.Client))
	}

	rl := func(key string, limit int, window time.Duration) func(http.Handler) http.Handler {
		if fwLimiter == nil {
			return nil
		}
		return middleware.RateLimitFixedWindow(
			fwLimiter,
			middleware.FixedWindowConfig{
				RouteKey: key,
				Limit:    limit,
				Window:   window,
			},
			response.WriteError,
		)
	}

	// 9) realtime gates
	publicGate := ws.NewGate(signer, userRepo, ws.Policy{RequireAuth: false}, logger.Logger)
	privateGate := ws.NewGate(signer, userRepo, ws.Policy{RequireAuth: true}, logger.Logger)

	// 10) router
	mux, err := deps.NewRouter(router.Deps{
		RequestIDMW: middleware.RequestID,

		Health:   healthH,
		Identity: identityH,
		Admin:    adminH,

		BearerMW:     bearerMW,
		SessionMW:    middleware.SessionAuth(sessionStore, response.WriteError),
		AdminGuardMW: adminGuard.Middleware,

		RLLogin:  rl("identity.login", 5, time.Minute),
		RLForgot: rl("identity.password.forgot", 3, 10*time.Minute),

		WSPublic:  publicGate.Handler(),
		WSPrivate: privateGate.Handler(),
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 11) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB: func(addr string, debug bool) (DBCloser, error) {
			return config.NewDB(addr, debug)
		},
		NewRedis: func(addr, password string, db int) RedisClient {
			return redis.New(addr, password, db)
		},
		NewPublisher: func(url string) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url)
		},
		NewDirectory: func(cfg directory.Config) identity.Directory {
			return directory.New(cfg, logger.Logger)
		},
		NewRouter: router.New,
	}
}
