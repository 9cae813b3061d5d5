package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"go-shop-admin/internal/config"
	"go-shop-admin/internal/database"
	"go-shop-admin/internal/event"
	"go-shop-admin/internal/handler"
	"go-shop-admin/internal/mail"
	"go-shop-admin/internal/metrics"
	"go-shop-admin/internal/middleware"
	"go-shop-admin/internal/oauth"
	"go-shop-admin/internal/repository"
	"go-shop-admin/internal/repository/memory"
	"go-shop-admin/internal/router"
	"go-shop-admin/internal/service"
)

// Stores groups the persistence backends the services run on.
type Stores struct {
	Users       service.UserStore
	Roles       service.RoleStore
	Permissions service.PermissionStore
	Orders      service.OrderStore
	Audit       service.AuditStore
}

func MemoryStores() Stores {
	store := memory.New()
	return Stores{Users: store, Roles: store, Permissions: store, Orders: store, Audit: store}
}

func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Users:       repository.NewUserRepository(pool),
		Roles:       repository.NewRoleRepository(pool),
		Permissions: repository.NewPermissionRepository(pool),
		Orders:      repository.NewOrderRepository(pool),
		Audit:       repository.NewAuditRepository(pool),
	}
}

// Components is the wired service graph behind the HTTP server.
type Components struct {
	Handler http.Handler
	Bus     *event.InMemoryBus
	Audit   *service.AuditService

	closers []func()
}

// Close releases connections opened by Build.
func (c *Components) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}

// Build seeds the stores and wires every service, handler and middleware.
// db may be nil when the process runs on the in-memory store.
func Build(ctx context.Context, cfg *config.Config, stores Stores, db handler.Pinger) (*Components, error) {
	if err := service.Bootstrap(ctx, stores.Users, stores.Roles, stores.Permissions, service.BootstrapConfig{
		DefaultRole:   cfg.DefaultRole,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		AdminHandle:   cfg.AdminHandle,
		BcryptCost:    cfg.BcryptCost,
	}); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	components := &Components{Bus: event.NewBus()}

	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, service.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	access := service.NewAccessStore(stores.Roles, stores.Permissions)
	var invalidator service.Invalidator
	if cfg.PermissionCacheTTL > 0 {
		cached := service.NewCachedAccessStore(access, cfg.PermissionCacheSize, cfg.PermissionCacheTTL)
		access, invalidator = cached, cached
	}
	resolver := service.NewPermissionResolver(access)

	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		slog.Warn("SMTP_HOST not set; verification codes are written to the log")
	}

	states, closeStates, err := newStateStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeStates != nil {
		components.closers = append(components.closers, closeStates)
	}

	authService := service.NewAuthService(stores.Users, stores.Roles, tokens, resolver, mailer, components.Bus, service.AuthConfig{
		BcryptCost:  cfg.BcryptCost,
		CodeTTL:     cfg.VerificationCodeTTL,
		DefaultRole: cfg.DefaultRole,
	})
	federatedService := service.NewFederatedService(stores.Users, stores.Roles, tokens, components.Bus, cfg.DefaultRole)
	userService := service.NewUserService(stores.Users, stores.Roles, components.Bus, cfg.BcryptCost)
	roleService := service.NewRoleService(stores.Roles, stores.Permissions, invalidator, components.Bus)
	permissionService := service.NewPermissionService(stores.Permissions, invalidator, components.Bus)
	orderService := service.NewOrderService(stores.Orders, components.Bus)
	components.Audit = service.NewAuditService(stores.Audit, stores.Users)

	authMiddleware := middleware.NewAuthMiddleware(tokens, authService, resolver)

	components.Handler = router.New(cfg, authMiddleware, router.Handlers{
		Health:     handler.NewHealthHandler(db),
		Auth:       handler.NewAuthHandler(authService),
		OAuth:      handler.NewOAuthHandler(newProviders(ctx, cfg), states, federatedService),
		User:       handler.NewUserHandler(userService),
		Role:       handler.NewRoleHandler(roleService),
		Permission: handler.NewPermissionHandler(permissionService),
		Order:      handler.NewOrderHandler(orderService),
		Audit:      handler.NewAuditHandler(components.Audit),
	})

	return components, nil
}

func newProviders(ctx context.Context, cfg *config.Config) *oauth.Registry {
	var providers []oauth.Provider
	if cfg.GoogleEnabled() {
		providers = append(providers, oauth.NewGoogleProvider(ctx, oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}))
	}
	if cfg.FacebookEnabled() {
		providers = append(providers, oauth.NewFacebookProvider(oauth.FacebookConfig{
			ClientID:     cfg.FacebookClientID,
			ClientSecret: cfg.FacebookClientSecret,
			RedirectURL:  cfg.FacebookRedirectURL,
		}))
	}

	registry := oauth.NewRegistry(providers...)
	slog.Info("identity providers configured", "providers", registry.Names())
	return registry
}

func newStateStore(ctx context.Context, cfg *config.Config) (oauth.StateStore, func(), error) {
	if cfg.RedisURL == "" {
		return oauth.NewMemoryStateStore(cfg.OAuthStateTTL), nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	slog.Info("oauth state store: redis", "addr", opts.Addr)
	return oauth.NewRedisStateStore(client, cfg.OAuthStateTTL), func() { _ = client.Close() }, nil
}

type App struct {
	server       *http.Server
	cancel       context.CancelFunc
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	stores := MemoryStores()
	var (
		db      *database.DB
		pinger  handler.Pinger
		cleanup []func()
	)

	if cfg.DatabaseURL != "" {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		slog.Info("connecting to PostgreSQL")
		var err error
		db, err = database.New(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		stores = PostgresStores(db.Pool)
		pinger = db
		cleanup = append(cleanup, db.Close)
	} else {
		slog.Warn("DATABASE_URL not set; using the in-memory store, data is lost on restart")
	}

	components, err := Build(ctx, cfg, stores, pinger)
	if err != nil {
		for _, fn := range cleanup {
			fn()
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	go components.Audit.Run(runCtx, components.Bus)
	go metrics.CountEvents(runCtx, components.Bus)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           components.Handler,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		cancel:       cancel,
		cleanupFuncs: append([]func(){components.Close}, cleanup...),
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// Subscribers stop before the stores they write to are closed.
	a.cancel()
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
