package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/config"
	httptransport "github.com/aicacia/go-auth/internal/http"
	"github.com/aicacia/go-auth/internal/http/handler"
	"github.com/aicacia/go-auth/internal/http/middleware"
	"github.com/aicacia/go-auth/internal/jwt"
	"github.com/aicacia/go-auth/internal/migrations"
	"github.com/aicacia/go-auth/internal/oauth2"
	"github.com/aicacia/go-auth/internal/repository"
	"github.com/aicacia/go-auth/internal/server"
	"github.com/aicacia/go-auth/internal/service"
	"github.com/aicacia/go-auth/internal/telemetry"
	"github.com/aicacia/go-auth/internal/tenant"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newTenantRepository,
			newUserRepository,
			newServiceAccountRepository,
			tenant.NewResolver,
			newCodec,
			service.NewAuthService,
			newPkceStore,
			newLinkFlow,
			handler.NewAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newTenantRepository(pool *pgxpool.Pool) repository.TenantRepository {
	return repository.NewPostgresTenantRepo(pool)
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newServiceAccountRepository(pool *pgxpool.Pool) repository.ServiceAccountRepository {
	return repository.NewPostgresServiceAccountRepo(pool)
}

func newCodec() *jwt.Codec {
	return jwt.NewCodec()
}

func newPkceStore(lc fx.Lifecycle, cfg config.Config) *oauth2.PkceStore {
	store := oauth2.NewPkceStore(cfg.PkceTTL)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			store.StartJanitor(cfg.PkceSweepInterval)
			return nil
		},
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})

	return store
}

func newLinkFlow(store *oauth2.PkceStore, cfg config.Config, logger *zap.Logger) *oauth2.LinkFlow {
	creds := make(map[string]oauth2.ProviderCredentials, len(cfg.OAuth2Providers))
	for name, provider := range cfg.OAuth2Providers {
		creds[name] = oauth2.ProviderCredentials{
			ClientID:     provider.ClientID,
			ClientSecret: provider.ClientSecret,
			RedirectURL:  fmt.Sprintf("%s/oauth2/%s/callback", cfg.OAuth2RedirectBase, name),
		}
	}
	return oauth2.NewLinkFlow(store, creds, logger)
}

func newAuthMiddleware(authService *service.AuthService) *middleware.Auth {
	return &middleware.Auth{AuthService: authService}
}

func runMigrations(cfg config.Config, logger *zap.Logger) error {
	if !cfg.RunMigrations {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := migrations.Run(ctx, cfg.DatabaseURL); err != nil {
		return err
	}
	logger.Info("database migrations applied")
	return nil
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
