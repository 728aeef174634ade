package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	httpapp "vidshare/internal/app/http"
	"vidshare/internal/config"
	authhttp "vidshare/internal/http/auth"
	"vidshare/internal/lib/jwt"
	"vidshare/internal/lib/logger/sl"
	"vidshare/internal/lib/password"
	"vidshare/internal/lib/throttle"
	"vidshare/internal/services/auth"
	"vidshare/internal/storage/memory"
	"vidshare/internal/storage/mongodb"
	"vidshare/internal/storage/sqlite"
)

const (
	driverMongo  = "mongodb"
	driverSQLite = "sqlite"
	driverMemory = "memory"
)

type App struct {
	HTTPSrv *httpapp.App

	logger  *slog.Logger
	timeout time.Duration
	closers []func(ctx context.Context) error
}

// New wires storage, codecs and the session manager into an HTTP app. It
// panics if any dependency cannot be built.
func New(logger *slog.Logger, cfg *config.Config) *App {
	a := &App{
		logger:  logger,
		timeout: cfg.HTTP.ShutdownTimeout,
	}

	storage := a.mustStorage(cfg.Storage)

	access, err := jwt.NewCodec(cfg.Tokens.Access.Secret, cfg.Tokens.Access.TTL)
	if err != nil {
		panic(fmt.Errorf("access token codec: %w", err))
	}
	refresh, err := jwt.NewCodec(cfg.Tokens.Refresh.Secret, cfg.Tokens.Refresh.TTL)
	if err != nil {
		panic(fmt.Errorf("refresh token codec: %w", err))
	}

	authService := auth.New(
		logger,
		storage,
		password.NewHasher(cfg.Password.Cost),
		access,
		refresh,
		a.loginThrottle(cfg.Throttle),
	)

	a.HTTPSrv = httpapp.New(logger, authService, httpapp.Config{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		CORSOrigin:   cfg.HTTP.CORSOrigin,
		Cookies: authhttp.CookiePolicy{
			Secure:     cfg.HTTP.Cookie.Secure,
			SameSite:   authhttp.ParseSameSite(cfg.HTTP.Cookie.SameSite),
			AccessTTL:  cfg.Tokens.Access.TTL,
			RefreshTTL: cfg.Tokens.Refresh.TTL,
		},
	})

	return a
}

func (a *App) mustStorage(cfg config.StorageConfig) auth.Storage {
	switch cfg.Driver {
	case driverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			panic(err)
		}
		a.closers = append(a.closers, s.Close)
		return s
	case driverSQLite:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			panic(err)
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		return s
	case driverMemory:
		return memory.New()
	}

	panic("unknown storage driver: " + cfg.Driver)
}

// loginThrottle returns nil when throttling is disabled. An unreachable
// Redis is only logged: the throttle fails open.
func (a *App) loginThrottle(cfg config.ThrottleConfig) auth.LoginThrottle {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis is unreachable, login throttle will fail open", sl.Err(err))
	}

	return throttle.New(client, cfg.MaxAttempts, cfg.Cooldown)
}

// Stop shuts the HTTP server down and releases storage connections.
func (a *App) Stop() {
	a.HTTPSrv.Stop(a.timeout)

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
}
