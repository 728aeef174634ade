package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	authhttp "vidshare/internal/http/auth"
	"vidshare/internal/lib/logger/sl"
)

// bodyLimit matches the JSON body limit of the public API.
const bodyLimit = 20 << 20

type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigin   string
	Cookies      authhttp.CookiePolicy
}

type App struct {
	logger *slog.Logger
	server *http.Server
}

func New(
	logger *slog.Logger,
	authService authhttp.Auth,
	cfg Config,
) *App {
	mux := http.NewServeMux()
	authhttp.Register(mux, logger, authService, cfg.Cookies)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	handler := authhttp.Chain(mux,
		authhttp.RequestID,
		authhttp.Logger(logger),
		authhttp.Recoverer(logger),
		authhttp.CORS(cfg.CORSOrigin),
		authhttp.LimitBody(bodyLimit),
	)

	return &App{
		logger: logger,
		server: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Handler exposes the fully wrapped handler, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "httpapp.Run"

	log := a.logger.With(
		slog.String("op", op),
		slog.String("address", a.server.Addr),
	)

	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("http server is running", slog.String("address", listener.Addr().String()))

	if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stop waits for in-flight requests up to timeout, then closes the server.
func (a *App) Stop(timeout time.Duration) {
	const op = "httpapp.Stop"

	log := a.logger.With(slog.String("op", op))
	log.Info("stopping http server", slog.String("address", a.server.Addr))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
		_ = a.server.Close()
	}
}
