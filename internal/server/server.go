package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/handler"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	middlWre "github.com/Nzyazin/cryptovault/internal/core/middleware"
	"github.com/Nzyazin/cryptovault/internal/core/repository"
	"github.com/Nzyazin/cryptovault/internal/core/repository/memory"
	"github.com/Nzyazin/cryptovault/internal/core/repository/postgres"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
	"github.com/Nzyazin/cryptovault/pkg/config"
	"github.com/Nzyazin/cryptovault/pkg/postgresdb"
	"github.com/gorilla/mux"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

type Server struct {
	router     *mux.Router
	log        logger.Logger
	cfg        *config.ServerConfig
	httpServer *http.Server
	pinger     func(ctx context.Context) error
	closers    []func() error
}

// NewServer builds the storage and event backends named by cfg and wires the
// HTTP API on top of them.
func NewServer(cfg *config.ServerConfig, log logger.Logger) (*Server, error) {
	var (
		store   repository.Store
		closers []func() error
		pinger  func(ctx context.Context) error
	)

	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("Using in-memory storage, balances are lost on restart")
		store = memory.NewStore()
	default:
		cfgDB, err := config.LoadConfigDB()
		if err != nil {
			return nil, err
		}

		db, err := postgresdb.NewPostgresDB(*cfgDB, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}

		store = postgres.NewStore(db.DB, log, postgres.WithRetry(cfg.TxRetryAttempts, cfg.TxRetryDelay))
		closers = append(closers, db.Close)
		pinger = db.PingContext
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			_ = rdb.Close()
			return nil, fmt.Errorf("error connecting to redis: %w", err)
		}

		pub = events.NewRedisPublisher(rdb, cfg.RedisChannel, log)
		closers = append(closers, rdb.Close)
		log.Info("Publishing events to redis",
			logger.StringField("addr", cfg.RedisAddr),
			logger.StringField("channel", cfg.RedisChannel))
	}

	s := New(cfg, store, pub, log)
	s.closers = closers
	s.pinger = pinger
	return s, nil
}

// New wires the HTTP API over an existing store and publisher.
func New(cfg *config.ServerConfig, store repository.Store, pub events.Publisher, log logger.Logger) *Server {
	walletUsecase := usecase.NewWalletUsecase(store, pub, log)
	transactionUsecase := usecase.NewTransactionUsecase(store, pub, log)
	swapUsecase := usecase.NewSwapUsecase(store, pub, log)
	addressUsecase := usecase.NewAddressUsecase(store, log)

	server := &Server{
		log:    log,
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	registry := promclient.NewRegistry()
	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{Registry: registry}),
	})

	server.router.Use(
		middlWre.WithErrorHandler(server.log),
		middlWre.Recovery(server.log),
		loggingMiddleware(server.log),
		func(next http.Handler) http.Handler {
			return std.Handler("", mw, next)
		},
	)

	server.router.Handle("/metrics", promhttp.HandlerFor(
		promclient.Gatherers{promclient.DefaultGatherer, registry},
		promhttp.HandlerOpts{},
	)).Methods(http.MethodGet)
	server.router.HandleFunc("/healthz", server.health).Methods(http.MethodGet)
	server.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	api := server.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middlWre.Authenticate([]byte(cfg.JWTSecret), log))

	handler.NewWalletHandler(walletUsecase, transactionUsecase, addressUsecase, log).RegisterRoutes(api)
	handler.NewSwapHandler(swapUsecase, log).RegisterRoutes(api)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middlWre.RequireAdmin(log))
	handler.NewAdminHandler(walletUsecase, transactionUsecase, addressUsecase, log).RegisterRoutes(admin)

	return server
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger(ctx); err != nil {
			s.log.Error("Health check failed", logger.ErrorField("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) RunTLS(certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		defer close(done)

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		for _, c := range s.closers {
			if err := c(); err != nil {
				s.log.Error("failed to close backend", logger.ErrorField("error", err))
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("backend shutdown error: %w", err))
			}
		}
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
				logger.StringField("duration", time.Since(start).String()),
			)
		})
	}
}
