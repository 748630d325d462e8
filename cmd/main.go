package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/server"
	"github.com/Nzyazin/cryptovault/pkg/config"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfigServer()
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	log, cleanup := logger.NewLogger(cfg.LogDir)
	defer cleanup()

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField("error", err))
		return
	}

	go func() {
		log.Info("Starting server",
			logger.StringField("addr", cfg.Addr),
			logger.StringField("storage", cfg.Storage),
			logger.AnyField("tls", cfg.TLSEnabled()))

		var err error
		if cfg.TLSEnabled() {
			err = srv.RunTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.Run()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", logger.ErrorField("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", logger.ErrorField("error", err))
	}

	log.Info("Server exited properly")
}
