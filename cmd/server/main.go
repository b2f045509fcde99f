package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webhook-events/internal/config"
	"github.com/webhook-events/internal/logging"
	"github.com/webhook-events/internal/pubsub"
	"github.com/webhook-events/internal/server"
	"github.com/webhook-events/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	slog.Info("starting", "http_addr", cfg.HTTPAddr, "store_driver", cfg.StoreDriver, "kafka_brokers", len(cfg.KafkaBrokers))

	ctx := context.Background()
	st, err := store.Connect(ctx, store.Options{
		Driver:         cfg.StoreDriver,
		URL:            cfg.DatabaseURL,
		ConnectTimeout: time.Duration(cfg.StoreConnectTimeoutSec) * time.Second,
	})
	if err != nil {
		// Degraded mode for the life of the process: writes are dropped, reads answer 500.
		slog.Warn("store unavailable, running without persistence", "driver", cfg.StoreDriver, "err", err)
	} else {
		slog.Info("store connected", "driver", cfg.StoreDriver)
	}
	defer st.Close()

	opts := server.Options{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		DashboardRefresh:  time.Duration(cfg.DashboardRefreshSec) * time.Second,
	}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := pubsub.NewProducer(pubsub.Options{
			Brokers:        cfg.KafkaBrokers,
			Topic:          cfg.KafkaTopic,
			ProduceTimeout: time.Duration(cfg.KafkaProduceTimeoutSec) * time.Second,
			SASLMechanism:  cfg.KafkaSASLMechanism,
			SASLUsername:   cfg.KafkaSASLUsername,
			SASLPassword:   cfg.KafkaSASLPassword,
		})
		if err != nil {
			slog.Error("kafka producer", "err", err)
			os.Exit(1)
		}
		defer prod.Close()
		opts.Publisher = prod
		slog.Info("kafka mirror enabled", "topic", cfg.KafkaTopic)
	}

	// HTTP server
	srv := server.NewServer(cfg.HTTPAddr, st, opts)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	slog.Info("shutting down", "signal", s.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "err", err)
	} else {
		slog.Info("http server stopped")
	}
}
