package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gatewatch/internal/archive"
	"github.com/alfredjeanlab/gatewatch/internal/config"
	"github.com/alfredjeanlab/gatewatch/internal/events"
	"github.com/alfredjeanlab/gatewatch/internal/server"
	"github.com/alfredjeanlab/gatewatch/internal/store"
	"github.com/alfredjeanlab/gatewatch/internal/store/memory"
	"github.com/alfredjeanlab/gatewatch/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the gate server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't build a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		// A missing .env is fine; the environment may already be set.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to load .env", "err", err)
		}

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		clock := clockwork.NewRealClock()

		// Open the store.
		var st store.Store
		switch cfg.Store {
		case config.StoreMemory:
			st = memory.New(clock)
			logger.Warn("using the in-memory store; gates are lost on restart")
		default:
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			st = pg
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (GATES_NATS_URL not set)")
		}

		// Create server components.
		gateServer := server.NewGateServer(st, publisher, clock, cfg.Policy())
		if err := gateServer.Start(context.Background(), cfg.GuardIdleTimeout); err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		grpcServer, healthServer := server.NewGRPCServer(logger.With("component", "grpc"))

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			gateServer.Stop()
			publisher.Close()
			st.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: gateServer.NewHTTPHandler(),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the archive scheduler if a bucket is configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			s3Dest, err := archive.NewS3Destination(
				context.Background(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Prefix,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 archive destination", "err", err)
			} else {
				scheduler = archive.NewScheduler(st, []archive.Destination{s3Dest}, cfg.ArchiveInterval, clock,
					logger.With("component", "archive"))
				scheduler.Start()
				logger.Info("archive scheduler started",
					"interval", cfg.ArchiveInterval,
					"bucket", cfg.ArchiveS3Bucket,
					"prefix", cfg.ArchiveS3Prefix)
			}
		}

		logger.Info("gate server started",
			"store", cfg.Store,
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"arrival_window", cfg.ArrivalWindow,
			"departure_window", cfg.DepartureWindow,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		healthServer.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		gateServer.Stop()
		logger.Info("timers stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
