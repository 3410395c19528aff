package cmd

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmarlow/keepsync/api"
	"github.com/jmarlow/keepsync/config"
	"github.com/jmarlow/keepsync/crypto"
	"github.com/jmarlow/keepsync/storage"
	bboltstorage "github.com/jmarlow/keepsync/storage/bbolt"
	"github.com/jmarlow/keepsync/storage/postgres"
)

var (
	serverAddr    string
	serverBackend string
	dataDir       string
	databaseURL   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sync service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		// Flags win over the environment.
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serverAddr
		}
		if cmd.Flags().Changed("backend") {
			cfg.Backend = config.Backend(serverBackend)
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		if cmd.Flags().Changed("database-url") {
			cfg.DatabaseURL = databaseURL
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		chain, err := crypto.LoadChain(cfg.ServerSecrets, cfg.DataDir, logger)
		if err != nil {
			return fmt.Errorf("failed to load server secrets: %w", err)
		}

		a := api.New(store, chain,
			api.WithLogger(logger),
			api.WithBodyLimit(cfg.BodyLimit),
			api.WithAlertFunc(func(ev api.AlertEvent) {
				logger.Warn("auth anomaly detected",
					"type", string(ev.Type), "count", ev.Count, "threshold", ev.Threshold)
			}),
		)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on %s (backend: %s, data: %s)...\n", cfg.Addr, cfg.Backend, cfg.DataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL, postgres.Options{
			PoolSize:       cfg.PoolSize,
			ConnectTimeout: cfg.ConnectTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxRetries:     cfg.MaxConnRetries,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, nil
	case config.BackendBBolt:
		store, err := bboltstorage.NewStore(cfg.DataDir+"/sync.db", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open sync storage: %w", err)
		}
		return store, nil
	default:
		return nil, &config.Error{Key: "KEEPSYNC_BACKEND", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&serverAddr, "addr", config.DefaultAddr, "Address to listen on")
	serverCmd.Flags().StringVar(&serverBackend, "backend", string(config.BackendBBolt), "Storage backend (bbolt or postgres)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir, "Directory for persistent data")
	serverCmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection URL")
}
