// nbserver is a JSON API companion for a newsboat cache database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"nbserver/internal/config"
	"nbserver/internal/database"
	"nbserver/internal/enrich"
	"nbserver/internal/logging"
	"nbserver/internal/server"
)

// Version is set at build time.
var Version = "dev"

func main() {
	var (
		configPath string
		dbPath     string
		addr       string
	)

	rootCmd := &cobra.Command{
		Use:     "nbserver",
		Short:   "JSON API over a newsboat cache database",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, dbPath, addr)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to configuration file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the newsboat cache database (overrides config)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath, addr string) error {
	// Local .env overrides are optional.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	log := logging.New(cfg.Logging.Level)

	// Failing to open the cache is the one fatal startup error.
	store, err := database.New(cfg.Database.Path, log)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()
	log.Info("cache opened", "path", cfg.Database.Path)

	dearrow := enrich.NewDeArrowClient(
		cfg.DeArrow.BaseURL,
		cfg.DeArrow.Workers,
		cfg.DeArrow.RequestTimeout,
		cfg.DeArrow.BatchTimeout,
		log,
	)

	srv := server.New(store, dearrow, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
