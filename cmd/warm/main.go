package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fortuna/matatena/internal/app"
	"github.com/fortuna/matatena/internal/catalog"
	"github.com/fortuna/matatena/internal/config"
	"github.com/fortuna/matatena/internal/metrics"
	"github.com/fortuna/matatena/internal/service"
	"github.com/spf13/cobra"
)

const (
	appName    = "matatena-warm"
	appVersion = "1.0.0"
)

func main() {
	ctx, cancel := signalContext()
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "warm",
		Short:         "Pre-populate and inspect the game cache for BGG users",
		Version:       appVersion,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	newLogger := func(cfg config.Config) *slog.Logger {
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}

	root.AddCommand(&cobra.Command{
		Use:   "check <username>",
		Short: "Fetch a collection once and report how many games it holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg)

			client := catalog.New(catalog.Config{
				BaseURL:   cfg.CatalogBaseURL,
				UserAgent: cfg.UserAgent,
				APIKey:    cfg.APIKey,
				Timeout:   cfg.CatalogTimeout,
				Logger:    logger,
			})

			username := args[0]
			fmt.Fprintf(cmd.OutOrStdout(), "Fetching collection for %s...\n", username)
			items, err := client.FetchOwnedItems(cmd.Context(), username)
			return report(cmd, len(items), err)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "run <username>",
		Short: "Reconcile a whole collection into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg)
			logger.Info("starting", slog.String("app", appName), slog.String("version", appVersion))

			components, err := app.New(cmd.Context(), cfg, logger, metrics.NewRecorder())
			if err != nil {
				return err
			}
			defer components.Close()

			result, err := components.Collections.Warm(cmd.Context(), args[0])
			if err != nil {
				return report(cmd, 0, err)
			}

			stats := components.Engine.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Owned: %d, resolved: %d (cached: %d, new: %d, enrichment failures: %d, persist failures: %d)\n",
				result.Owned, result.Resolved, stats.CacheHits, stats.CacheMisses, stats.EnrichFailures, stats.PersistFailures)
			return nil
		},
	})

	return root
}

// report prints the outcome of a collection fetch the way an operator
// reads it
func report(cmd *cobra.Command, count int, err error) error {
	out := cmd.OutOrStdout()
	switch {
	case err == nil:
		fmt.Fprintf(out, "Successfully fetched %d items.\n", count)
		return nil
	case errors.Is(err, catalog.ErrRetryLater):
		fmt.Fprintln(out, "Request queued by BGG (202 Accepted). Try again later.")
		return nil
	case errors.Is(err, catalog.ErrNoSuchUser), errors.Is(err, service.ErrEmptyCollection):
		fmt.Fprintln(out, "No games found for this user.")
		return nil
	default:
		return fmt.Errorf("failed to fetch collection: %w", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
