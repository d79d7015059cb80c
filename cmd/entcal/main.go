package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"entcal/internal/backend"
	"entcal/internal/cache"
	"entcal/internal/calendar"
	"entcal/internal/config"
	"entcal/internal/gateway"
	appLog "entcal/internal/log"
	"entcal/internal/model"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	verbose    bool

	// loader is set by PersistentPreRunE for every subcommand.
	loader *config.Loader
)

var rootCmd = &cobra.Command{
	Use:   "entcal",
	Short: "Monthly event calendars for artists, venues and promoters",
	Long: `entcal serves month calendars of artists, venues and promoters from a
Supabase (or Postgres) backend: a JSON API, an HTML month page, ICS feeds,
PNG previews and a terminal browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := config.NewLoader(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg := l.Config()
		applyLogging(cfg)
		if err := config.Validate(cfg); err != nil {
			return err
		}
		loader = l
		appLog.Debug("config loaded", "path", configPath, "driver", cfg.Backend.Driver, "timezone", cfg.Timezone)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLog.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/entcal/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyLogging(cfg *config.Config) {
	appLog.Configure(cfg.LogJSON)
	if verbose {
		appLog.SetLevel(appLog.LevelDebug)
		return
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// openGateway wires the configured backend, month cache and gateway. The
// returned cleanup stops background fetches and releases the backend.
func openGateway(cfg *config.Config) (*gateway.Gateway, func(), error) {
	src, closeSrc, err := backend.Open(backend.Options{
		Driver:   cfg.Backend.Driver,
		URL:      cfg.Backend.URL,
		APIKey:   cfg.Backend.APIKey,
		Timeout:  cfg.Backend.Timeout,
		Location: cfg.Location(),
	})
	if err != nil {
		return nil, nil, err
	}

	c := gateway.NewMonthCache(cache.Options{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	gw := gateway.New(src, c, gateway.Options{
		Retry: gateway.RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
		Dedupe: cfg.DedupeEnabled(),
	})

	cleanup := func() {
		gw.Close()
		if err := closeSrc(); err != nil {
			appLog.Error("backend close failed", err)
		}
	}
	return gw, cleanup, nil
}

func newNormalizer(cfg *config.Config) *calendar.Normalizer {
	n := calendar.NewNormalizer(cfg.Location())
	n.Fallback = cfg.Fallback()
	return n
}

// parseTarget parses the <kind> <id> positional arguments.
func parseTarget(args []string) (model.EntityKind, string, error) {
	kind, err := model.ParseEntityKind(args[0])
	if err != nil {
		return "", "", err
	}
	if args[1] == "" {
		return "", "", fmt.Errorf("entity id is required")
	}
	return kind, args[1], nil
}

// monthCursor parses a --month flag value (YYYY-MM); empty means the
// current month in loc.
func monthCursor(v string, loc *time.Location) (time.Time, error) {
	now := time.Now().In(loc)
	if v == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(model.MonthLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--month %q: want YYYY-MM", v)
	}
	return t, nil
}
