package main

import (
	"context"

	"github.com/spf13/cobra"

	"entcal/internal/capture"
	"entcal/internal/config"
	appLog "entcal/internal/log"
	"entcal/internal/model"
	"entcal/internal/prewarm"
	"entcal/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service and the cache prewarm schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := loader.Config()
	appLog.Info("entcal starting",
		"version", version,
		"listen", cfg.Listen,
		"driver", cfg.Backend.Driver,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"watch_count", len(cfg.Watch),
	)

	ctx, cancel := signalContext()
	defer cancel()

	gw, cleanup, err := openGateway(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := prewarm.New(func(ctx context.Context, key model.Key) error {
		_, err := gw.Refresh(ctx, key)
		return err
	}, loader.Config)
	if err := runner.Start(ctx, cfg.RefreshCron, cfg.Location()); err != nil {
		return err
	}
	defer runner.Stop()

	// Warm the cache right away instead of waiting for the first tick.
	go func() {
		if err := runner.RunOnce(ctx); err != nil {
			appLog.Error("initial prewarm had failures", err)
		}
	}()

	stopWatch, err := loader.Watch()
	if err != nil {
		appLog.Error("config hot reload disabled", err, "path", configPath)
	} else {
		defer stopWatch()
	}

	current := cfg
	loader.OnChange(func(next *config.Config) {
		applyLogging(next)
		if next.RefreshCron != current.RefreshCron || next.Timezone != current.Timezone {
			runner.Stop()
			if err := runner.Start(ctx, next.RefreshCron, next.Location()); err != nil {
				appLog.Error("prewarm reschedule failed", err, "refresh", next.RefreshCron)
			}
		}
		if next.Backend != current.Backend || next.Cache.TTL != current.Cache.TTL {
			appLog.Warn("backend and cache settings apply after restart")
		}
		current = next
	})

	capOpts := capture.CaptureOptions{
		Width:   cfg.Capture.Width,
		Height:  cfg.Capture.Height,
		Timeout: cfg.Capture.Timeout,
	}
	if cfg.BasicAuth != nil {
		capOpts.Username = cfg.BasicAuth.Username
		capOpts.Password = cfg.BasicAuth.Password
	}

	srv := web.NewServer(web.Options{
		Config:   loader.Config,
		Loader:   gw,
		Capturer: capture.Chromium{Options: capOpts},
	})
	if err := web.Serve(ctx, srv); err != nil {
		appLog.Error("HTTP server failed", err)
		return err
	}
	appLog.Info("entcal exiting")
	return nil
}
