package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"entcal/internal/capture"
	"entcal/internal/ics"
	appLog "entcal/internal/log"
	"entcal/internal/web"
)

var (
	icsOutput      string
	snapshotOutput string
)

var icsCmd = &cobra.Command{
	Use:   "ics <kind> <id>",
	Short: "Export one month as an iCalendar feed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runICS(args)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <kind> <id>",
	Short: "Capture the month page of a running server as PNG",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshot(args)
	},
}

func init() {
	icsCmd.Flags().StringVar(&monthFlag, "month", "", "Month to export (YYYY-MM); defaults to the current month")
	icsCmd.Flags().StringVarP(&icsOutput, "output", "o", "", "Write the feed to this file instead of stdout")
	icsCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "Overall timeout including retries")
	snapshotCmd.Flags().StringVar(&monthFlag, "month", "", "Month to capture (YYYY-MM); defaults to the current month")
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "preview.png", "PNG output path")

	rootCmd.AddCommand(icsCmd, snapshotCmd)
}

func runICS(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, fetchTimeout)
	defer timeoutCancel()

	vm, err := loadMonth(ctx, args)
	if err != nil {
		return err
	}

	cfg := loader.Config()
	opts := ics.FeedOptions{
		Name:     string(vm.Kind()) + " " + vm.EntityID() + " " + vm.Window().Label(),
		Timezone: cfg.Location().String(),
		BaseURL:  cfg.PublicURL,
	}
	if icsOutput == "" {
		return ics.Write(os.Stdout, vm.Entries(), opts)
	}

	f, err := os.Create(icsOutput)
	if err != nil {
		return err
	}
	if err := ics.Write(f, vm.Entries(), opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("ics feed written", "path", icsOutput, "event_count", len(vm.Entries()))
	return nil
}

func runSnapshot(args []string) error {
	cfg := loader.Config()
	kind, id, err := parseTarget(args)
	if err != nil {
		return err
	}
	if monthFlag != "" {
		if _, err := monthCursor(monthFlag, cfg.Location()); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := capture.CaptureOptions{
		URL:     web.PageURL(cfg.PublicURL, kind, id, monthFlag),
		Width:   cfg.Capture.Width,
		Height:  cfg.Capture.Height,
		Timeout: cfg.Capture.Timeout,
	}
	if cfg.BasicAuth != nil {
		opts.Username = cfg.BasicAuth.Username
		opts.Password = cfg.BasicAuth.Password
	}
	if err := capture.CaptureMonthToFile(ctx, opts, snapshotOutput); err != nil {
		return fmt.Errorf("snapshot %s: %w", opts.URL, err)
	}
	appLog.Info("snapshot written", "path", snapshotOutput, "url", opts.URL)
	return nil
}
