package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"entcal/internal/model"
	"entcal/internal/tui"
	"entcal/internal/viewmodel"
)

var (
	monthFlag    string
	dayFlag      string
	jsonFlag     bool
	fetchTimeout time.Duration
)

var monthCmd = &cobra.Command{
	Use:   "month <kind> <id>",
	Short: "Print one month of an entity's calendar",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonth(args)
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse <kind> <id>",
	Short: "Browse an entity's calendar in the terminal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(args)
	},
}

func init() {
	monthCmd.Flags().StringVar(&monthFlag, "month", "", "Month to show (YYYY-MM); defaults to the current month")
	monthCmd.Flags().StringVar(&dayFlag, "day", "", "Also list every event of this date (YYYY-MM-DD)")
	monthCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print entries as JSON instead of a grid")
	monthCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "Overall timeout including retries")
	browseCmd.Flags().StringVar(&monthFlag, "month", "", "Month to open (YYYY-MM); defaults to the current month")

	rootCmd.AddCommand(monthCmd, browseCmd)
}

// loadMonth builds a view for the target and loads it synchronously.
func loadMonth(ctx context.Context, args []string) (*viewmodel.Month, error) {
	cfg := loader.Config()
	kind, id, err := parseTarget(args)
	if err != nil {
		return nil, err
	}
	cursor, err := monthCursor(monthFlag, cfg.Location())
	if err != nil {
		return nil, err
	}

	gw, cleanup, err := openGateway(cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	vm := viewmodel.New(kind, id, cursor, viewmodel.Options{Location: cfg.Location()})
	vm.Apply(viewmodel.Fetch(ctx, gw, newNormalizer(cfg), vm.Load()))
	if vm.State() == viewmodel.Failed {
		return vm, fmt.Errorf("%s: %w", vm.Message(), vm.Err())
	}
	return vm, nil
}

func runMonth(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, fetchTimeout)
	defer timeoutCancel()

	vm, err := loadMonth(ctx, args)
	if err != nil {
		return err
	}
	if dayFlag != "" {
		d, err := time.ParseInLocation(model.DateLayout, dayFlag, loader.Config().Location())
		if err != nil {
			return fmt.Errorf("--day %q: want YYYY-MM-DD", dayFlag)
		}
		vm.SelectDay(d)
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(vm.Entries())
	}

	st := tui.DefaultStyles()
	fmt.Print(tui.RenderGrid(vm.Grid(), st))
	if vm.State() == viewmodel.Empty {
		fmt.Println(vm.Message())
	}
	if sel := vm.Selected(); !sel.IsZero() {
		fmt.Println()
		fmt.Println(sel.Format("Monday, January 2"))
		fmt.Print(tui.RenderEntries(vm.SelectedEntries(), -1, st))
	}
	return nil
}

func runBrowse(args []string) error {
	cfg := loader.Config()
	kind, id, err := parseTarget(args)
	if err != nil {
		return err
	}
	cursor, err := monthCursor(monthFlag, cfg.Location())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	gw, cleanup, err := openGateway(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	vm := viewmodel.New(kind, id, cursor, viewmodel.Options{Location: cfg.Location()})
	return tui.Run(ctx, vm, gw, newNormalizer(cfg))
}
