package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/j-veylop/credits-dashboard-tui/internal/db"
	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/settings"
)

func windowsCmd() *cobra.Command {
	var clearMarker bool
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "Print the configured reset windows and the next one due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := settings.New(cfg.SettingsPath)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			defer svc.Close()

			database, err := db.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			guard := scheduler.NewGuard(database)
			if clearMarker {
				if err := guard.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("failed to clear execution marker: %w", err)
				}
				fmt.Fprintln(out, "Execution marker cleared")
			}

			now := time.Now()
			st := svc.Get()
			processed := false
			if res := reset.Resolve(now, st.ScheduledReset.Windows); res.Active != nil {
				if processed, err = guard.Done(cmd.Context(), *res.Active); err != nil {
					return fmt.Errorf("failed to read execution marker: %w", err)
				}
			}
			printWindows(out, st, now, processed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearMarker, "reset-marker", false,
		"forget the last processed window so an open window is processed again")
	return cmd
}

// printWindows renders the window table. processed marks the open window as
// already handled.
func printWindows(w io.Writer, st settings.Settings, now time.Time, processed bool) {
	windows := st.ScheduledReset.Windows
	res := reset.Resolve(now, windows)

	t := table.New().Headers("#", "WINDOW", "OPENS", "CLOSES", "RESETS", "STATUS")
	for i, win := range windows {
		status := "disabled"
		switch {
		case win.Validate() != nil:
			status = "invalid: " + win.Validate().Error()
		case !win.Enabled:
		case res.Active != nil && res.Active.Index == i && processed:
			status = "open, processed"
		case res.Active != nil && res.Active.Index == i:
			status = "open"
		case res.Next != nil && res.Next.Index == i:
			status = "next"
		default:
			status = "enabled"
		}

		opens, closes := "-", "-"
		if win.Validate() == nil {
			target := win.Target(now)
			opens = target.Add(-win.Lead()).Format("15:04")
			closes = target.Add(win.Span()).Format("15:04")
		}
		t.Row(strconv.Itoa(i), win.ID(), opens, closes, strconv.Itoa(win.RequiredResets), status)
	}
	fmt.Fprintln(w, t.Render())

	engine := "enabled"
	if !st.ScheduledReset.Enabled {
		engine = "disabled"
	}
	fmt.Fprintf(w, "Scheduled reset: %s\n", engine)

	switch {
	case res.Active != nil:
		fmt.Fprintf(w, "Window %s is open until %s\n", res.Active.Window.ID(), res.Active.End.Format(time.DateTime))
		if processed {
			fmt.Fprintln(w, "Already processed; run with --reset-marker to process it again")
		}
	case res.Next != nil:
		fmt.Fprintf(w, "Next window: %s at %s (in %s)\n",
			res.Next.Window.ID(), res.Next.Target.Format(time.DateTime), res.Next.Target.Sub(now).Round(time.Second))
	default:
		fmt.Fprintln(w, "No enabled windows")
	}
}
