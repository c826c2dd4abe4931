package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credits-dashboard-tui/internal/app"
	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/services"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/tabs/dashboard"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/tabs/history"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/tabs/info"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/tabs/schedule"
)

// runTUI runs the dashboard. Logs go to the log file so they do not
// corrupt the alternate screen.
func runTUI(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger.Init(logFile, cfg.LogLevel, cfg.LogFormat)

	mgr, err := services.NewManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	model := app.NewModel(mgr)
	state := model.GetState()
	commands := model.GetCommands()
	model.SetTabs([]app.Tab{
		dashboard.New(state, commands, cfg.ResetCooldown),
		schedule.New(state, commands),
		history.New(state, commands),
		info.New(state, commands, cfg, mgr.Tokens()),
	})

	mgr.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	logger.Info("dashboard started", "database", cfg.DatabasePath, "settings", cfg.SettingsPath)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
