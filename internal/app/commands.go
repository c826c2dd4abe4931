package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/services"
)

const (
	tickInterval = time.Second

	// commandTimeout bounds API calls started from the UI.
	commandTimeout = 30 * time.Second
)

// toastDurations is how long each kind of toast stays up.
var toastDurations = map[NotificationType]time.Duration{
	NotificationSuccess: 5 * time.Second,
	NotificationError:   10 * time.Second,
	NotificationWarning: 5 * time.Second,
	NotificationInfo:    3 * time.Second,
}

func defaultTickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return TickMsg{Time: t} })
}

// loadInitialData returns a command that reads what the services already hold.
func loadInitialData(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return InitialDataMsg{
			Snapshot:  mgr.Snapshot(),
			Stats:     mgr.Stats(),
			Settings:  mgr.Settings().Get(),
			Scheduler: mgr.SchedulerStatus(),
			Usage:     mgr.Usage(),
		}
	}
}

// refreshSubscriptionsCmd returns a command that fetches subscriptions.
func refreshSubscriptionsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		err := mgr.Refresh(ctx)
		return SnapshotLoadedMsg{Snapshot: mgr.Snapshot(), Stats: mgr.Stats(), Error: err}
	}
}

// refreshUsageCmd returns a command that fetches the usage trend.
func refreshUsageCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		mgr.RefreshUsage(ctx)
		return UsageUpdatedMsg{Usage: mgr.Usage()}
	}
}

// resetSubscriptionCmd returns a command that resets one subscription.
func resetSubscriptionCmd(mgr *services.Manager, sub models.Subscription) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		err := mgr.ResetSubscription(ctx, sub.ID)
		return ResetResultMsg{ID: sub.ID, Name: sub.DisplayName(), Error: err}
	}
}

// toggleAutoResetCmd returns a command that flips autoResetWhenZero.
func toggleAutoResetCmd(mgr *services.Manager, sub models.Subscription) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		err := mgr.ToggleAutoReset(ctx, sub.ID)
		return AutoResetToggledMsg{
			ID:      sub.ID,
			Name:    sub.DisplayName(),
			Enabled: !sub.AutoResetWhenZero,
			Error:   err,
		}
	}
}

// toggleWindowCmd returns a command that flips one reset window.
func toggleWindowCmd(mgr *services.Manager, index int) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Settings().ToggleWindow(index)
		return SettingsSavedMsg{Action: "window toggled", Error: err}
	}
}

// setScheduledResetCmd returns a command that switches the reset engine.
func setScheduledResetCmd(mgr *services.Manager, enabled bool) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Settings().SetScheduledResetEnabled(enabled)
		action := "scheduled reset disabled"
		if enabled {
			action = "scheduled reset enabled"
		}
		return SettingsSavedMsg{Action: action, Error: err}
	}
}

// setAutoRefreshCmd returns a command that switches background polling.
func setAutoRefreshCmd(mgr *services.Manager, enabled bool) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Settings().SetAutoRefresh(enabled)
		action := "auto refresh disabled"
		if enabled {
			action = "auto refresh enabled"
		}
		return SettingsSavedMsg{Action: action, Error: err}
	}
}

// checkScheduleCmd returns a command that asks the scheduler to re-evaluate.
func checkScheduleCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		mgr.CheckSchedule()
		return SchedulerUpdatedMsg{Status: mgr.SchedulerStatus()}
	}
}

// loadLoginInfoCmd returns a command that validates the token.
func loadLoginInfoCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		info, err := mgr.LoginInfo(ctx)
		return LoginInfoMsg{Info: info, Error: err}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg { return RemoveNotificationMsg{ID: id} })
}

func notify(kind NotificationType, message string) tea.Cmd {
	d := toastDurations[kind]
	return func() tea.Msg {
		return AddNotificationMsg{Type: kind, Message: message, Duration: d}
	}
}

func notifySuccessCmd(message string) tea.Cmd { return notify(NotificationSuccess, message) }
func notifyErrorCmd(message string) tea.Cmd   { return notify(NotificationError, message) }
func notifyWarningCmd(message string) tea.Cmd { return notify(NotificationWarning, message) }
func notifyInfoCmd(message string) tea.Cmd    { return notify(NotificationInfo, message) }

// Commands gives tabs access to the manager-backed commands.
type Commands struct {
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager) *Commands {
	return &Commands{manager: mgr}
}

// Available reports whether a service manager is attached.
func (c *Commands) Available() bool {
	return c != nil && c.manager != nil
}

// ResetSubscription returns a command that resets one subscription.
func (c *Commands) ResetSubscription(sub models.Subscription) tea.Cmd {
	if !c.Available() {
		return nil
	}
	return tea.Batch(
		func() tea.Msg { return StartLoadingMsg{Resource: ResourceReset} },
		resetSubscriptionCmd(c.manager, sub),
	)
}

// ToggleAutoReset returns a command that flips autoResetWhenZero.
func (c *Commands) ToggleAutoReset(sub models.Subscription) tea.Cmd {
	if !c.Available() {
		return nil
	}
	return toggleAutoResetCmd(c.manager, sub)
}

// ToggleWindow returns a command that flips one reset window.
func (c *Commands) ToggleWindow(index int) tea.Cmd {
	if !c.Available() {
		return nil
	}
	return toggleWindowCmd(c.manager, index)
}

// SetScheduledReset returns a command that switches the reset engine.
func (c *Commands) SetScheduledReset(enabled bool) tea.Cmd {
	if !c.Available() {
		return nil
	}
	return setScheduledResetCmd(c.manager, enabled)
}

// SetAutoRefresh returns a command that switches background polling.
func (c *Commands) SetAutoRefresh(enabled bool) tea.Cmd {
	if !c.Available() {
		return nil
	}
	return setAutoRefreshCmd(c.manager, enabled)
}

// CheckSchedule returns a command that asks the scheduler to re-evaluate.
func (c *Commands) CheckSchedule() tea.Cmd {
	if !c.Available() {
		return nil
	}
	return checkScheduleCmd(c.manager)
}

// LoadLoginInfo returns a command that validates the token.
func (c *Commands) LoadLoginInfo() tea.Cmd {
	if !c.Available() {
		return nil
	}
	return loadLoginInfoCmd(c.manager)
}

// LoadCreditHistory returns a command that reads credit snapshots of a
// subscription since the given time.
func (c *Commands) LoadCreditHistory(id int64, since time.Time, wrap func([]models.CreditSnapshot, error) tea.Msg) tea.Cmd {
	if !c.Available() {
		return nil
	}
	mgr := c.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return wrap(mgr.CreditHistory(ctx, id, since))
	}
}

// NotifyError returns a command that shows an error toast. It works without
// a manager.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

func describeError(context string, err error) string {
	return fmt.Sprintf("%s: %v", context, err)
}
