package app

import (
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/services"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/credits"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/settings"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// InitialDataMsg carries everything the services hold at startup.
type InitialDataMsg struct {
	Snapshot  *credits.Snapshot
	Settings  settings.Settings
	Usage     services.UsageUpdatedEvent
	Scheduler scheduler.Status
	Stats     credits.Stats
}

// SnapshotLoadedMsg contains the latest subscription snapshot.
type SnapshotLoadedMsg struct {
	Snapshot *credits.Snapshot
	Error    error
	Stats    credits.Stats
}

// ProjectionsUpdatedMsg signals new depletion projections.
type ProjectionsUpdatedMsg struct {
	Projections map[int64]*models.CreditProjection
}

// SchedulerUpdatedMsg signals a scheduler state change.
type SchedulerUpdatedMsg struct {
	Status scheduler.Status
}

// UsageUpdatedMsg signals a new usage trend.
type UsageUpdatedMsg struct {
	Usage services.UsageUpdatedEvent
}

// SettingsUpdatedMsg signals that settings were loaded or edited.
type SettingsUpdatedMsg struct {
	Settings settings.Settings
}

// ResetResultMsg contains the result of a manual reset.
type ResetResultMsg struct {
	Error error
	Name  string
	ID    int64
}

// AutoResetToggledMsg contains the result of an autoResetWhenZero toggle.
type AutoResetToggledMsg struct {
	Error   error
	Name    string
	ID      int64
	Enabled bool
}

// SettingsSavedMsg contains the result of a settings edit.
type SettingsSavedMsg struct {
	Error  error
	Action string
}

// LoginInfoMsg contains the account the token belongs to.
type LoginInfoMsg struct {
	Info  *models.LoginInfo
	Error error
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// SelectedSubscriptionChangedMsg signals that the cursor moved to another
// subscription.
type SelectedSubscriptionChangedMsg struct {
	Index int
	ID    int64
}
