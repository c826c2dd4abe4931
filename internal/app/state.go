// Package app is the root Bubble Tea model: tab routing, shared state,
// toasts and the commands tabs use to reach the services.
package app

import (
	"maps"
	"sync"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/services"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/credits"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/settings"
)

// Loading resources.
const (
	ResourceInitial       = "initial"
	ResourceSubscriptions = "subscriptions"
	ResourceUsage         = "usage"
	ResourceReset         = "reset"
)

// loadingOrder lists resources in the order they are reported.
var loadingOrder = []string{ResourceInitial, ResourceSubscriptions, ResourceUsage, ResourceReset}

// State is the data shared by all tabs. It is written from the root model
// and read from tab views.
type State struct {
	lastUpdated   time.Time
	snapshot      *credits.Snapshot
	login         *models.LoginInfo
	projections   map[int64]*models.CreditProjection
	settings      *settings.Settings
	usage         services.UsageUpdatedEvent
	scheduler     scheduler.Status
	toasts        toasts
	stats         credits.Stats
	loading       map[string]bool

	selectedIndex int
	mu            sync.RWMutex
}

// NewState creates the shared state with the initial loading flag set.
func NewState() *State {
	return &State{
		snapshot:      &credits.Snapshot{},
		projections:   make(map[int64]*models.CreditProjection),
		loading:     map[string]bool{ResourceInitial: true},
	}
}

// SetLoading marks resource as loading or done.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		s.loading[resource] = true
	} else {
		delete(s.loading, resource)
	}
}

// IsLoading reports whether resource is loading.
func (s *State) IsLoading(resource string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[resource]
}

// AnyLoading reports whether anything is loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.loading) > 0
}

// IsInitialLoading reports whether the first snapshot is still missing.
func (s *State) IsInitialLoading() bool {
	return s.IsLoading(ResourceInitial)
}

// GetLoadingResources lists the known resources being loaded.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	for _, r := range loadingOrder {
		if s.loading[r] {
			resources = append(resources, r)
		}
	}
	return resources
}

// SetSnapshot stores the latest subscription snapshot and clamps the
// selection to the new list.
func (s *State) SetSnapshot(snap *credits.Snapshot, stats credits.Stats) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snap
	s.stats = stats
	s.lastUpdated = time.Now()

	if n := len(snap.Subscriptions); s.selectedIndex >= n {
		s.selectedIndex = max(n-1, 0)
	}
}

// Snapshot returns the latest subscription snapshot.
func (s *State) Snapshot() *credits.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Subscriptions returns a copy of the subscription list.
func (s *State) Subscriptions() []models.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]models.Subscription, len(s.snapshot.Subscriptions))
	copy(subs, s.snapshot.Subscriptions)
	return subs
}

// SubscriptionCount returns the number of subscriptions.
func (s *State) SubscriptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot.Subscriptions)
}

// SelectedSubscription returns the subscription under the cursor.
func (s *State) SelectedSubscription() (models.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selectedIndex < 0 || s.selectedIndex >= len(s.snapshot.Subscriptions) {
		return models.Subscription{}, false
	}
	return s.snapshot.Subscriptions[s.selectedIndex], true
}

// GetStats returns the aggregates of the latest snapshot.
func (s *State) GetStats() credits.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// SetProjections replaces the depletion projections.
func (s *State) SetProjections(projections map[int64]*models.CreditProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projections = maps.Clone(projections)
	if s.projections == nil {
		s.projections = make(map[int64]*models.CreditProjection)
	}
}

// GetProjection returns the projection of one subscription.
func (s *State) GetProjection(id int64) *models.CreditProjection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projections[id]
}

// SetSchedulerStatus stores the latest scheduler status.
func (s *State) SetSchedulerStatus(st scheduler.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler = st
}

// GetSchedulerStatus returns the latest scheduler status.
func (s *State) GetSchedulerStatus() scheduler.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}

// SetSettings stores the latest settings.
func (s *State) SetSettings(st settings.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := st.Clone()
	s.settings = &clone
}

// GetSettings returns the latest settings; ok is false before the first load.
func (s *State) GetSettings() (settings.Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return settings.Settings{}, false
	}
	return s.settings.Clone(), true
}

// SetUsage stores the usage trend.
func (s *State) SetUsage(usage services.UsageUpdatedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = usage
}

// GetUsage returns the usage trend.
func (s *State) GetUsage() services.UsageUpdatedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

// SetLogin stores the account the token belongs to.
func (s *State) SetLogin(info *models.LoginInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = info
}

// GetLogin returns the account the token belongs to, if known.
func (s *State) GetLogin() *models.LoginInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.login
}

// AddNotification queues a toast and returns its ID. A zero duration keeps
// it until removed.
func (s *State) AddNotification(kind NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toasts.add(kind, message, duration, time.Now())
}

// RemoveNotification drops a toast by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts.remove(id)
}

// ClearExpiredNotifications drops toasts past their duration.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = s.toasts.live(time.Now())
}

// GetNotifications returns the toasts that have not expired.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toasts.live(time.Now()).items
}

// SetLoadingNotification shows message in the single loading toast.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts.setLoading(message, time.Now())
}

// ClearLoadingNotification removes the loading toast.
func (s *State) ClearLoadingNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts.remove(LoadingNotificationID)
}

// GetLastUpdated returns the last time the subscriptions were updated.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// GetSelectedIndex returns the currently selected subscription index.
func (s *State) GetSelectedIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedIndex
}

// SetSelectedIndex updates the selected subscription index.
func (s *State) SetSelectedIndex(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedIndex = idx
}
