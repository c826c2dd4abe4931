package app

import (
	"testing"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/credits"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/settings"
)

func testSnapshot(names ...string) *credits.Snapshot {
	snap := &credits.Snapshot{FetchedAt: time.Now()}
	for i, name := range names {
		snap.Subscriptions = append(snap.Subscriptions, models.Subscription{
			ID:                   int64(i + 1),
			SubscriptionPlanName: name,
			CurrentCredits:       50,
			SubscriptionPlan:     models.SubscriptionPlan{CreditLimit: 100},
		})
	}
	return snap
}

func TestNewState(t *testing.T) {
	s := NewState()
	if s == nil {
		t.Fatal("NewState returned nil")
	}
	if s.SubscriptionCount() != 0 {
		t.Error("subscriptions should be empty")
	}
	if !s.IsInitialLoading() {
		t.Error("Initial loading should be true")
	}
	if _, ok := s.GetSettings(); ok {
		t.Error("settings should not be loaded yet")
	}
}

func TestState_SetLoading(t *testing.T) {
	s := NewState()

	s.SetLoading(ResourceUsage, true)
	s.SetLoading(ResourceSubscriptions, true)
	if got := s.GetLoadingResources(); len(got) != 3 || got[1] != ResourceSubscriptions || got[2] != ResourceUsage {
		t.Errorf("GetLoadingResources() = %v, want initial, subscriptions, usage", got)
	}
	s.SetLoading(ResourceUsage, false)

	s.SetLoading(ResourceSubscriptions, false)
	if !s.AnyLoading() {
		t.Error("AnyLoading should be true (Initial is true)")
	}

	s.SetLoading(ResourceInitial, false)
	if s.AnyLoading() {
		t.Error("AnyLoading should be false")
	}
	if resources := s.GetLoadingResources(); len(resources) != 0 {
		t.Errorf("GetLoadingResources should be empty, got %v", resources)
	}

	s.SetLoading(ResourceReset, true)
	resources := s.GetLoadingResources()
	if len(resources) != 1 || resources[0] != ResourceReset {
		t.Errorf("GetLoadingResources should contain reset, got %v", resources)
	}

	s.SetLoading("unknown", true)
	if len(s.GetLoadingResources()) != 1 {
		t.Error("unknown resources should be ignored")
	}
}

func TestState_Snapshot(t *testing.T) {
	s := NewState()

	s.SetSnapshot(testSnapshot("PRO", "MAX"), credits.Stats{Subscriptions: 2})

	if s.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount = %d, want 2", s.SubscriptionCount())
	}
	if s.GetStats().Subscriptions != 2 {
		t.Error("stats should be stored")
	}
	if s.GetLastUpdated().IsZero() {
		t.Error("last updated should be set")
	}

	subs := s.Subscriptions()
	subs[0].SubscriptionPlanName = "changed"
	if s.Subscriptions()[0].SubscriptionPlanName != "PRO" {
		t.Error("Subscriptions should return a copy")
	}

	s.SetSnapshot(nil, credits.Stats{})
	if s.SubscriptionCount() != 2 {
		t.Error("nil snapshot should be ignored")
	}
}

func TestState_Selection(t *testing.T) {
	tests := []struct {
		name     string
		subs     []string
		selected int
		wantIdx  int
		wantOK   bool
	}{
		{"first", []string{"A", "B"}, 0, 0, true},
		{"last", []string{"A", "B"}, 1, 1, true},
		{"clamped after shrink", []string{"A"}, 3, 0, true},
		{"empty", nil, 2, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			s.SetSelectedIndex(tt.selected)
			s.SetSnapshot(testSnapshot(tt.subs...), credits.Stats{})

			if got := s.GetSelectedIndex(); got != tt.wantIdx {
				t.Errorf("GetSelectedIndex = %d, want %d", got, tt.wantIdx)
			}
			sub, ok := s.SelectedSubscription()
			if ok != tt.wantOK {
				t.Fatalf("SelectedSubscription ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && sub.SubscriptionPlanName != tt.subs[tt.wantIdx] {
				t.Errorf("selected %q, want %q", sub.SubscriptionPlanName, tt.subs[tt.wantIdx])
			}
		})
	}
}

func TestState_Projections(t *testing.T) {
	s := NewState()

	in := map[int64]*models.CreditProjection{1: {Status: models.ProjectionSafe}}
	s.SetProjections(in)
	delete(in, 1)

	if s.GetProjection(1) == nil {
		t.Error("projection should be stored as a copy")
	}

	s.SetProjections(nil)
	if s.GetProjection(1) != nil {
		t.Error("projections should be cleared")
	}
}

func TestState_SchedulerAndSettings(t *testing.T) {
	s := NewState()

	s.SetSchedulerStatus(scheduler.Status{State: scheduler.StateAwaitingWindow, Enabled: true})
	if got := s.GetSchedulerStatus(); got.State != scheduler.StateAwaitingWindow || !got.Enabled {
		t.Errorf("unexpected status %+v", got)
	}

	st := settings.Default()
	s.SetSettings(st)
	st.ScheduledReset.Windows[0].Hour = 3

	got, ok := s.GetSettings()
	if !ok {
		t.Fatal("settings should be loaded")
	}
	if got.ScheduledReset.Windows[0].Hour == 3 {
		t.Error("settings should be stored as a copy")
	}
}

func TestState_Login(t *testing.T) {
	s := NewState()
	if s.GetLogin() != nil {
		t.Error("login should be nil initially")
	}
	s.SetLogin(&models.LoginInfo{LoginName: "dev"})
	if s.GetLogin().LoginName != "dev" {
		t.Error("login should be stored")
	}
}

func TestState_Notifications(t *testing.T) {
	s := NewState()

	id := s.AddNotification(NotificationInfo, "Window 18:55 open", time.Minute)
	s.AddNotification(NotificationWarning, "sticky", 0)
	if got := len(s.GetNotifications()); got != 2 {
		t.Fatalf("notifications = %d, want 2", got)
	}

	s.RemoveNotification(id)
	notes := s.GetNotifications()
	if len(notes) != 1 || notes[0].Message != "sticky" {
		t.Errorf("after remove = %+v, want only the sticky toast", notes)
	}
}

func TestState_LoadingNotification(t *testing.T) {
	s := NewState()

	s.SetLoadingNotification("Loading...")
	s.SetLoadingNotification("Still loading...")

	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Fatalf("Should have 1 notification, got %d", len(notifs))
	}
	if notifs[0].Type != NotificationLoading || notifs[0].Message != "Still loading..." {
		t.Errorf("unexpected loading notification %+v", notifs[0])
	}

	s.ClearLoadingNotification()
	if len(s.GetNotifications()) != 0 {
		t.Error("loading notification should be removed")
	}
}

func TestState_LastUpdated(t *testing.T) {
	s := NewState()
	if !s.GetLastUpdated().IsZero() {
		t.Error("GetLastUpdated() should be zero before the first snapshot")
	}
	s.SetSnapshot(testSnapshot("A"), credits.Stats{})
	if s.GetLastUpdated().IsZero() {
		t.Error("GetLastUpdated() should be set by SetSnapshot")
	}
}
