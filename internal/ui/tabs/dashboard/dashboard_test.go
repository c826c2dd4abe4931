package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credits-dashboard-tui/internal/app"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/credits"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
)

func runningSub(id int64, name string, credits float64) models.Subscription {
	return models.Subscription{
		ID:                   id,
		SubscriptionPlanName: name,
		CurrentCredits:       credits,
		ResetTimes:           2,
		IsActive:             true,
		SubscriptionStatus:   models.StatusActive,
		SubscriptionPlan:     models.SubscriptionPlan{CreditLimit: 100, PlanType: "MONTHLY"},
	}
}

func newLoadedModel(t *testing.T, subs ...models.Subscription) *Model {
	t.Helper()
	state := app.NewState()
	state.SetLoading(app.ResourceInitial, false)
	state.SetSnapshot(&credits.Snapshot{Subscriptions: subs}, credits.Stats{
		Subscriptions: len(subs),
		TotalCredits:  50,
		TotalLimit:    100,
	})
	m := New(state, app.NewCommands(nil), time.Hour)
	m.SetSize(120, 80)
	return m
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_Init(t *testing.T) {
	m := New(app.NewState(), nil, 0)
	if m.Init() == nil {
		t.Error("Init returned nil")
	}
}

func TestModel_ViewLoading(t *testing.T) {
	m := New(app.NewState(), nil, 0)
	m.SetSize(80, 24)
	if view := m.View(); !strings.Contains(view, "Loading subscriptions") {
		t.Error("initial view should show the loading spinner")
	}
}

func TestModel_ViewEmpty(t *testing.T) {
	m := newLoadedModel(t)
	if view := m.View(); !strings.Contains(view, "No subscriptions found") {
		t.Error("empty view should explain that no subscriptions exist")
	}
}

func TestModel_ViewSubscriptions(t *testing.T) {
	paused := runningSub(3, "OLD", 0)
	paused.IsActive = false

	m := newLoadedModel(t, runningSub(1, "PRO", 30), runningSub(2, "MAX", 80), paused)
	m.state.SetProjections(map[int64]*models.CreditProjection{
		1: {
			Status:    models.ProjectionCritical,
			Rate:      12.5,
			HoursLeft: 2.4,
			NextReset: time.Now().Add(3 * time.Hour),
		},
	})
	m.state.SetSchedulerStatus(scheduler.Status{Enabled: true})

	view := m.View()
	for _, want := range []string{"PRO", "MAX", "Not running", "CRITICAL", "12.5/hr", "30.00 / 100.00", "2 reset(s) left"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestModel_Navigation(t *testing.T) {
	m := newLoadedModel(t, runningSub(1, "A", 10), runningSub(2, "B", 20), runningSub(3, "C", 30))

	tests := []struct {
		key    tea.KeyMsg
		wantID int64
	}{
		{keyRune('j'), 2},
		{keyRune('j'), 3},
		{keyRune('j'), 1},
		{keyRune('k'), 3},
		{keyRune('g'), 1},
		{keyRune('G'), 3},
	}

	for _, tt := range tests {
		_, cmd := m.Update(tt.key)
		if cmd == nil {
			t.Fatalf("key %q should emit a selection change", tt.key.String())
		}
		msg, ok := cmd().(app.SelectedSubscriptionChangedMsg)
		if !ok {
			t.Fatalf("expected SelectedSubscriptionChangedMsg after %q", tt.key.String())
		}
		if msg.ID != tt.wantID {
			t.Errorf("after %q selected %d, want %d", tt.key.String(), msg.ID, tt.wantID)
		}
	}
}

func TestModel_ResetConfirmation(t *testing.T) {
	m := newLoadedModel(t, runningSub(1, "PRO", 30))

	m.Update(keyRune('x'))
	if m.pendingReset == nil {
		t.Fatal("x should ask for confirmation")
	}
	if view := m.View(); !strings.Contains(view, "Reset credits of PRO") {
		t.Error("view should show the confirmation prompt")
	}

	m.Update(keyRune('n'))
	if m.pendingReset != nil {
		t.Error("n should cancel the reset")
	}

	m.Update(keyRune('x'))
	m.Update(keyRune('y'))
	if m.pendingReset != nil {
		t.Error("y should clear the prompt")
	}
}

func TestModel_Animation(t *testing.T) {
	m := newLoadedModel(t, runningSub(1, "PRO", 40))
	start := time.Now()

	if !m.syncAnimationTargets(start) {
		t.Fatal("new bars should animate")
	}
	m.stepAnimations(start.Add(time.Second))
	mid := m.animations[animationKey(1)].CurrentPercent
	if mid <= 0 || mid >= 40 {
		t.Errorf("mid-animation percent = %v, want between 0 and 40", mid)
	}

	m.stepAnimations(start.Add(2 * time.Second))
	if got := m.displayPercent(runningSub(1, "PRO", 40)); got != 40 {
		t.Errorf("final percent = %v, want 40", got)
	}
	if m.syncAnimationTargets(start.Add(2 * time.Second)) {
		t.Error("finished bars should not animate")
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), nil, 0)
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}
