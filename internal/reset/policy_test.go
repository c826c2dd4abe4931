package reset

import (
	"slices"
	"strings"
	"testing"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

func subscription(credits, limit float64, resets int) *models.Subscription {
	return &models.Subscription{
		ID:                 1,
		CurrentCredits:     credits,
		ResetTimes:         resets,
		IsActive:           true,
		SubscriptionStatus: models.StatusActive,
		SubscriptionPlan:   models.SubscriptionPlan{CreditLimit: limit},
	}
}

func TestPolicy_NeverResetsFullSubscriptions(t *testing.T) {
	p := DefaultPolicy()
	for _, id := range []string{"00:00", "18:55", "23:55"} {
		for _, resets := range []int{0, 1, 2, 5} {
			d := p.Evaluate(subscription(100, 100, resets), id)
			if d.ShouldReset {
				t.Errorf("window %s resets %d: full subscription would be reset", id, resets)
			}
		}
	}
}

func TestPolicy_NeverResetsWithoutBudget(t *testing.T) {
	p := DefaultPolicy()
	for _, id := range []string{"18:55", "23:55"} {
		for _, resets := range []int{0, -1} {
			d := p.Evaluate(subscription(10, 100, resets), id)
			if d.ShouldReset {
				t.Errorf("window %s resets %d: exhausted subscription would be reset", id, resets)
			}
			if d.Reason != ReasonNoResetsLeft {
				t.Errorf("reason = %q, want %q", d.Reason, ReasonNoResetsLeft)
			}
		}
	}
}

func TestPolicy_Reservation(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name   string
		resets int
		window string
		want   bool
		reason string
	}{
		{"EarlyWithSpare", 2, "18:55", true, "maximize window usage"},
		{"EarlyReserves", 1, "18:55", false, ReasonReservedNight},
		{"LateFallback", 1, "23:55", true, "fallback"},
		{"LateWithSpare", 2, "23:55", true, "fallback"},
		{"OtherWindow", 2, "12:00", false, ReasonOutsideWindows},
		{"SameHourOtherMinute", 2, "23:00", false, ReasonOutsideWindows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Evaluate(subscription(50, 100, tt.resets), tt.window)
			if d.ShouldReset != tt.want {
				t.Errorf("ShouldReset = %v, want %v", d.ShouldReset, tt.want)
			}
			if !strings.Contains(d.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to mention %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestPolicy_Scenario(t *testing.T) {
	p := DefaultPolicy()
	sub := subscription(30, 100, 2)

	d := p.Evaluate(sub, "18:55")
	if !d.ShouldReset || !strings.Contains(d.Reason, "maximize window usage") {
		t.Errorf("18:55: got %+v", d)
	}

	d = p.Evaluate(sub, "23:55")
	if !d.ShouldReset || !strings.Contains(d.Reason, "fallback") {
		t.Errorf("23:55: got %+v", d)
	}

	d = p.Evaluate(subscription(100, 100, 2), "18:55")
	if d.ShouldReset || !strings.Contains(d.Reason, "already full") {
		t.Errorf("full at 18:55: got %+v", d)
	}
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		name    string
		windows []Window
		late    string
		early   []string
	}{
		{
			name: "mixed",
			windows: []Window{
				{Hour: 23, Minute: 55, SpanMinutes: 5, Enabled: true},
				{Hour: 12, Minute: 0, SpanMinutes: 5, Enabled: true},
				{Hour: 18, Minute: 55, SpanMinutes: 5, Enabled: true},
				{Hour: 20, Minute: 0, SpanMinutes: 5, Enabled: false},
			},
			late:  "23:55",
			early: []string{"12:00", "18:55"},
		},
		{
			name:    "single",
			windows: []Window{{Hour: 18, Minute: 55, Enabled: true}},
			late:    "18:55",
		},
		{
			name: "same hour",
			windows: []Window{
				{Hour: 23, Minute: 0, SpanMinutes: 5, Enabled: true},
				{Hour: 23, Minute: 55, SpanMinutes: 5, Enabled: true},
			},
			late:  "23:55",
			early: []string{"23:00"},
		},
		{
			name:    "none enabled",
			windows: []Window{{Hour: 18, Minute: 55}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PolicyFor(tt.windows)
			if p.Late != tt.late {
				t.Errorf("Late = %q, want %q", p.Late, tt.late)
			}
			if !slices.Equal(p.Early, tt.early) {
				t.Errorf("Early = %v, want %v", p.Early, tt.early)
			}
		})
	}
}

func TestPolicyFor_SameHourKeepsFallbackReset(t *testing.T) {
	p := PolicyFor([]Window{
		{Hour: 23, Minute: 0, SpanMinutes: 5, Enabled: true},
		{Hour: 23, Minute: 55, SpanMinutes: 5, Enabled: true},
	})
	sub := subscription(10, 100, 1)

	if d := p.Evaluate(sub, "23:00"); d.ShouldReset || d.Reason != ReasonReservedNight {
		t.Errorf("23:00 with one reset = %+v, want reserved", d)
	}
	if d := p.Evaluate(sub, "23:55"); !d.ShouldReset {
		t.Errorf("23:55 with one reset = %+v, want fallback reset", d)
	}
}

func TestPolicy_NoWindows(t *testing.T) {
	d := PolicyFor(nil).Evaluate(subscription(10, 100, 3), "")
	if d.ShouldReset || d.Reason != ReasonOutsideWindows {
		t.Errorf("Evaluate with no windows = %+v", d)
	}
}
