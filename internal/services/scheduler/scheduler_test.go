package scheduler

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
)

var day = time.Date(2025, 3, 4, 0, 0, 0, 0, time.Local)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type harness struct {
	s      *Scheduler
	clock  *fakeClock
	alarms *fakeAlarms
	store  *memStore
	source *fakeSource
	tokens *fakeTokens
	exec   *fakeDispatcher
}

func newHarness(now time.Time, cfg Config) *harness {
	h := &harness{
		clock:  &fakeClock{now: now},
		alarms: &fakeAlarms{},
		store:  newMemStore(),
		source: &fakeSource{},
		tokens: &fakeTokens{},
		exec:   &fakeDispatcher{},
	}
	h.s = New(cfg, Deps{
		Source:   h.source,
		Tokens:   h.tokens,
		Executor: h.exec,
		Store:    h.store,
		Clock:    h.clock,
		Alarms:   h.alarms,
	})
	h.s.offset = func(time.Duration) time.Duration { return 0 }
	return h
}

func defaultConfig() Config {
	return Config{Windows: reset.DefaultWindows(), Enabled: true, CheckInterval: time.Hour}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.s.Start(context.Background())
	t.Cleanup(h.s.Stop)
	h.s.drain()
}

// advance moves the clock to now and fires every alarm due by then.
func (h *harness) advance(now time.Time) {
	h.clock.Set(now)
	h.alarms.fireDue(now)
	h.s.drain()
}

func (h *harness) check() {
	h.s.Check()
	h.s.drain()
}

func (h *harness) marker(t *testing.T) *Marker {
	t.Helper()
	m, err := NewGuard(h.store).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return m
}

func drainEvents(s *Scheduler) []Event {
	var out []Event
	for {
		select {
		case e := <-s.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestScheduler_AwaitsNextWindow(t *testing.T) {
	h := newHarness(at(12, 0), defaultConfig())
	h.start(t)

	st := h.s.Status()
	if st.State != StateAwaitingWindow {
		t.Fatalf("State = %v, want awaiting", st.State)
	}
	if st.Next == nil || st.Next.Key() != "18:55@2025-03-04" {
		t.Errorf("Next = %+v", st.Next)
	}
	if got := h.alarms.armed(); len(got) != 1 || !got[0].Equal(at(18, 55)) {
		t.Errorf("armed = %v, want [18:55]", got)
	}
	if h.source.callCount() != 0 {
		t.Error("no fetch expected outside a window")
	}
}

func TestScheduler_ProcessesWindowOnce(t *testing.T) {
	h := newHarness(at(18, 50), defaultConfig())

	paygo := testSub(3, 10, 2)
	paygo.SubscriptionPlanName = "PAYGO"
	h.source.set(testSub(1, 10, 2), testSub(2, 100, 2), paygo)
	h.start(t)

	h.advance(at(18, 55))

	if got := h.exec.resetIDs(); !slices.Equal(got, []int64{1}) {
		t.Fatalf("reset ids = %v, want [1]", got)
	}
	if st := h.s.Status(); st.State != StateInWindowCooldownTracking {
		t.Errorf("State = %v, want tracking", st.State)
	}

	m := h.marker(t)
	if m == nil || m.Window != "18:55" || m.Date != "2025-03-04" || m.ResetCount != 1 || m.SkipCount != 2 {
		t.Fatalf("marker = %+v", m)
	}

	h.check()
	h.advance(at(18, 58))
	if n := h.exec.callCount(); n != 1 {
		t.Errorf("dispatches = %d, want 1", n)
	}
	if n := h.source.callCount(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}

	var completed *PassCompletedEvent
	var finished *ResetsFinishedEvent
	for _, e := range drainEvents(h.s) {
		switch ev := e.(type) {
		case PassCompletedEvent:
			completed = &ev
		case ResetsFinishedEvent:
			finished = &ev
		}
	}
	if completed == nil || len(completed.Skips) != 2 || len(completed.Tasks) != 1 {
		t.Errorf("PassCompletedEvent = %+v", completed)
	}
	if finished == nil || len(finished.Results) != 1 || finished.Results[0].Outcome != OutcomeSucceeded {
		t.Errorf("ResetsFinishedEvent = %+v", finished)
	}
	if got := h.s.Status().LastResults; len(got) != 1 {
		t.Errorf("LastResults = %+v", got)
	}
}

func TestScheduler_RestartWithMarker(t *testing.T) {
	h := newHarness(at(18, 57), defaultConfig())
	h.source.set(testSub(1, 10, 2))

	if err := NewGuard(h.store).Record(context.Background(), Marker{Window: "18:55", Date: "2025-03-04"}); err != nil {
		t.Fatal(err)
	}
	h.start(t)

	if n := h.exec.callCount(); n != 0 {
		t.Errorf("dispatches after restart = %d, want 0", n)
	}
	if st := h.s.Status(); st.State != StateInWindowCooldownTracking {
		t.Errorf("State = %v, want tracking", st.State)
	}
	if n := h.source.callCount(); n != 1 {
		t.Errorf("fetches = %d, want 1 for resumed tracking", n)
	}

	h.check()
	if n := h.source.callCount(); n != 1 {
		t.Errorf("heartbeat refetched while tracking: %d", n)
	}
}

func TestScheduler_RestartResumesCooldownTracking(t *testing.T) {
	h := newHarness(at(18, 56), defaultConfig())
	cooling := testSub(1, 10, 2)
	cooling.LastCreditReset = stamp(at(18, 58).Add(-24 * time.Hour))
	h.source.set(cooling)

	if err := NewGuard(h.store).Record(context.Background(), Marker{Window: "18:55", Date: "2025-03-04"}); err != nil {
		t.Fatal(err)
	}
	h.start(t)

	if st := h.s.Status(); len(st.Cooldowns) != 1 || !st.Cooldowns[0].At.Equal(at(18, 58)) {
		t.Fatalf("Cooldowns = %+v", st.Cooldowns)
	}

	h.advance(at(18, 58))
	if got := h.exec.resetIDs(); !slices.Equal(got, []int64{1}) {
		t.Errorf("reset ids = %v, want [1]", got)
	}
}

func cooldownSkips(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := skipsTotal.WithLabelValues(reset.BlockCooldown.String()).Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestScheduler_SkipMetricCountsPassesOnly(t *testing.T) {
	cooling := testSub(1, 10, 2)
	cooling.LastCreditReset = stamp(at(18, 58).Add(-24 * time.Hour))

	t.Run("resumed tracking", func(t *testing.T) {
		h := newHarness(at(18, 56), defaultConfig())
		h.source.set(cooling)
		if err := NewGuard(h.store).Record(context.Background(), Marker{Window: "18:55", Date: "2025-03-04"}); err != nil {
			t.Fatal(err)
		}

		before := cooldownSkips(t)
		h.start(t)
		h.s.Reconfigure(defaultConfig())
		h.s.drain()

		if got := cooldownSkips(t) - before; got != 0 {
			t.Errorf("cooldown skips after restart and reconfigure = %v, want 0", got)
		}
	})

	t.Run("window pass", func(t *testing.T) {
		h := newHarness(at(18, 56), defaultConfig())
		h.source.set(cooling)

		before := cooldownSkips(t)
		h.start(t)

		if got := cooldownSkips(t) - before; got != 1 {
			t.Errorf("cooldown skips after pass = %v, want 1", got)
		}
	})
}

func TestScheduler_FailedPassRetries(t *testing.T) {
	tests := []struct {
		name    string
		breakIt func(h *harness)
		fixIt   func(h *harness)
	}{
		{
			name:    "NoToken",
			breakIt: func(h *harness) { h.tokens.fail(errors.New("no token")) },
			fixIt:   func(h *harness) { h.tokens.fail(nil) },
		},
		{
			name:    "FetchError",
			breakIt: func(h *harness) { h.source.fail(errors.New("timeout")) },
			fixIt:   func(h *harness) { h.source.fail(nil) },
		},
		{
			name:    "StoreError",
			breakIt: func(h *harness) { h.store.failLoad(errors.New("locked")) },
			fixIt:   func(h *harness) { h.store.failLoad(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(at(18, 56), defaultConfig())
			h.source.set(testSub(1, 10, 2))
			tt.breakIt(h)
			h.start(t)

			st := h.s.Status()
			if st.State != StateInWindowProcessing {
				t.Errorf("State = %v, want processing", st.State)
			}
			if st.LastError == "" {
				t.Error("LastError should be set")
			}
			if h.exec.callCount() != 0 {
				t.Error("nothing should be dispatched")
			}

			var failed bool
			for _, e := range drainEvents(h.s) {
				if _, ok := e.(PassFailedEvent); ok {
					failed = true
				}
			}
			if !failed {
				t.Error("expected PassFailedEvent")
			}

			tt.fixIt(h)
			if m := h.marker(t); m != nil {
				t.Fatalf("marker written by failed pass: %+v", m)
			}

			h.check()
			if got := h.exec.resetIDs(); !slices.Equal(got, []int64{1}) {
				t.Errorf("reset ids after retry = %v, want [1]", got)
			}
			if m := h.marker(t); m == nil || m.Window != "18:55" {
				t.Errorf("marker after retry = %+v", m)
			}
		})
	}
}

func TestScheduler_MarkerWriteFailureDoesNotRedispatch(t *testing.T) {
	h := newHarness(at(18, 56), defaultConfig())
	h.source.set(testSub(1, 10, 2))
	h.store.setFailure(errors.New("disk full"))
	h.start(t)

	if n := h.exec.callCount(); n != 1 {
		t.Fatalf("dispatches = %d, want 1", n)
	}
	if st := h.s.Status(); st.State != StateInWindowProcessing {
		t.Errorf("State = %v, want processing", st.State)
	}

	h.store.setFailure(nil)
	h.check()

	if n := h.exec.callCount(); n != 1 {
		t.Errorf("dispatches after retry = %d, want 1", n)
	}
	if m := h.marker(t); m == nil || m.ResetCount != 0 || m.SkipCount != 1 {
		t.Errorf("marker = %+v", m)
	}
}

func TestScheduler_CooldownWake(t *testing.T) {
	cooling := testSub(1, 10, 2)
	cooling.LastCreditReset = stamp(at(18, 57).Add(-24 * time.Hour))
	late := testSub(2, 10, 2)
	late.LastCreditReset = stamp(at(19, 30).Add(-24 * time.Hour))

	tests := []struct {
		name   string
		update func(h *harness)
		want   []int64
	}{
		{
			name:   "StillEligible",
			update: func(h *harness) {},
			want:   []int64{1},
		},
		{
			name: "FilledMeanwhile",
			update: func(h *harness) {
				full := cooling.Clone()
				full.CurrentCredits = 100
				h.source.set(full, late)
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(at(18, 55), defaultConfig())
			h.source.set(cooling, late)
			h.start(t)

			if n := h.exec.callCount(); n != 0 {
				t.Fatalf("dispatches = %d, want 0", n)
			}
			st := h.s.Status()
			if len(st.Cooldowns) != 1 || !slices.Equal(st.Cooldowns[0].SubscriptionIDs, []int64{1}) {
				t.Fatalf("Cooldowns = %+v, want only subscription 1", st.Cooldowns)
			}

			tt.update(h)
			h.advance(at(18, 57))

			if got := h.exec.resetIDs(); !slices.Equal(got, tt.want) {
				t.Errorf("reset ids = %v, want %v", got, tt.want)
			}
			if n := h.source.callCount(); n != 2 {
				t.Errorf("fetches = %d, want 2", n)
			}
			if len(h.s.Status().Cooldowns) != 0 {
				t.Error("fired cooldown should leave the registry")
			}
			if m := h.marker(t); m == nil || m.ResetCount != len(tt.want) {
				t.Errorf("marker = %+v", m)
			}
		})
	}
}

func TestScheduler_WindowEndCancelsCooldowns(t *testing.T) {
	h := newHarness(at(18, 55), defaultConfig())
	cooling := testSub(1, 10, 2)
	cooling.LastCreditReset = stamp(at(18, 59).Add(-24 * time.Hour))
	h.source.set(cooling)
	h.start(t)

	if len(h.s.Status().Cooldowns) != 1 {
		t.Fatal("expected a tracked cooldown")
	}

	h.advance(at(19, 0).Add(time.Second))

	st := h.s.Status()
	if st.State != StateAwaitingWindow {
		t.Errorf("State = %v, want awaiting", st.State)
	}
	if st.Active != nil {
		t.Errorf("Active = %+v, want nil", st.Active)
	}
	if len(st.Cooldowns) != 0 {
		t.Errorf("Cooldowns = %+v, want none", st.Cooldowns)
	}
	if got := h.alarms.armed(); len(got) != 1 || !got[0].Equal(at(23, 55)) {
		t.Errorf("armed = %v, want [23:55]", got)
	}
	if n := h.exec.callCount(); n != 0 {
		t.Errorf("dispatches = %d, want 0", n)
	}
}

func TestScheduler_Idle(t *testing.T) {
	disabled := reset.DefaultWindows()
	for i := range disabled {
		disabled[i].Enabled = false
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"FeatureDisabled", Config{Windows: reset.DefaultWindows(), Enabled: false}},
		{"NoEnabledWindows", Config{Windows: disabled, Enabled: true}},
		{"MalformedWindows", Config{Windows: []reset.Window{{Hour: 25, Enabled: true}}, Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(at(18, 56), tt.cfg)
			h.source.set(testSub(1, 10, 2))
			h.start(t)

			if st := h.s.Status(); st.State != StateIdle {
				t.Errorf("State = %v, want idle", st.State)
			}
			if got := h.alarms.armed(); len(got) != 0 {
				t.Errorf("armed = %v, want none", got)
			}
			if h.source.callCount() != 0 || h.exec.callCount() != 0 {
				t.Error("idle scheduler must not call the billing API")
			}
		})
	}
}

func TestScheduler_StartAfterStop(t *testing.T) {
	h := newHarness(at(18, 56), defaultConfig())
	h.source.set(testSub(1, 10, 2))

	h.s.Stop()
	h.s.Start(context.Background())
	h.s.Check()
	h.s.Stop()

	if n := h.source.callCount() + h.exec.callCount(); n != 0 {
		t.Errorf("stopped scheduler made %d calls", n)
	}
	if st := h.s.Status(); st.State != StateIdle {
		t.Errorf("State = %v, want idle", st.State)
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	h := newHarness(at(12, 0), defaultConfig())
	h.start(t)

	h.s.Stop()
	h.s.Stop()
	h.s.Start(context.Background())
	h.s.Check()
}

func TestScheduler_Reconfigure(t *testing.T) {
	h := newHarness(at(12, 0), defaultConfig())
	h.start(t)

	cfg := defaultConfig()
	cfg.Windows = []reset.Window{{Hour: 20, Minute: 0, SpanMinutes: 5, RequiredResets: 1, Enabled: true}}
	h.s.Reconfigure(cfg)
	h.s.drain()

	if got := h.alarms.armed(); len(got) != 1 || !got[0].Equal(at(20, 0)) {
		t.Errorf("armed = %v, want [20:00]", got)
	}
	if st := h.s.Status(); st.Next == nil || st.Next.Window.ID() != "20:00" {
		t.Errorf("Next = %+v", st.Next)
	}

	cfg.Enabled = false
	h.s.Reconfigure(cfg)
	h.s.drain()

	if st := h.s.Status(); st.State != StateIdle {
		t.Errorf("State = %v, want idle", st.State)
	}
	if got := h.alarms.armed(); len(got) != 0 {
		t.Errorf("armed = %v, want none", got)
	}
}

func TestScheduler_PolicyPerWindow(t *testing.T) {
	windows := []reset.Window{
		{Hour: 18, Minute: 55, SpanMinutes: 5, RequiredResets: 1, Enabled: true},
		{Hour: 23, Minute: 55, SpanMinutes: 5, RequiredResets: 1, Enabled: true},
	}

	tests := []struct {
		name       string
		now        time.Time
		reason     string
		wantResets []int64
	}{
		{"EarlyKeepsLastReset", at(18, 56), reset.ReasonReservedNight, []int64{2}},
		{"LateSpendsLastReset", at(23, 56), reset.ReasonFallback, []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Windows = windows
			h := newHarness(tt.now, cfg)
			h.source.set(testSub(1, 10, 1), testSub(2, 10, 3), testSub(3, 10, 0))
			h.start(t)

			if got := h.exec.resetIDs(); !slices.Equal(got, tt.wantResets) {
				t.Errorf("reset ids = %v, want %v", got, tt.wantResets)
			}

			var reasons []string
			for _, e := range drainEvents(h.s) {
				if ev, ok := e.(PassCompletedEvent); ok {
					for _, s := range ev.Skips {
						reasons = append(reasons, s.Reason)
					}
					for _, task := range ev.Tasks {
						reasons = append(reasons, task.Reason)
					}
				}
			}
			if !slices.Contains(reasons, tt.reason) {
				t.Errorf("reasons = %v, want %q among them", reasons, tt.reason)
			}
		})
	}
}

func TestScheduler_WakeJitterDefersHeartbeat(t *testing.T) {
	cfg := defaultConfig()
	cfg.Windows = []reset.Window{{Hour: 18, Minute: 55, JitterBeforeMinutes: 5, SpanMinutes: 5, RequiredResets: 1, Enabled: true}}

	h := newHarness(at(18, 40), cfg)
	h.s.offset = func(max time.Duration) time.Duration {
		if max != 5*time.Minute {
			t.Errorf("offset max = %v, want 5m", max)
		}
		return 3 * time.Minute
	}
	h.source.set(testSub(1, 10, 2))
	h.start(t)

	if got := h.alarms.armed(); len(got) != 1 || !got[0].Equal(at(18, 53)) {
		t.Fatalf("armed = %v, want [18:53]", got)
	}

	h.clock.Set(at(18, 51))
	h.check()
	if h.source.callCount() != 0 {
		t.Error("heartbeat inside the lead should wait for the jittered wake")
	}

	h.advance(at(18, 53))
	if got := h.exec.resetIDs(); !slices.Equal(got, []int64{1}) {
		t.Errorf("reset ids = %v, want [1]", got)
	}
}

func TestScheduler_MidnightStraddle(t *testing.T) {
	h := newHarness(at(23, 58), defaultConfig())
	h.source.set(testSub(1, 10, 1))
	h.start(t)

	if n := h.exec.callCount(); n != 1 {
		t.Fatalf("dispatches = %d, want 1", n)
	}

	midnight := day.AddDate(0, 0, 1)
	h.advance(midnight)
	h.check()

	st := h.s.Status()
	if st.Active == nil || st.Active.Date() != "2025-03-04" {
		t.Fatalf("Active at midnight = %+v, want the 2025-03-04 occurrence", st.Active)
	}
	if n := h.exec.callCount(); n != 1 {
		t.Errorf("dispatches at midnight = %d, want 1", n)
	}

	h.advance(midnight.Add(time.Second))
	st = h.s.Status()
	if st.State != StateAwaitingWindow || st.Next == nil || st.Next.Key() != "18:55@2025-03-05" {
		t.Errorf("after window: State = %v, Next = %+v", st.State, st.Next)
	}
}

func TestScheduler_DailyScenario(t *testing.T) {
	h := newHarness(at(12, 0), defaultConfig())
	h.source.set(testSub(1, 20, 3))
	h.start(t)

	h.advance(at(18, 55))
	if got := h.exec.resetIDs(); !slices.Equal(got, []int64{1}) {
		t.Fatalf("evening reset ids = %v, want [1]", got)
	}

	afterReset := testSub(1, 100, 2)
	afterReset.LastCreditReset = stamp(at(18, 55))
	h.source.set(afterReset)

	h.advance(at(19, 0).Add(time.Second))
	if st := h.s.Status(); st.State != StateAwaitingWindow {
		t.Fatalf("State = %v, want awaiting", st.State)
	}

	used := afterReset.Clone()
	used.CurrentCredits = 15
	h.source.set(used)

	h.advance(at(23, 55))
	if n := h.exec.callCount(); n != 1 {
		t.Errorf("night dispatches = %d, want 1 (cooldown from evening reset)", n)
	}
	if st := h.s.Status(); len(st.Cooldowns) != 0 {
		t.Errorf("cooldown ending tomorrow should not be tracked: %+v", st.Cooldowns)
	}
	if m := h.marker(t); m == nil || m.Window != "23:55" || m.SkipCount != 1 {
		t.Errorf("marker = %+v", m)
	}
}
