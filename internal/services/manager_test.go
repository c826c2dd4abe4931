package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/config"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
)

const testSubscriptions = `[
	{"id": 1, "subscriptionPlanName": "PRO", "subscriptionStatus": "活跃中", "isActive": true,
	 "currentCredits": 30, "resetTimes": 2, "subscriptionPlan": {"creditLimit": 100}},
	{"id": 2, "subscriptionPlanName": "MAX", "subscriptionStatus": "活跃中", "isActive": true,
	 "currentCredits": 200, "resetTimes": 2, "subscriptionPlan": {"creditLimit": 200}}
]`

type fakeBilling struct {
	resets atomic.Int32
	toggle atomic.Value
}

func (f *fakeBilling) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reply := func(data string) {
		fmt.Fprintf(w, `{"code":0,"ok":true,"msg":"","data":%s}`, data)
	}

	switch {
	case r.URL.Path == "/admin-api/cc-admin/system/subscription/my":
		reply(testSubscriptions)
	case strings.HasPrefix(r.URL.Path, "/admin-api/cc-admin/system/subscription/my/reset-credits/"):
		f.resets.Add(1)
		reply("null")
	case strings.HasPrefix(r.URL.Path, "/admin-api/cc-admin/system/subscription/my/auto-reset/"):
		f.toggle.Store(r.URL.Query().Get("autoResetWhenZero"))
		reply("null")
	case r.URL.Path == "/admin-api/cc-admin/user/dashboard":
		reply(`{"overview":{"cost":12.5},"recentActivity":{"requestsToday":4}}`)
	case r.URL.Path == "/admin-api/cc-admin/user/usage-trend":
		reply(`[{"date":"2025-03-01","cost":2},{"date":"2025-03-02","cost":4}]`)
	case r.URL.Path == "/admin-api/login/getLoginInfo":
		reply(`{"loginName":"dev","email":"dev@example.com"}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeBilling) {
	t.Helper()
	billing := &fakeBilling{}
	srv := httptest.NewServer(billing)
	t.Cleanup(srv.Close)

	tmpDir := t.TempDir()
	cfg := &config.Config{
		DatabasePath:    filepath.Join(tmpDir, "test.db"),
		SettingsPath:    filepath.Join(tmpDir, "settings.json"),
		TokenFile:       filepath.Join(tmpDir, "token"),
		APIBaseURL:      srv.URL,
		AuthToken:       "tok",
		HTTPTimeout:     5 * time.Second,
		RefreshInterval: time.Hour,
		ResetCooldown:   24 * time.Hour,
		CheckInterval:   time.Hour,
	}

	mgr, err := NewManager(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	mgr.notify = func(string, string) error { return nil }
	return mgr, billing
}

type recordedNotifications struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordedNotifications) notify(title, _ string) error {
	r.mu.Lock()
	r.titles = append(r.titles, title)
	r.mu.Unlock()
	return nil
}

func TestNewManager(t *testing.T) {
	mgr, _ := newTestManager(t)

	if mgr.Settings() == nil {
		t.Error("Settings service should be initialized")
	}
	if mgr.Tokens() == nil {
		t.Error("Token cache should be initialized")
	}
	if mgr.Database() == nil {
		t.Error("Database should be initialized")
	}
	if st := mgr.SchedulerStatus(); st.State != scheduler.StateIdle {
		t.Errorf("scheduler state before Start = %v", st.State)
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr, _ := newTestManager(t)

	ch, cmd := mgr.Subscribe()
	if ch == nil || cmd == nil {
		t.Fatal("Subscribe returned nil")
	}

	mgr.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("Channel should be closed")
	}
}

func TestManager_Broadcast(t *testing.T) {
	mgr, _ := newTestManager(t)
	first, _ := mgr.Subscribe()
	second, _ := mgr.Subscribe()

	mgr.broadcast(ErrorEvent{Service: "test", Error: errors.New("boom")})

	for i, ch := range []chan ServiceEvent{first, second} {
		select {
		case ev := <-ch:
			if e, ok := ev.(ErrorEvent); !ok || e.Service != "test" {
				t.Errorf("subscriber %d: event = %#v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event received", i)
		}
	}
}

func TestManager_BroadcastSkipsFullSubscriber(t *testing.T) {
	mgr, _ := newTestManager(t)
	full, _ := mgr.Subscribe()
	for len(full) < cap(full) {
		full <- RefreshingEvent{}
	}
	live, _ := mgr.Subscribe()

	done := make(chan struct{})
	go func() {
		mgr.broadcast(ErrorEvent{Service: "test"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
	if _, ok := (<-live).(ErrorEvent); !ok {
		t.Error("live subscriber missed the event")
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- RefreshingEvent{}

	if _, ok := WaitForEvent(ch)().(RefreshingEvent); !ok {
		t.Error("WaitForEvent should return the queued event")
	}
}

func TestManager_CheckNotifications(t *testing.T) {
	mgr, _ := newTestManager(t)
	rec := &recordedNotifications{}
	mgr.notify = rec.notify

	sub := func(credits float64) models.Subscription {
		return models.Subscription{ID: 1, SubscriptionPlanName: "PRO", CurrentCredits: credits, SubscriptionPlan: models.SubscriptionPlan{CreditLimit: 100}}
	}

	mgr.checkNotifications([]models.Subscription{sub(50)})
	mgr.checkNotifications([]models.Subscription{sub(10)})
	mgr.checkNotifications([]models.Subscription{sub(5)})
	mgr.checkNotifications([]models.Subscription{sub(100)})

	want := []string{"Low credits: PRO", "Credits reset: PRO"}
	if len(rec.titles) != len(want) {
		t.Fatalf("notifications = %v, want %v", rec.titles, want)
	}
	for i := range want {
		if rec.titles[i] != want[i] {
			t.Errorf("notification[%d] = %q, want %q", i, rec.titles[i], want[i])
		}
	}
}

func TestManager_NotifyResults(t *testing.T) {
	mgr, _ := newTestManager(t)
	rec := &recordedNotifications{}
	mgr.notify = rec.notify

	mgr.notifyResults("18:55@2025-03-04", nil)
	mgr.notifyResults("18:55@2025-03-04", []scheduler.Result{{Outcome: scheduler.OutcomeSucceeded}, {Outcome: scheduler.OutcomeFailed}})

	if len(rec.titles) != 1 || rec.titles[0] != "Scheduled reset 18:55@2025-03-04" {
		t.Errorf("notifications = %v", rec.titles)
	}
}

func TestManager_ResetSubscription(t *testing.T) {
	mgr, billing := newTestManager(t)
	ctx := context.Background()

	if err := mgr.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if err := mgr.ResetSubscription(ctx, 1); err != nil {
		t.Fatalf("ResetSubscription(1) error = %v", err)
	}
	if got := billing.resets.Load(); got != 1 {
		t.Errorf("reset requests = %d, want 1", got)
	}

	if err := mgr.ResetSubscription(ctx, 2); !errors.Is(err, ErrResetBlocked) {
		t.Errorf("ResetSubscription(full) error = %v, want ErrResetBlocked", err)
	}
	if err := mgr.ResetSubscription(ctx, 99); err == nil {
		t.Error("unknown subscription should fail")
	}
	if got := billing.resets.Load(); got != 1 {
		t.Errorf("blocked resets must not reach the API, got %d requests", got)
	}
}

func TestManager_ToggleAutoReset(t *testing.T) {
	mgr, billing := newTestManager(t)
	ctx := context.Background()

	if err := mgr.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := mgr.ToggleAutoReset(ctx, 1); err != nil {
		t.Fatalf("ToggleAutoReset() error = %v", err)
	}
	if got, _ := billing.toggle.Load().(string); got != "true" {
		t.Errorf("autoResetWhenZero = %q, want true", got)
	}
}

func TestManager_RefreshUsage(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.RefreshUsage(context.Background())

	usage := mgr.Usage()
	if !usage.Stats.HasData || usage.Stats.Avg30 != 3 || len(usage.Trend) != 2 {
		t.Errorf("Usage() = %+v", usage)
	}
}

func TestManager_LoginInfo(t *testing.T) {
	mgr, _ := newTestManager(t)
	info, err := mgr.LoginInfo(context.Background())
	if err != nil {
		t.Fatalf("LoginInfo() error = %v", err)
	}
	if info.Email != "dev@example.com" {
		t.Errorf("Email = %q", info.Email)
	}
}

func TestManager_SettingsReconfigureScheduler(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.Start()

	waitFor(t, func() bool { return mgr.SchedulerStatus().State != scheduler.StateIdle })

	if err := mgr.Settings().SetScheduledResetEnabled(false); err != nil {
		t.Fatalf("SetScheduledResetEnabled() error = %v", err)
	}

	waitFor(t, func() bool { return mgr.SchedulerStatus().State == scheduler.StateIdle })
}

func TestManager_Close(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.Start()

	if err := mgr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
