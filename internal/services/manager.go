// Package services provides service orchestration for the TUI and daemon.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/robfig/cron/v3"

	"github.com/j-veylop/credits-dashboard-tui/internal/config"
	"github.com/j-veylop/credits-dashboard-tui/internal/db"
	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/auth"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/billing"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/credits"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/projection"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/settings"
)

// ErrResetBlocked is returned when a manual reset fails the eligibility
// checks.
var ErrResetBlocked = errors.New("reset not allowed")

// resetJumpPercent is the balance increase, as a share of the limit, that
// is reported as a reset performed elsewhere.
const resetJumpPercent = 20.0

type (
	// SubscriptionsUpdatedEvent is emitted when subscriptions are fetched.
	SubscriptionsUpdatedEvent struct {
		Snapshot *credits.Snapshot
		Stats    credits.Stats
	}

	// RefreshingEvent is emitted when a refresh starts.
	RefreshingEvent struct{}

	// ProjectionUpdatedEvent is emitted when depletion projections change.
	ProjectionUpdatedEvent struct {
		Projections map[int64]*models.CreditProjection
	}

	// UsageUpdatedEvent is emitted when the daily usage trend is fetched.
	UsageUpdatedEvent struct {
		Trend []models.UsageTrendPoint
		Stats models.UsageStats
	}

	// SchedulerStatusEvent is emitted when the scheduler changes state.
	SchedulerStatusEvent struct {
		Status scheduler.Status
	}

	// SchedulerPassEvent is emitted after a scheduled window pass.
	SchedulerPassEvent struct {
		Err     error
		RunID   string
		Window  string
		Trigger string
		Skips   []scheduler.Skip
		Tasks   int
	}

	// ResetCompletedEvent is emitted when reset requests settle.
	ResetCompletedEvent struct {
		Window  string
		Results []scheduler.Result
		Manual  bool
	}

	// SettingsChangedEvent is emitted when settings are loaded or edited.
	SettingsChangedEvent struct {
		Settings settings.Settings
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SubscriptionsUpdatedEvent) isServiceEvent() {}
func (RefreshingEvent) isServiceEvent()           {}
func (ProjectionUpdatedEvent) isServiceEvent()    {}
func (UsageUpdatedEvent) isServiceEvent()         {}
func (SchedulerStatusEvent) isServiceEvent()      {}
func (SchedulerPassEvent) isServiceEvent()        {}
func (ResetCompletedEvent) isServiceEvent()       {}
func (SettingsChangedEvent) isServiceEvent()      {}
func (ErrorEvent) isServiceEvent()                {}

// Manager orchestrates services and event routing.
type Manager struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cfg        *config.Config
	database   *db.DB
	settings   *settings.Service
	tokens     *auth.Cache
	client     *billing.Client
	credits    *credits.Service
	projection *projection.Service
	scheduler  *scheduler.Scheduler
	cron       *cron.Cron
	notify     func(title, message string) error
	checker    reset.Checker

	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent
	mu          sync.RWMutex

	stateMu      sync.Mutex
	previousSubs map[int64]models.Subscription
	usage        UsageUpdatedEvent
	closeOnce    sync.Once
	startOnce    sync.Once
}

// NewManager creates a new service manager. Call Start to begin polling
// and scheduling.
func NewManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	m := &Manager{
		cfg:          cfg,
		stopChan:     make(chan struct{}),
		previousSubs: make(map[int64]models.Subscription),
		checker:      reset.NewChecker(cfg.ResetCooldown),
		notify:       func(title, message string) error { return beeep.Notify(title, message, "") },
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.settings, err = settings.New(cfg.SettingsPath)
	if err != nil {
		_ = m.database.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	st := m.settings.Get()

	m.tokens = auth.NewCache(cfg.AuthToken, cfg.TokenFile, m.database)
	m.client = billing.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, m.tokens)
	m.credits = credits.New(m.ctx, m.client, m.database, m.pollInterval(st))
	m.projection = projection.New(m.database)

	executor := scheduler.NewExecutor(m.client, m.client, scheduler.ExecutorConfig{
		MaxJitter:   cfg.ResetMaxJitter,
		VerifyDelay: cfg.ResetVerifyDelay,
		Verify:      cfg.ResetVerify,
	})
	m.scheduler = scheduler.New(m.schedulerConfig(st), scheduler.Deps{
		Source:   m.client,
		Tokens:   m.tokens,
		Executor: executor,
		Store:    m.database,
	})

	m.cron = newMaintenance(m)

	return m, nil
}

// Start begins polling, scheduling and maintenance jobs.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.routeEvents()
		m.credits.Start(m.ctx)
		m.scheduler.Start(m.ctx)
		m.cron.Start()
		go m.RefreshUsage(m.ctx)
	})
}

func (m *Manager) pollInterval(st settings.Settings) time.Duration {
	if !st.AutoRefresh {
		return 0
	}
	return max(st.RefreshInterval(), m.cfg.RefreshInterval)
}

func (m *Manager) schedulerConfig(st settings.Settings) scheduler.Config {
	return scheduler.Config{
		Windows:       st.ScheduledReset.Windows,
		Enabled:       st.ScheduledReset.Enabled,
		Cooldown:      m.cfg.ResetCooldown,
		CheckInterval: m.cfg.CheckInterval,
	}
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.settings.Events():
			m.handleSettingsEvent(event)

		case event := <-m.credits.Events():
			m.handleCreditsEvent(event)

		case event := <-m.scheduler.Events():
			m.handleSchedulerEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleSettingsEvent(event settings.Event) {
	switch event.Type {
	case settings.EventSettingsLoaded:
		m.broadcast(SettingsChangedEvent{Settings: event.Settings})

	case settings.EventSettingsChanged:
		m.scheduler.Reconfigure(m.schedulerConfig(event.Settings))
		m.credits.SetInterval(m.pollInterval(event.Settings))
		m.broadcast(SettingsChangedEvent{Settings: event.Settings})

	case settings.EventError:
		m.broadcast(ErrorEvent{Service: "settings", Error: event.Error})
	}
}

func (m *Manager) handleCreditsEvent(event credits.Event) {
	switch event.Type {
	case credits.EventRefreshing:
		m.broadcast(RefreshingEvent{})

	case credits.EventUpdated:
		m.broadcast(SubscriptionsUpdatedEvent{Snapshot: event.Snapshot, Stats: m.credits.Stats()})
		m.checkNotifications(event.Snapshot.Subscriptions)
		go m.updateProjections(event.Snapshot.Subscriptions)

	case credits.EventError:
		m.broadcast(ErrorEvent{Service: "credits", Error: event.Error})
	}
}

func (m *Manager) handleSchedulerEvent(event scheduler.Event) {
	switch ev := event.(type) {
	case scheduler.StateChangedEvent:
		m.broadcast(SchedulerStatusEvent{Status: ev.Status})

	case scheduler.PassCompletedEvent:
		m.broadcast(SchedulerPassEvent{
			RunID:   ev.RunID,
			Window:  ev.Window,
			Trigger: ev.Trigger,
			Tasks:   len(ev.Tasks),
			Skips:   ev.Skips,
		})
		m.broadcast(SchedulerStatusEvent{Status: m.scheduler.Status()})

	case scheduler.PassFailedEvent:
		m.broadcast(SchedulerPassEvent{RunID: ev.RunID, Window: ev.Window, Trigger: ev.Trigger, Err: ev.Err})

	case scheduler.ResetsFinishedEvent:
		m.notifyResults(ev.Window, ev.Results)
		m.broadcast(ResetCompletedEvent{Window: ev.Window, Results: ev.Results})
		m.broadcast(SchedulerStatusEvent{Status: m.scheduler.Status()})
		go m.refreshAfterReset()
	}
}

// checkNotifications compares subs with the previous snapshot and notifies
// about low balances and resets performed outside this process.
func (m *Manager) checkNotifications(subs []models.Subscription) {
	st := m.settings.Get()

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	for i := range subs {
		sub := &subs[i]
		prev, exists := m.previousSubs[sub.ID]
		m.previousSubs[sub.ID] = sub.Clone()

		if !exists || !st.Notifications || sub.IsPaygo() || sub.CreditLimit() <= 0 {
			continue
		}

		newPercent := sub.CreditPercent()
		oldPercent := prev.CreditPercent()
		if newPercent < st.LowCreditPercent && oldPercent >= st.LowCreditPercent {
			title := fmt.Sprintf("Low credits: %s", sub.DisplayName())
			body := fmt.Sprintf("Remaining credits are below %.0f%% (%.1f%%)", st.LowCreditPercent, newPercent)
			m.sendNotification(title, body)
		}

		if diff := sub.CurrentCredits - prev.CurrentCredits; diff > 0 {
			if diff/sub.CreditLimit()*100 > resetJumpPercent {
				m.sendNotification(fmt.Sprintf("Credits reset: %s", sub.DisplayName()), "Your credits have been refreshed.")
			}
		}
	}
}

func (m *Manager) notifyResults(window string, results []scheduler.Result) {
	if len(results) == 0 || !m.settings.Get().Notifications {
		return
	}

	var ok, failed, unverified int
	for _, r := range results {
		switch r.Outcome {
		case scheduler.OutcomeSucceeded:
			ok++
		case scheduler.OutcomeUnverified:
			unverified++
		default:
			failed++
		}
	}

	title := fmt.Sprintf("Scheduled reset %s", window)
	body := fmt.Sprintf("%d succeeded, %d failed", ok, failed)
	if unverified > 0 {
		body += fmt.Sprintf(", %d unverified", unverified)
	}
	m.sendNotification(title, body)
}

func (m *Manager) sendNotification(title, body string) {
	if err := m.notify(title, body); err != nil {
		logger.Debug("desktop notification failed", "error", err)
	}
}

func (m *Manager) updateProjections(subs []models.Subscription) {
	var next time.Time
	if st := m.scheduler.Status(); st.Next != nil {
		next = st.Next.Target
	}

	projections := m.projection.CalculateAll(m.ctx, subs, next)
	m.broadcast(ProjectionUpdatedEvent{Projections: projections})
}

func (m *Manager) refreshAfterReset() {
	if _, err := m.credits.Refresh(m.ctx); err != nil && !errors.Is(err, credits.ErrRefreshInProgress) {
		logger.Warn("refresh after reset failed", "error", err)
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd that waits for the next event on ch.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Refresh forces a subscription refresh.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.credits.Refresh(ctx)
	return err
}

// RefreshUsage fetches the 30-day usage trend.
func (m *Manager) RefreshUsage(ctx context.Context) {
	trend, err := m.client.FetchUsageTrend(ctx, 30, "day")
	if err != nil {
		logger.Warn("failed to fetch usage trend", "error", err)
		m.broadcast(ErrorEvent{Service: "usage", Error: err})
		return
	}

	event := UsageUpdatedEvent{Trend: trend, Stats: models.NewUsageStats(trend)}
	m.stateMu.Lock()
	m.usage = event
	m.stateMu.Unlock()

	m.broadcast(event)
}

// Usage returns the last fetched usage trend.
func (m *Manager) Usage() UsageUpdatedEvent {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.usage
}

// ResetSubscription resets one subscription on request. The same checks
// as scheduled resets apply, except the reservation policy.
func (m *Manager) ResetSubscription(ctx context.Context, id int64) error {
	sub, ok := m.credits.Get().Subscription(id)
	if !ok {
		return fmt.Errorf("subscription %d not found", id)
	}

	elig := m.checker.CanReset(&sub, 1, time.Now())
	if !elig.Allowed {
		return fmt.Errorf("%w: %s", ErrResetBlocked, elig.Reason)
	}

	result := scheduler.Result{
		Task:       scheduler.Task{Subscription: sub, Reason: "manual"},
		Outcome:    scheduler.OutcomeSucceeded,
		FinishedAt: time.Now(),
	}
	if err := m.client.ResetCredits(ctx, id); err != nil {
		result.Outcome = scheduler.OutcomeFailed
		result.Err = err
		m.broadcast(ResetCompletedEvent{Results: []scheduler.Result{result}, Manual: true})
		return err
	}

	logger.Info("manual reset succeeded", "subscription", id, "plan", sub.DisplayName())
	m.broadcast(ResetCompletedEvent{Results: []scheduler.Result{result}, Manual: true})
	go m.refreshAfterReset()
	return nil
}

// ToggleAutoReset flips autoResetWhenZero for a subscription.
func (m *Manager) ToggleAutoReset(ctx context.Context, id int64) error {
	sub, ok := m.credits.Get().Subscription(id)
	if !ok {
		return fmt.Errorf("subscription %d not found", id)
	}
	if err := m.client.ToggleAutoReset(ctx, id, !sub.AutoResetWhenZero); err != nil {
		return err
	}
	go m.refreshAfterReset()
	return nil
}

// LoginInfo returns the account the token belongs to.
func (m *Manager) LoginInfo(ctx context.Context) (*models.LoginInfo, error) {
	return m.tokens.Validate(ctx, m.client)
}

// Snapshot returns the latest subscription snapshot.
func (m *Manager) Snapshot() *credits.Snapshot {
	return m.credits.Get()
}

// Stats returns aggregates over the latest snapshot.
func (m *Manager) Stats() credits.Stats {
	return m.credits.Stats()
}

// Projection returns the cached projection for a subscription.
func (m *Manager) Projection(id int64) *models.CreditProjection {
	return m.projection.Get(id)
}

// CreditHistory returns the recorded credit snapshots of a subscription
// since the given time, oldest first.
func (m *Manager) CreditHistory(ctx context.Context, id int64, since time.Time) ([]models.CreditSnapshot, error) {
	return m.database.GetCreditHistory(ctx, id, since)
}

// Config returns the runtime configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// SchedulerStatus returns the scheduler status.
func (m *Manager) SchedulerStatus() scheduler.Status {
	return m.scheduler.Status()
}

// CheckSchedule asks the scheduler to re-evaluate now.
func (m *Manager) CheckSchedule() {
	m.scheduler.Check()
}

// Settings returns the settings service.
func (m *Manager) Settings() *settings.Service {
	return m.settings
}

// Tokens returns the token cache.
func (m *Manager) Tokens() *auth.Cache {
	return m.tokens
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		<-m.cron.Stop().Done()
		m.cancel()
		m.scheduler.Stop()
		close(m.stopChan)

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if err := m.credits.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.settings.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	})

	return errors.Join(errs...)
}
