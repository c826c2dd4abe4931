// Package scheduler runs scheduled credit resets: it waits for reset
// windows with wall-clock alarms, processes each window occurrence at most
// once, and re-checks subscriptions whose cooldown expires inside a window.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
)

const (
	defaultCheckInterval = 60 * time.Second
	eventBufferSize      = 32
	inboxSize            = 16
)

// Pass triggers, used in logs and metrics.
const (
	TriggerStart       = "start"
	TriggerHeartbeat   = "heartbeat"
	TriggerAlarm       = "alarm"
	TriggerWindowEnd   = "window-end"
	TriggerReconfigure = "reconfigure"
	TriggerManual      = "manual"
	TriggerCooldown    = "cooldown"
)

// State is the scheduler state.
type State int

const (
	StateIdle State = iota
	StateAwaitingWindow
	StateInWindowProcessing
	StateInWindowCooldownTracking
)

func (s State) String() string {
	switch s {
	case StateAwaitingWindow:
		return "awaiting window"
	case StateInWindowProcessing:
		return "processing"
	case StateInWindowCooldownTracking:
		return "tracking cooldowns"
	default:
		return "idle"
	}
}

// TokenSource checks that a credential is available before a pass.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Dispatcher executes reset tasks and returns once all have settled.
type Dispatcher interface {
	Execute(ctx context.Context, runID string, tasks []Task) []Result
}

// Config is the scheduling configuration.
type Config struct {
	Windows       []reset.Window
	Cooldown      time.Duration
	CheckInterval time.Duration
	Enabled       bool
}

// Deps are the scheduler's collaborators. Clock and Alarms default to the
// system clock and WallAlarm.
type Deps struct {
	Source   SubscriptionSource
	Tokens   TokenSource
	Executor Dispatcher
	Store    Store
	Clock    Clock
	Alarms   Alarms
}

// Skip is a subscription left alone during a pass.
type Skip struct {
	Plan           string
	Reason         string
	SubscriptionID int64
	Blocker        reset.Blocker
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	LastRun     time.Time
	NextWake    time.Time
	Active      *reset.Occurrence
	Next        *reset.Occurrence
	Marker      *Marker
	LastError   string
	Cooldowns   []Pending
	LastResults []Result
	State       State
	Enabled     bool
}

type (
	// StateChangedEvent is emitted on every state transition.
	StateChangedEvent struct {
		Status Status
	}

	// PassCompletedEvent is emitted after a window pass dispatched its
	// tasks and recorded the marker.
	PassCompletedEvent struct {
		RunID   string
		Window  string
		Trigger string
		Skips   []Skip
		Tasks   []Task
	}

	// PassFailedEvent is emitted when a pass could not run.
	PassFailedEvent struct {
		Err     error
		RunID   string
		Window  string
		Trigger string
	}

	// ResetsFinishedEvent is emitted when dispatched resets settle.
	ResetsFinishedEvent struct {
		RunID   string
		Window  string
		Results []Result
	}
)

// Event is implemented by all scheduler events.
type Event interface {
	isSchedulerEvent()
}

func (StateChangedEvent) isSchedulerEvent()   {}
func (PassCompletedEvent) isSchedulerEvent()  {}
func (PassFailedEvent) isSchedulerEvent()     {}
func (ResetsFinishedEvent) isSchedulerEvent() {}

type msgKind int

const (
	msgWake msgKind = iota
	msgWindowEnd
	msgCooldown
	msgReconfigure
	msgExecuted
	msgCheck
	msgSync
)

type message struct {
	done    chan struct{}
	key     string
	runID   string
	window  string
	results []Result
	cfg     Config
	gen     uint64
	kind    msgKind
}

// Scheduler drives scheduled resets. All state is owned by the run loop;
// callers interact through messages and read Status snapshots.
type Scheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	source   SubscriptionSource
	tokens   TokenSource
	executor Dispatcher
	clock    Clock
	alarms   Alarms
	guard    *Guard
	registry *Registry
	log      *slog.Logger
	offset   func(max time.Duration) time.Duration
	inbox    chan message
	events   chan Event
	stopped  chan struct{}

	statusMu sync.RWMutex
	status   Status

	inflight sync.WaitGroup

	// Run-loop state.
	cfg           Config
	checker       reset.Checker
	state         State
	gen           uint64
	active        *reset.Occurrence
	next          *reset.Occurrence
	marker        *Marker
	wakeCancel    func()
	endCancel     func()
	wakeAt        time.Time
	awaitKey      string
	processedKey  string
	trackingReady bool
	dispatched    map[int64]bool
	dispatchedFor string
	lastResults   []Result
	lastRun       time.Time
	lastError     string

	lifeMu   sync.Mutex
	running  bool
	halted   bool
	stopOnce sync.Once
}

// New creates a scheduler. Call Start to run it.
func New(cfg Config, deps Deps) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Alarms == nil {
		deps.Alarms = NewWallAlarm()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}

	return &Scheduler{
		source:     deps.Source,
		tokens:     deps.Tokens,
		executor:   deps.Executor,
		clock:      deps.Clock,
		alarms:     deps.Alarms,
		guard:      NewGuard(deps.Store),
		registry:   NewRegistry(),
		log:        logger.With("scheduler"),
		offset:     uniformJitter,
		inbox:      make(chan message, inboxSize),
		events:     make(chan Event, eventBufferSize),
		stopped:    make(chan struct{}),
		cfg:        cfg,
		checker:    reset.NewChecker(cfg.Cooldown),
		dispatched: make(map[int64]bool),
	}
}

// Start runs the scheduler loop until ctx is cancelled or Stop is called.
// It is a no-op once the scheduler was started or stopped.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.running || s.halted {
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.run()
}

// Stop stops the loop and waits for in-flight resets to settle.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.lifeMu.Lock()
		s.halted = true
		running := s.running
		s.lifeMu.Unlock()

		if !running {
			close(s.stopped)
			return
		}
		s.cancel()
		<-s.stopped
		s.inflight.Wait()
	})
}

// Events returns the scheduler event channel.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Status returns the latest status snapshot.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Reconfigure replaces the configuration, cancels all armed alarms and
// re-derives the state from the wall clock.
func (s *Scheduler) Reconfigure(cfg Config) {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	s.post(message{kind: msgReconfigure, cfg: cfg})
}

// Check asks the loop to re-evaluate now.
func (s *Scheduler) Check() {
	s.post(message{kind: msgCheck})
}

func (s *Scheduler) post(m message) {
	select {
	case s.inbox <- m:
	case <-s.stopped:
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.reconcile(TriggerStart)
	s.publish()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case <-ticker.C:
			s.reconcile(TriggerHeartbeat)
		case m := <-s.inbox:
			if m.kind == msgReconfigure {
				ticker.Reset(m.cfg.CheckInterval)
			}
			s.handle(m)
		}
		s.publish()
	}
}

func (s *Scheduler) handle(m message) {
	switch m.kind {
	case msgWake:
		if m.gen != s.gen || m.key != s.awaitKey {
			return
		}
		s.wakeCancel = nil
		s.awaitKey = ""
		s.wakeAt = time.Time{}
		s.reconcile(TriggerAlarm)

	case msgWindowEnd:
		if m.gen != s.gen || s.active == nil || s.active.Key() != m.key {
			return
		}
		s.endCancel = nil
		s.exitWindow()
		s.reconcile(TriggerWindowEnd)

	case msgCooldown:
		s.handleCooldown(m.key)

	case msgReconfigure:
		s.cfg = m.cfg
		s.checker = reset.NewChecker(m.cfg.Cooldown)
		s.cancelAlarms()
		s.active = nil
		s.log.Info("configuration changed", "enabled", m.cfg.Enabled, "windows", len(m.cfg.Windows))
		s.reconcile(TriggerReconfigure)

	case msgExecuted:
		s.lastResults = m.results
		s.lastRun = s.clock.Now()
		s.emit(ResetsFinishedEvent{RunID: m.runID, Window: m.window, Results: m.results})

	case msgCheck:
		s.reconcile(TriggerManual)

	case msgSync:
		close(m.done)
	}
}

// reconcile derives the state from the wall clock and acts on it.
func (s *Scheduler) reconcile(trigger string) {
	if !s.cfg.Enabled || !reset.HasEnabled(s.cfg.Windows) {
		if s.state != StateIdle {
			s.log.Info("scheduled reset disabled")
		}
		s.cancelAlarms()
		s.active = nil
		s.next = nil
		s.setState(StateIdle)
		return
	}

	now := s.clock.Now()
	res := reset.Resolve(now, s.cfg.Windows)
	s.next = res.Next

	if res.Active == nil {
		if s.active != nil {
			s.exitWindow()
		}
		s.awaitNext(res.Next)
		return
	}

	occ := *res.Active
	if s.active == nil || s.active.Key() != occ.Key() {
		if s.active != nil {
			s.exitWindow()
		}
		if s.awaitKey == occ.Key() && now.Before(s.wakeAt) {
			s.setState(StateAwaitingWindow)
			return
		}
		s.enterWindow(occ)
	}

	if s.processedKey == occ.Key() {
		if !s.trackingReady {
			s.resumeTracking(occ)
		}
		return
	}

	marker, err := s.guard.Load(s.ctx)
	if err != nil {
		s.failPass(occ, "", trigger, err)
		return
	}
	s.marker = marker

	if marker.Matches(occ) {
		s.log.Info("window already processed, resuming cooldown tracking", "window", occ.Key())
		s.processedKey = occ.Key()
		s.resumeTracking(occ)
		return
	}

	s.processWindow(occ, trigger)
}

func (s *Scheduler) awaitNext(next *reset.Occurrence) {
	if next == nil {
		s.setState(StateIdle)
		return
	}
	if s.awaitKey == next.Key() && s.wakeCancel != nil {
		s.setState(StateAwaitingWindow)
		return
	}
	if s.wakeCancel != nil {
		s.wakeCancel()
	}

	at := next.Start.Add(s.offset(next.Window.Lead()))
	key, gen := next.Key(), s.gen
	s.wakeCancel = s.alarms.At(at, func() {
		s.post(message{kind: msgWake, key: key, gen: gen})
	})
	s.awaitKey = key
	s.wakeAt = at
	nextWakeSeconds.Set(float64(at.Unix()))

	s.log.Info("waiting for next window", "window", key, "wake", at.Format(time.DateTime))
	s.setState(StateAwaitingWindow)
}

func (s *Scheduler) enterWindow(occ reset.Occurrence) {
	if s.wakeCancel != nil {
		s.wakeCancel()
		s.wakeCancel = nil
	}
	s.awaitKey = ""
	s.wakeAt = time.Time{}

	if s.dispatchedFor != occ.Key() {
		s.dispatched = make(map[int64]bool)
		s.dispatchedFor = occ.Key()
	}
	s.active = &occ
	s.trackingReady = false

	key, gen := occ.Key(), s.gen
	s.endCancel = s.alarms.At(occ.End.Add(time.Second), func() {
		s.post(message{kind: msgWindowEnd, key: key, gen: gen})
	})
	s.log.Info("entered window", "window", key, "end", occ.End.Format(time.DateTime))
}

func (s *Scheduler) exitWindow() {
	if n := s.registry.CancelAll(); n > 0 {
		s.log.Info("window ended, cancelled cooldown alarms", "count", n)
	}
	if s.endCancel != nil {
		s.endCancel()
		s.endCancel = nil
	}
	s.active = nil
	s.trackingReady = false
}

func (s *Scheduler) cancelAlarms() {
	s.gen++
	s.registry.CancelAll()
	if s.wakeCancel != nil {
		s.wakeCancel()
		s.wakeCancel = nil
	}
	if s.endCancel != nil {
		s.endCancel()
		s.endCancel = nil
	}
	s.awaitKey = ""
	s.wakeAt = time.Time{}
	s.trackingReady = false
}

// processWindow is the single pass for an unprocessed window occurrence.
func (s *Scheduler) processWindow(occ reset.Occurrence, trigger string) {
	runID := uuid.NewString()
	s.setState(StateInWindowProcessing)
	s.log.Info("processing window", "run", runID, "window", occ.Key(), "trigger", trigger)

	if _, err := s.tokens.Token(s.ctx); err != nil {
		s.failPass(occ, runID, trigger, err)
		return
	}

	subs, err := s.source.FetchSubscriptions(s.ctx)
	if err != nil {
		s.failPass(occ, runID, trigger, err)
		return
	}

	now := s.clock.Now()
	tasks, skips, cooldowns := s.plan(occ, subs, now, nil)
	countSkips(skips)
	s.dispatch(runID, occ, tasks)

	marker := Marker{
		Window:     occ.Window.ID(),
		Date:       occ.Date(),
		RunID:      runID,
		Timestamp:  now.UnixMilli(),
		ResetCount: len(tasks),
		SkipCount:  len(skips),
	}
	if err := s.guard.Record(s.ctx, marker); err != nil {
		s.failPass(occ, runID, trigger, err)
		return
	}
	s.marker = &marker
	s.processedKey = occ.Key()
	s.lastError = ""

	s.armCooldowns(cooldowns)
	s.trackingReady = true

	passesTotal.WithLabelValues(trigger, "completed").Inc()
	s.log.Info("window pass completed", "run", runID, "window", occ.Key(),
		"resets", len(tasks), "skipped", len(skips), "tracked", s.registry.Len())
	s.emit(PassCompletedEvent{RunID: runID, Window: occ.Key(), Trigger: trigger, Tasks: tasks, Skips: skips})
	s.setState(StateInWindowCooldownTracking)
}

// resumeTracking re-arms cooldown alarms for a window that was already
// processed, without dispatching anything.
func (s *Scheduler) resumeTracking(occ reset.Occurrence) {
	s.setState(StateInWindowCooldownTracking)

	subs, err := s.source.FetchSubscriptions(s.ctx)
	if err != nil {
		s.log.Warn("cannot resume cooldown tracking", "window", occ.Key(), "error", err)
		s.lastError = err.Error()
		return
	}

	_, _, cooldowns := s.plan(occ, subs, s.clock.Now(), nil)
	s.armCooldowns(cooldowns)
	s.trackingReady = true
	s.log.Info("cooldown tracking resumed", "window", occ.Key(), "tracked", s.registry.Len())
}

// handleCooldown is the predicated re-check for subscriptions whose
// cooldown expired inside the active window.
func (s *Scheduler) handleCooldown(key string) {
	ids, ok := s.registry.Take(key)
	if !ok || s.active == nil {
		return
	}
	occ := *s.active
	now := s.clock.Now()
	if !occ.Contains(now) {
		return
	}

	runID := uuid.NewString()
	only := make(map[int64]bool, len(ids))
	for _, id := range ids {
		only[id] = true
	}

	subs, err := s.source.FetchSubscriptions(s.ctx)
	if err != nil {
		s.log.Warn("cooldown re-check failed", "run", runID, "window", occ.Key(), "error", err)
		passesTotal.WithLabelValues(TriggerCooldown, "failed").Inc()
		s.lastError = err.Error()
		return
	}

	tasks, skips, cooldowns := s.plan(occ, subs, now, only)
	countSkips(skips)
	s.armCooldowns(cooldowns)

	if len(tasks) == 0 {
		s.log.Info("cooldown re-check found nothing to reset", "run", runID, "subscriptions", ids)
		passesTotal.WithLabelValues(TriggerCooldown, "noop").Inc()
		return
	}

	s.dispatch(runID, occ, tasks)
	if s.marker != nil && s.marker.Matches(occ) {
		updated := *s.marker
		updated.ResetCount += len(tasks)
		if err := s.guard.Record(s.ctx, updated); err != nil {
			s.log.Warn("failed to update execution marker", "error", err)
		} else {
			s.marker = &updated
		}
	}

	passesTotal.WithLabelValues(TriggerCooldown, "completed").Inc()
	s.emit(PassCompletedEvent{RunID: runID, Window: occ.Key(), Trigger: TriggerCooldown, Tasks: tasks, Skips: skips})
}

// plan splits subs into reset tasks and skips. Blocked subscriptions whose
// cooldown ends inside the occurrence are returned as cooldown entries.
// When only is non-nil, other subscriptions are ignored.
func (s *Scheduler) plan(occ reset.Occurrence, subs []models.Subscription, now time.Time, only map[int64]bool) ([]Task, []Skip, []Pending) {
	policy := reset.PolicyFor(s.cfg.Windows)

	var (
		tasks     []Task
		skips     []Skip
		cooldowns []Pending
	)
	for i := range subs {
		sub := &subs[i]
		if only != nil && !only[sub.ID] {
			continue
		}

		skip := Skip{SubscriptionID: sub.ID, Plan: sub.DisplayName()}
		if s.dispatched[sub.ID] {
			skip.Reason = "already reset in this window"
			skips = append(skips, skip)
			continue
		}

		elig := s.checker.CanReset(sub, occ.Window.RequiredResets, now)
		if !elig.Allowed {
			skip.Reason, skip.Blocker = elig.Reason, elig.Blocker
			skips = append(skips, skip)
			if elig.Blocker == reset.BlockCooldown && !elig.CooldownEnd.After(occ.End) {
				cooldowns = append(cooldowns, Pending{At: elig.CooldownEnd, SubscriptionIDs: []int64{sub.ID}})
			}
			s.log.Debug("subscription skipped", "subscription", sub.ID, "reason", elig.Reason)
			continue
		}

		decision := policy.Evaluate(sub, occ.Window.ID())
		if !decision.ShouldReset {
			skip.Reason = decision.Reason
			skips = append(skips, skip)
			s.log.Debug("subscription skipped", "subscription", sub.ID, "reason", decision.Reason)
			continue
		}

		tasks = append(tasks, Task{Subscription: sub.Clone(), Reason: decision.Reason})
	}
	return tasks, skips, cooldowns
}

// countSkips records the eligibility blockers of a pass that ran.
func countSkips(skips []Skip) {
	for _, sk := range skips {
		if sk.Blocker != reset.BlockNone {
			skipsTotal.WithLabelValues(sk.Blocker.String()).Inc()
		}
	}
}

func (s *Scheduler) armCooldowns(cooldowns []Pending) {
	gen := s.gen
	for _, c := range cooldowns {
		for _, id := range c.SubscriptionIDs {
			if s.registry.Arm(c.At, id, s.alarms, func(key string) {
				s.post(message{kind: msgCooldown, key: key, gen: gen})
			}) {
				s.log.Info("tracking cooldown", "subscription", id, "expires", c.At.Format(time.DateTime))
			}
		}
	}
	trackedCooldowns.Set(float64(s.registry.Len()))
}

// dispatch hands tasks to the executor without waiting for them.
func (s *Scheduler) dispatch(runID string, occ reset.Occurrence, tasks []Task) {
	if len(tasks) == 0 {
		return
	}
	for _, t := range tasks {
		s.dispatched[t.Subscription.ID] = true
	}

	ctx, window := s.ctx, occ.Key()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		results := s.executor.Execute(ctx, runID, tasks)
		s.post(message{kind: msgExecuted, runID: runID, window: window, results: results})
	}()
}

func (s *Scheduler) failPass(occ reset.Occurrence, runID, trigger string, err error) {
	s.log.Error("window pass failed", "run", runID, "window", occ.Key(), "trigger", trigger, "error", err)
	passesTotal.WithLabelValues(trigger, "failed").Inc()
	s.lastError = err.Error()
	s.emit(PassFailedEvent{RunID: runID, Window: occ.Key(), Trigger: trigger, Err: err})
	s.setState(StateInWindowProcessing)
}

func (s *Scheduler) setState(state State) {
	if s.state == state {
		return
	}
	s.log.Debug("state changed", "from", s.state, "to", state)
	s.state = state
	stateGauge.Set(float64(state))
	s.publish()
	s.emit(StateChangedEvent{Status: s.Status()})
}

// publish refreshes the status snapshot from run-loop state.
func (s *Scheduler) publish() {
	st := Status{
		State:       s.state,
		Enabled:     s.cfg.Enabled,
		NextWake:    s.wakeAt,
		Cooldowns:   s.registry.Pending(),
		LastResults: s.lastResults,
		LastRun:     s.lastRun,
		LastError:   s.lastError,
	}
	if s.active != nil {
		occ := *s.active
		st.Active = &occ
	}
	if s.next != nil {
		occ := *s.next
		st.Next = &occ
	}
	if s.marker != nil {
		m := *s.marker
		st.Marker = &m
	}
	trackedCooldowns.Set(float64(len(st.Cooldowns)))

	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

func (s *Scheduler) emit(event Event) {
	select {
	case s.events <- event:
		return
	default:
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- event:
	default:
	}
}

func (s *Scheduler) shutdown() {
	s.cancelAlarms()
	s.log.Info("scheduler stopped")
}

// drain waits until every message posted before it has been handled and
// dispatched resets have settled.
func (s *Scheduler) drain() {
	s.barrier()
	s.inflight.Wait()
	s.barrier()
}

func (s *Scheduler) barrier() {
	done := make(chan struct{})
	s.post(message{kind: msgSync, done: done})
	select {
	case <-done:
	case <-s.stopped:
	}
}
