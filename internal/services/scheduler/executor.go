package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// verifyFreshness is how recent lastCreditReset must be to confirm a reset.
const verifyFreshness = 60 * time.Second

// Resetter issues reset requests to the billing service.
type Resetter interface {
	ResetCredits(ctx context.Context, subscriptionID int64) error
}

// SubscriptionSource fetches a subscription snapshot.
type SubscriptionSource interface {
	FetchSubscriptions(ctx context.Context) ([]models.Subscription, error)
}

// Outcome is the settled state of a reset task.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFailed     Outcome = "failed"
	OutcomeUnverified Outcome = "unverified"
)

// Task is one subscription to reset and why.
type Task struct {
	Reason       string
	Subscription models.Subscription
}

// Result is a settled task.
type Result struct {
	FinishedAt time.Time
	Err        error
	Outcome    Outcome
	Task       Task
	Delay      time.Duration
}

// ExecutorConfig tunes the executor.
type ExecutorConfig struct {
	MaxJitter   time.Duration
	VerifyDelay time.Duration
	Verify      bool
}

// Executor dispatches reset tasks concurrently, each after its own random
// delay, and waits for all of them to settle.
type Executor struct {
	resetter Resetter
	source   SubscriptionSource
	jitter   func(max time.Duration) time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	log      *slog.Logger
	cfg      ExecutorConfig
}

// NewExecutor creates an executor. source is only used for verification.
func NewExecutor(resetter Resetter, source SubscriptionSource, cfg ExecutorConfig) *Executor {
	return &Executor{
		resetter: resetter,
		source:   source,
		cfg:      cfg,
		jitter:   uniformJitter,
		sleep:    sleepContext,
		now:      time.Now,
		log:      logger.With("executor"),
	}
}

// Execute runs tasks and returns their results in task order. A failing
// task never stops the others and is not retried.
func (e *Executor) Execute(ctx context.Context, runID string, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.run(ctx, runID, tasks[i])
		}()
	}
	wg.Wait()

	if e.cfg.Verify {
		e.verify(ctx, runID, tasks, results)
	}

	for _, r := range results {
		resetsTotal.WithLabelValues(string(r.Outcome)).Inc()
	}
	return results
}

func (e *Executor) run(ctx context.Context, runID string, task Task) Result {
	sub := &task.Subscription
	delay := e.jitter(e.cfg.MaxJitter)
	result := Result{Task: task, Delay: delay}

	e.log.Info("reset scheduled",
		"run", runID, "subscription", sub.ID, "plan", sub.DisplayName(),
		"delay", delay.Round(time.Millisecond), "reason", task.Reason)

	if err := e.sleep(ctx, delay); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		result.FinishedAt = e.now()
		return result
	}

	if err := e.resetter.ResetCredits(ctx, sub.ID); err != nil {
		e.log.Error("reset failed", "run", runID, "subscription", sub.ID, "plan", sub.DisplayName(), "error", err)
		result.Outcome = OutcomeFailed
		result.Err = err
		result.FinishedAt = e.now()
		return result
	}

	e.log.Info("reset succeeded", "run", runID, "subscription", sub.ID, "plan", sub.DisplayName())
	result.Outcome = OutcomeSucceeded
	result.FinishedAt = e.now()
	return result
}

// verify re-fetches once and downgrades successes the snapshot does not
// confirm. A failed fetch leaves results untouched.
func (e *Executor) verify(ctx context.Context, runID string, tasks []Task, results []Result) {
	pending := 0
	for _, r := range results {
		if r.Outcome == OutcomeSucceeded {
			pending++
		}
	}
	if pending == 0 || e.source == nil {
		return
	}

	if err := e.sleep(ctx, e.cfg.VerifyDelay); err != nil {
		return
	}

	subs, err := e.source.FetchSubscriptions(ctx)
	if err != nil {
		e.log.Warn("verification fetch failed", "run", runID, "error", err)
		return
	}

	byID := make(map[int64]*models.Subscription, len(subs))
	for i := range subs {
		byID[subs[i].ID] = &subs[i]
	}

	now := e.now()
	for i := range results {
		if results[i].Outcome != OutcomeSucceeded {
			continue
		}
		before := &tasks[i].Subscription
		after, ok := byID[before.ID]
		if ok && confirmed(before, after, now) {
			continue
		}
		results[i].Outcome = OutcomeUnverified
		e.log.Warn("reset not confirmed by snapshot", "run", runID, "subscription", before.ID, "plan", before.DisplayName())
	}
}

func confirmed(before, after *models.Subscription, now time.Time) bool {
	if after.IsFull() {
		return true
	}
	if last, ok := after.LastReset(); ok && now.Sub(last) <= verifyFreshness {
		return true
	}
	return after.ResetTimes < before.ResetTimes
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max + 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
