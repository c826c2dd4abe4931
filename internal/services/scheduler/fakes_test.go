package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/db"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeAlarm struct {
	at        time.Time
	fn        func()
	cancelled bool
	fired     bool
}

type fakeAlarms struct {
	mu     sync.Mutex
	alarms []*fakeAlarm
}

func (f *fakeAlarms) At(t time.Time, fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &fakeAlarm{at: t, fn: fn}
	f.alarms = append(f.alarms, a)
	return func() {
		f.mu.Lock()
		a.cancelled = true
		f.mu.Unlock()
	}
}

// armed returns the times of alarms that are neither fired nor cancelled.
func (f *fakeAlarms) armed() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Time
	for _, a := range f.alarms {
		if !a.cancelled && !a.fired {
			out = append(out, a.at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// fireDue fires every live alarm due at now, earliest first.
func (f *fakeAlarms) fireDue(now time.Time) int {
	f.mu.Lock()
	var due []*fakeAlarm
	for _, a := range f.alarms {
		if !a.cancelled && !a.fired && !a.at.After(now) {
			a.fired = true
			due = append(due, a)
		}
	}
	f.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, a := range due {
		a.fn()
	}
	return len(due)
}

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	setErr  error
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", m.loadErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", db.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) setFailure(err error) {
	m.mu.Lock()
	m.setErr = err
	m.mu.Unlock()
}

func (m *memStore) failLoad(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

type fakeSource struct {
	mu    sync.Mutex
	subs  []models.Subscription
	err   error
	calls int
}

func (f *fakeSource) FetchSubscriptions(context.Context) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Subscription, len(f.subs))
	for i := range f.subs {
		out[i] = f.subs[i].Clone()
	}
	return out, nil
}

func (f *fakeSource) set(subs ...models.Subscription) {
	f.mu.Lock()
	f.subs = subs
	f.mu.Unlock()
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTokens struct {
	mu  sync.Mutex
	err error
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

func (f *fakeTokens) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls [][]Task
}

func (f *fakeDispatcher) Execute(_ context.Context, _ string, tasks []Task) []Result {
	f.mu.Lock()
	f.calls = append(f.calls, tasks)
	f.mu.Unlock()

	results := make([]Result, len(tasks))
	for i, task := range tasks {
		results[i] = Result{Task: task, Outcome: OutcomeSucceeded}
	}
	return results
}

// resetIDs returns the subscription ids of every dispatched task in order.
func (f *fakeDispatcher) resetIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, call := range f.calls {
		for _, task := range call {
			ids = append(ids, task.Subscription.ID)
		}
	}
	return ids
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testSub(id int64, credits float64, resets int) models.Subscription {
	return models.Subscription{
		ID:                   id,
		SubscriptionPlanName: "PRO",
		SubscriptionStatus:   models.StatusActive,
		IsActive:             true,
		CurrentCredits:       credits,
		ResetTimes:           resets,
		SubscriptionPlan:     models.SubscriptionPlan{CreditLimit: 100},
	}
}

func stamp(t time.Time) *string {
	v := t.Format(time.RFC3339)
	return &v
}
