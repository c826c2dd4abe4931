// Package credits polls the billing API for subscriptions and keeps the
// latest snapshot cached in memory and in the database.
package credits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// ErrRefreshInProgress is returned when a refresh is already running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Fetcher reads account data from the billing API.
type Fetcher interface {
	FetchSubscriptions(ctx context.Context) ([]models.Subscription, error)
	FetchDashboard(ctx context.Context) (*models.Dashboard, error)
}

// Store persists subscription snapshots.
type Store interface {
	SaveSubscriptions(ctx context.Context, subs []models.Subscription, fetchedAt time.Time) error
	LoadSubscriptions(ctx context.Context) ([]models.Subscription, time.Time, error)
	InsertCreditSnapshots(ctx context.Context, subs []models.Subscription, ts time.Time) error
}

// Snapshot is the latest known account state.
type Snapshot struct {
	FetchedAt     time.Time
	Dashboard     *models.Dashboard
	Error         string
	Subscriptions []models.Subscription
	// Cached is true when the data was loaded from the database and not
	// yet confirmed by a fetch.
	Cached bool
}

// Subscription returns the subscription with the given id.
func (s *Snapshot) Subscription(id int64) (models.Subscription, bool) {
	for i := range s.Subscriptions {
		if s.Subscriptions[i].ID == id {
			return s.Subscriptions[i].Clone(), true
		}
	}
	return models.Subscription{}, false
}

func (s *Snapshot) clone() *Snapshot {
	out := *s
	out.Subscriptions = make([]models.Subscription, len(s.Subscriptions))
	for i := range s.Subscriptions {
		out.Subscriptions[i] = s.Subscriptions[i].Clone()
	}
	if s.Dashboard != nil {
		d := *s.Dashboard
		out.Dashboard = &d
	}
	return &out
}

// Event represents a credits service event.
type Event struct {
	Error    error
	Snapshot *Snapshot
	Type     EventType
}

// EventType defines the type of credits event.
type EventType int

const (
	// EventUpdated indicates that subscriptions were fetched.
	EventUpdated EventType = iota
	// EventRefreshing indicates that a refresh is in progress.
	EventRefreshing
	// EventError indicates that a refresh failed.
	EventError
)

// Stats aggregates the current snapshot.
type Stats struct {
	TotalCredits  float64
	TotalLimit    float64
	Subscriptions int
	Paygo         int
	ResetsLeft    int
}

// Service manages subscription fetching and caching.
type Service struct {
	fetcher    Fetcher
	store      Store
	snapshot   *Snapshot
	now        func() time.Time
	eventChan  chan Event
	stopChan   chan struct{}
	intervalCh chan time.Duration
	interval   time.Duration
	mu         sync.RWMutex
	refreshMu  sync.Mutex
	closeOnce  sync.Once
}

// New creates a credits service and loads the cached snapshot. A
// non-positive interval disables polling until SetInterval is called.
func New(ctx context.Context, fetcher Fetcher, store Store, interval time.Duration) *Service {
	s := &Service{
		fetcher:    fetcher,
		store:      store,
		now:        time.Now,
		snapshot:   &Snapshot{},
		eventChan:  make(chan Event, 100),
		stopChan:   make(chan struct{}),
		intervalCh: make(chan time.Duration, 1),
		interval:   interval,
	}

	if store != nil {
		subs, fetchedAt, err := store.LoadSubscriptions(ctx)
		switch {
		case err != nil:
			logger.Warn("failed to load cached subscriptions", "error", err)
		case len(subs) > 0:
			s.snapshot = &Snapshot{Subscriptions: subs, FetchedAt: fetchedAt, Cached: true}
		}
	}

	return s
}

// Start begins background polling with an initial refresh.
func (s *Service) Start(ctx context.Context) {
	go s.poll(ctx)
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Get returns a copy of the latest snapshot.
func (s *Service) Get() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// Refresh fetches subscriptions and the dashboard concurrently. A dashboard
// failure keeps the previous dashboard; a subscription failure keeps the
// previous snapshot and is returned.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	if !s.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	s.sendEvent(Event{Type: EventRefreshing})

	var (
		subs      []models.Subscription
		dashboard *models.Dashboard
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subs, err = s.fetcher.FetchSubscriptions(gctx)
		return err
	})
	g.Go(func() error {
		d, err := s.fetcher.FetchDashboard(gctx)
		if err != nil {
			logger.Warn("failed to fetch dashboard", "error", err)
			return nil
		}
		dashboard = d
		return nil
	})

	if err := g.Wait(); err != nil {
		return s.handleError(err)
	}

	now := s.now()
	if s.store != nil {
		if err := s.store.SaveSubscriptions(ctx, subs, now); err != nil {
			logger.Error("failed to cache subscriptions", "error", err)
		}
		if err := s.store.InsertCreditSnapshots(ctx, subs, now); err != nil {
			logger.Error("failed to record credit snapshots", "error", err)
		}
	}

	s.mu.Lock()
	if dashboard == nil {
		dashboard = s.snapshot.Dashboard
	}
	s.snapshot = &Snapshot{Subscriptions: subs, Dashboard: dashboard, FetchedAt: now}
	snap := s.snapshot.clone()
	s.mu.Unlock()

	s.sendEvent(Event{Type: EventUpdated, Snapshot: snap})
	return snap, nil
}

func (s *Service) handleError(err error) (*Snapshot, error) {
	s.mu.Lock()
	s.snapshot.Error = err.Error()
	snap := s.snapshot.clone()
	s.mu.Unlock()

	s.sendEvent(Event{Type: EventError, Error: err, Snapshot: snap})
	return snap, fmt.Errorf("failed to refresh subscriptions: %w", err)
}

// SetInterval changes the polling interval. A non-positive interval pauses
// polling.
func (s *Service) SetInterval(d time.Duration) {
	select {
	case <-s.intervalCh:
	default:
	}
	s.intervalCh <- d
}

// Stats returns aggregates over the current snapshot.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for i := range s.snapshot.Subscriptions {
		sub := &s.snapshot.Subscriptions[i]
		stats.Subscriptions++
		if sub.IsPaygo() {
			stats.Paygo++
			continue
		}
		stats.TotalCredits += sub.CurrentCredits
		stats.TotalLimit += sub.CreditLimit()
		stats.ResetsLeft += max(sub.ResetTimes, 0)
	}
	return stats
}

// poll runs the background polling goroutine.
func (s *Service) poll(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		logger.Error("initial refresh failed", "error", err)
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	reset := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			tick = ticker.C
		}
	}
	reset(s.interval)
	defer func() { reset(0) }()

	for {
		select {
		case <-tick:
			if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
				logger.Error("failed to refresh subscriptions", "error", err)
			}
		case d := <-s.intervalCh:
			reset(d)
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		}
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops polling.
func (s *Service) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	return nil
}
