// Package projection estimates credit depletion from recorded snapshots.
package projection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

const (
	historyWindow    = 24 * time.Hour
	maxSampleGap     = 30 * time.Minute
	lowConfThreshold = 6
	medConfThreshold = 24
)

// HistoryStore provides recorded credit snapshots.
type HistoryStore interface {
	GetCreditHistory(ctx context.Context, subscriptionID int64, since time.Time) ([]models.CreditSnapshot, error)
}

// Service calculates and caches projections per subscription.
type Service struct {
	store HistoryStore
	now   func() time.Time
	cache map[int64]*models.CreditProjection
	mu    sync.RWMutex
}

// New creates a projection service.
func New(store HistoryStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		cache: make(map[int64]*models.CreditProjection),
	}
}

// Calculate projects sub's balance against the next scheduled reset. A
// zero nextReset means no reset is scheduled.
func (s *Service) Calculate(ctx context.Context, sub *models.Subscription, nextReset time.Time) (*models.CreditProjection, error) {
	now := s.now()

	since := now.Add(-historyWindow)
	if last, ok := sub.LastReset(); ok && last.After(since) {
		since = last
	}

	history, err := s.store.GetCreditHistory(ctx, sub.ID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit history: %w", err)
	}

	proj := project(sub.CurrentCredits, history, nextReset, now)
	proj.SubscriptionID = sub.ID

	s.mu.Lock()
	s.cache[sub.ID] = proj
	s.mu.Unlock()

	return proj, nil
}

// CalculateAll projects every subscription, skipping pay-as-you-go plans.
func (s *Service) CalculateAll(ctx context.Context, subs []models.Subscription, nextReset time.Time) map[int64]*models.CreditProjection {
	out := make(map[int64]*models.CreditProjection, len(subs))
	for i := range subs {
		sub := &subs[i]
		if sub.IsPaygo() {
			continue
		}
		proj, err := s.Calculate(ctx, sub, nextReset)
		if err != nil {
			logger.Error("failed to calculate projection", "subscription", sub.ID, "error", err)
			continue
		}
		out[sub.ID] = proj
	}
	return out
}

// Get returns the cached projection for a subscription.
func (s *Service) Get(subscriptionID int64) *models.CreditProjection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[subscriptionID]
}

func project(credits float64, history []models.CreditSnapshot, nextReset, now time.Time) *models.CreditProjection {
	rate, points := consumptionRate(history)

	proj := &models.CreditProjection{
		Credits:     credits,
		Rate:        rate,
		NextReset:   nextReset,
		DataPoints:  points,
		Status:      models.ProjectionUnknown,
		LastUpdated: now,
	}

	switch {
	case points < lowConfThreshold:
		proj.Confidence = "low"
	case points < medConfThreshold:
		proj.Confidence = "medium"
	default:
		proj.Confidence = "high"
	}

	if !nextReset.IsZero() {
		proj.TimeUntilReset = max(nextReset.Sub(now), 0)
	}

	if rate <= 0 {
		proj.HoursLeft = math.Inf(1)
		if !nextReset.IsZero() && points > 0 {
			proj.Status = models.ProjectionSafe
		}
		return proj
	}

	proj.HoursLeft = credits / rate
	proj.DepleteAt = now.Add(time.Duration(proj.HoursLeft * float64(time.Hour)))

	if nextReset.IsZero() {
		return proj
	}

	proj.WillDepleteBefore = credits < rate*proj.TimeUntilReset.Hours()
	switch {
	case !proj.WillDepleteBefore:
		proj.Status = models.ProjectionSafe
	case proj.HoursLeft < 1:
		proj.Status = models.ProjectionCritical
	default:
		proj.Status = models.ProjectionWarning
	}
	return proj
}

// consumptionRate returns credits spent per hour over history, oldest
// first, and the number of intervals used. Balance increases and samples
// further apart than maxSampleGap are ignored.
func consumptionRate(history []models.CreditSnapshot) (float64, int) {
	var (
		spent   float64
		elapsed time.Duration
		points  int
	)
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 || gap > maxSampleGap {
			continue
		}
		elapsed += gap
		points++
		if drop := prev.Credits - cur.Credits; drop > 0 {
			spent += drop
		}
	}
	if elapsed <= 0 {
		return 0, points
	}
	return spent / elapsed.Hours(), points
}
