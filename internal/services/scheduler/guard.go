package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/db"
	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
)

// MarkerKey is the store key of the execution marker.
const MarkerKey = "last_execution"

// legacyMarkerKey held {hour, date} markers with JavaScript date strings.
const legacyMarkerKey = "last_execution_time"

// Store is the persistent key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Marker records the last processed window occurrence.
type Marker struct {
	Window     string `json:"window"`
	Date       string `json:"date"`
	RunID      string `json:"runId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	ResetCount int    `json:"resetCount"`
	SkipCount  int    `json:"skipCount"`
}

// Matches reports whether the marker covers occ.
func (m *Marker) Matches(occ reset.Occurrence) bool {
	return m != nil && m.Window == occ.Window.ID() && m.Date == occ.Date()
}

// Time returns the marker timestamp.
func (m *Marker) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Guard persists the execution marker so a window is processed at most
// once per date, across restarts.
type Guard struct {
	store Store
}

// NewGuard returns a guard backed by store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Load returns the stored marker, or nil when none exists.
func (g *Guard) Load(ctx context.Context) (*Marker, error) {
	raw, err := g.store.Get(ctx, MarkerKey)
	if errors.Is(err, db.ErrNotFound) {
		return g.migrateLegacy(ctx)
	}
	if err != nil {
		return nil, err
	}

	var m Marker
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logger.Warn("discarding unreadable execution marker", "error", err)
		return nil, nil
	}
	return &m, nil
}

// Done reports whether occ was already processed.
func (g *Guard) Done(ctx context.Context, occ reset.Occurrence) (bool, error) {
	m, err := g.Load(ctx)
	if err != nil {
		return false, err
	}
	return m.Matches(occ), nil
}

// Record stores m as the latest marker.
func (g *Guard) Record(ctx context.Context, m Marker) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode marker: %w", err)
	}
	return g.store.Set(ctx, MarkerKey, string(raw))
}

// Clear forgets the marker.
func (g *Guard) Clear(ctx context.Context) error {
	return g.store.Remove(ctx, MarkerKey)
}

type legacyMarker struct {
	Date       string `json:"date"`
	Hour       int    `json:"hour"`
	Timestamp  int64  `json:"timestamp"`
	ResetCount int    `json:"resetCount"`
	SkipCount  int    `json:"skipCount"`
}

// migrateLegacy converts a marker written by the browser extension, whose
// windows were always at minute 55.
func (g *Guard) migrateLegacy(ctx context.Context) (*Marker, error) {
	raw, err := g.store.Get(ctx, legacyMarkerKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var old legacyMarker
	if err := json.Unmarshal([]byte(raw), &old); err != nil {
		_ = g.store.Remove(ctx, legacyMarkerKey)
		return nil, nil
	}

	date := old.Date
	if t, err := time.ParseInLocation("Mon Jan 02 2006", old.Date, time.Local); err == nil {
		date = t.Format(reset.DateLayout)
	}

	m := Marker{
		Window:     fmt.Sprintf("%02d:55", old.Hour),
		Date:       date,
		Timestamp:  old.Timestamp,
		ResetCount: old.ResetCount,
		SkipCount:  old.SkipCount,
	}
	if err := g.Record(ctx, m); err != nil {
		return nil, err
	}
	_ = g.store.Remove(ctx, legacyMarkerKey)
	logger.Info("migrated legacy execution marker", "window", m.Window, "date", m.Date)
	return &m, nil
}
