package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
)

func TestGuard_RecordAndDone(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(newMemStore())

	day := time.Date(2025, 3, 4, 12, 0, 0, 0, time.Local)
	w := reset.DefaultWindows()[0]
	res := reset.Resolve(w.Target(day).Add(time.Minute), reset.DefaultWindows())
	if res.Active == nil {
		t.Fatal("expected active window")
	}
	occ := *res.Active

	done, err := g.Done(ctx, occ)
	if err != nil || done {
		t.Fatalf("Done() = %v, %v; want false, nil", done, err)
	}

	if err := g.Record(ctx, Marker{Window: occ.Window.ID(), Date: occ.Date(), Timestamp: day.UnixMilli(), ResetCount: 1}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	done, err = g.Done(ctx, occ)
	if err != nil || !done {
		t.Fatalf("Done() = %v, %v; want true, nil", done, err)
	}

	// Same window on the next day is a new occurrence.
	next := reset.Resolve(w.Target(day.AddDate(0, 0, 1)).Add(time.Minute), reset.DefaultWindows())
	if done, _ := g.Done(ctx, *next.Active); done {
		t.Error("marker should not cover the next day")
	}

	if err := g.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if m, _ := g.Load(ctx); m != nil {
		t.Errorf("Load() after Clear = %+v", m)
	}
}

func TestGuard_MigratesLegacyMarker(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.data[legacyMarkerKey] = `{"hour":23,"date":"Tue Mar 04 2025","timestamp":1741103700000,"resetCount":2,"skipCount":1}`

	g := NewGuard(store)
	m, err := g.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m == nil {
		t.Fatal("Load() = nil, want migrated marker")
	}
	if m.Window != "23:55" || m.Date != "2025-03-04" || m.ResetCount != 2 || m.SkipCount != 1 {
		t.Errorf("migrated marker = %+v", m)
	}
	if _, ok := store.data[legacyMarkerKey]; ok {
		t.Error("legacy key should be removed")
	}
	if _, ok := store.data[MarkerKey]; !ok {
		t.Error("marker should be stored under the new key")
	}
}

func TestGuard_UnreadableMarker(t *testing.T) {
	store := newMemStore()
	store.data[MarkerKey] = "{not json"

	m, err := NewGuard(store).Load(context.Background())
	if err != nil || m != nil {
		t.Errorf("Load() = %+v, %v; want nil, nil", m, err)
	}
}
