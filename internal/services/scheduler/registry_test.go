package scheduler

import (
	"slices"
	"testing"
	"time"
)

func TestRegistry_ArmSharesKey(t *testing.T) {
	alarms := &fakeAlarms{}
	r := NewRegistry()
	at := time.Date(2025, 3, 4, 18, 57, 0, 0, time.Local)

	var fired []string
	fire := func(key string) { fired = append(fired, key) }

	if !r.Arm(at, 1, alarms, fire) {
		t.Fatal("first Arm should arm an alarm")
	}
	if r.Arm(at.Add(300*time.Millisecond), 2, alarms, fire) {
		t.Error("same-second Arm should join the existing alarm")
	}
	if r.Arm(at, 1, alarms, fire) {
		t.Error("duplicate id should not arm")
	}

	if got := len(alarms.armed()); got != 1 {
		t.Fatalf("armed alarms = %d, want 1", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	alarms.fireDue(at)
	if len(fired) != 1 || fired[0] != TimeKey(at) {
		t.Fatalf("fired = %v", fired)
	}

	ids, ok := r.Take(fired[0])
	if !ok {
		t.Fatal("Take() reported missing entry")
	}
	if !slices.Equal(ids, []int64{1, 2}) {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
	if _, ok := r.Take(fired[0]); ok {
		t.Error("second Take() should report false")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Take", r.Len())
	}
}

func TestRegistry_CancelAll(t *testing.T) {
	alarms := &fakeAlarms{}
	r := NewRegistry()
	base := time.Date(2025, 3, 4, 18, 56, 0, 0, time.Local)

	r.Arm(base.Add(2*time.Minute), 1, alarms, func(string) {})
	r.Arm(base.Add(time.Minute), 2, alarms, func(string) {})

	pending := r.Pending()
	if len(pending) != 2 || !pending[0].At.Before(pending[1].At) {
		t.Fatalf("Pending() = %+v, want two entries earliest first", pending)
	}

	if n := r.CancelAll(); n != 2 {
		t.Errorf("CancelAll() = %d, want 2", n)
	}
	if got := alarms.armed(); len(got) != 0 {
		t.Errorf("alarms still armed: %v", got)
	}
	if _, ok := r.Take(TimeKey(base.Add(time.Minute))); ok {
		t.Error("Take() after CancelAll should report false")
	}
}
