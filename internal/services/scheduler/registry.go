package scheduler

import (
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Pending is an armed cooldown-expiry wake-up.
type Pending struct {
	At              time.Time
	Key             string
	SubscriptionIDs []int64
}

type registryEntry struct {
	at     time.Time
	cancel func()
	ids    []int64
}

// Registry tracks cooldown-expiry alarms by time key. Subscriptions whose
// cooldowns end at the same second share one alarm. Entries are removed
// when taken after firing or when cancelled.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// TimeKey is the registry key for an alarm at t.
func TimeKey(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// Arm registers id for a wake-up at at. The first subscription for a key
// arms the alarm with fire; later ones join it. It reports whether a new
// alarm was armed.
func (r *Registry) Arm(at time.Time, id int64, alarms Alarms, fire func(key string)) bool {
	key := TimeKey(at)

	r.mu.Lock()
	if entry, ok := r.entries[key]; ok {
		if !slices.Contains(entry.ids, id) {
			entry.ids = append(entry.ids, id)
		}
		r.mu.Unlock()
		return false
	}
	entry := &registryEntry{at: at, ids: []int64{id}}
	r.entries[key] = entry
	r.mu.Unlock()

	cancel := alarms.At(at, func() { fire(key) })

	r.mu.Lock()
	if current, ok := r.entries[key]; ok && current == entry {
		entry.cancel = cancel
	}
	r.mu.Unlock()
	return true
}

// Take removes the entry for key and returns its subscriptions. It reports
// false when the entry was already taken or cancelled.
func (r *Registry) Take(key string) ([]int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	delete(r.entries, key)
	return entry.ids, true
}

// CancelAll cancels every armed alarm and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	return len(entries)
}

// Len returns the number of armed alarms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Pending lists armed alarms, earliest first.
func (r *Registry) Pending() []Pending {
	r.mu.Lock()
	out := make([]Pending, 0, len(r.entries))
	for key, entry := range r.entries {
		out = append(out, Pending{Key: key, At: entry.at, SubscriptionIDs: slices.Clone(entry.ids)})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
