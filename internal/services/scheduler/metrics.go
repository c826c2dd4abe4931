package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credits",
		Subsystem: "scheduler",
		Name:      "resets_total",
		Help:      "Reset requests by outcome.",
	}, []string{"outcome"})

	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credits",
		Subsystem: "scheduler",
		Name:      "passes_total",
		Help:      "Window processing passes by trigger and result.",
	}, []string{"trigger", "result"})

	skipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credits",
		Subsystem: "scheduler",
		Name:      "skips_total",
		Help:      "Subscriptions skipped during a pass by blocker.",
	}, []string{"blocker"})

	stateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "credits",
		Subsystem: "scheduler",
		Name:      "state",
		Help:      "Current scheduler state (0 idle, 1 awaiting, 2 processing, 3 tracking).",
	})

	trackedCooldowns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "credits",
		Subsystem: "scheduler",
		Name:      "tracked_cooldowns",
		Help:      "Armed cooldown-expiry wake-ups.",
	})

	nextWakeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "credits",
		Subsystem: "scheduler",
		Name:      "next_wake_timestamp_seconds",
		Help:      "Unix time of the next armed window wake-up.",
	})
)
