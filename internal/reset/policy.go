package reset

import (
	"fmt"
	"slices"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// Reasons reported by Policy.Evaluate.
const (
	ReasonAlreadyFull    = "already full"
	ReasonNoResetsLeft   = "no resets remaining"
	ReasonReservedNight  = "reserved for night window"
	ReasonFallback       = "fallback reset before the daily boundary"
	ReasonOutsideWindows = "not in an execution window"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Reason      string
	ShouldReset bool
}

// Policy is the reset-count reservation policy. Early windows only spend a
// reset when at least one more remains for the late window; the late window
// spends whatever is left because resets do not carry over the day. Windows
// are identified by Window.ID.
type Policy struct {
	Early []string
	Late  string
}

// DefaultPolicy matches DefaultWindows.
func DefaultPolicy() Policy {
	return PolicyFor(DefaultWindows())
}

// PolicyFor derives window roles from configuration: the latest enabled
// window of the day is the late window, all others are early.
func PolicyFor(windows []Window) Policy {
	var p Policy
	latest := -1
	for _, w := range windows {
		if !w.Enabled || w.Validate() != nil {
			continue
		}
		if minute := w.Hour*60 + w.Minute; minute > latest {
			latest = minute
			p.Late = w.ID()
		}
	}
	for _, w := range windows {
		if !w.Enabled || w.Validate() != nil || w.ID() == p.Late {
			continue
		}
		if id := w.ID(); !slices.Contains(p.Early, id) {
			p.Early = append(p.Early, id)
		}
	}
	return p
}

// Evaluate decides whether sub should be reset in the window with the given
// ID.
func (p Policy) Evaluate(sub *models.Subscription, windowID string) Decision {
	if sub.IsFull() {
		return Decision{Reason: ReasonAlreadyFull}
	}
	if sub.ResetTimes <= 0 {
		return Decision{Reason: ReasonNoResetsLeft}
	}

	switch {
	case p.Late != "" && windowID == p.Late:
		return Decision{ShouldReset: true, Reason: ReasonFallback}
	case slices.Contains(p.Early, windowID):
		if sub.ResetTimes > 1 {
			return Decision{
				ShouldReset: true,
				Reason:      fmt.Sprintf("reset to maximize window usage (%d resets remaining)", sub.ResetTimes),
			}
		}
		return Decision{Reason: ReasonReservedNight}
	default:
		return Decision{Reason: ReasonOutsideWindows}
	}
}
