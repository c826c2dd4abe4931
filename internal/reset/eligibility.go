package reset

import (
	"fmt"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// DefaultCooldown is the minimum time between two resets of a subscription.
const DefaultCooldown = 24 * time.Hour

// Blocker names the check that rejected a reset.
type Blocker int

const (
	BlockNone Blocker = iota
	BlockPaygo
	BlockFull
	BlockResetBudget
	BlockCooldown
)

func (b Blocker) String() string {
	switch b {
	case BlockPaygo:
		return "paygo"
	case BlockFull:
		return "full"
	case BlockResetBudget:
		return "reset-budget"
	case BlockCooldown:
		return "cooldown"
	default:
		return "none"
	}
}

// Eligibility is the outcome of Checker.CanReset. CooldownEnd is set only
// when Blocker is BlockCooldown.
type Eligibility struct {
	CooldownEnd time.Time
	Reason      string
	Blocker     Blocker
	Allowed     bool
}

// Checker applies the hard eligibility rules.
type Checker struct {
	Cooldown time.Duration
}

// NewChecker returns a Checker; a non-positive cooldown selects
// DefaultCooldown.
func NewChecker(cooldown time.Duration) Checker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return Checker{Cooldown: cooldown}
}

// CanReset reports whether sub may be reset at now given the window's
// required reset count.
func (c Checker) CanReset(sub *models.Subscription, required int, now time.Time) Eligibility {
	if sub.IsPaygo() {
		return Eligibility{Blocker: BlockPaygo, Reason: "pay-as-you-go plan"}
	}
	if sub.IsFull() {
		return Eligibility{Blocker: BlockFull, Reason: "credits already full"}
	}
	if sub.ResetTimes < required {
		return Eligibility{
			Blocker: BlockResetBudget,
			Reason:  fmt.Sprintf("need %d resets, have %d", required, sub.ResetTimes),
		}
	}
	if end, ok := c.CooldownEnd(sub); ok && now.Before(end) {
		return Eligibility{
			Blocker:     BlockCooldown,
			Reason:      "cooldown until " + end.Format("2006-01-02 15:04:05"),
			CooldownEnd: end,
		}
	}
	return Eligibility{Allowed: true}
}

// CooldownEnd returns when the cooldown after the last reset ends.
func (c Checker) CooldownEnd(sub *models.Subscription) (time.Time, bool) {
	last, ok := sub.LastReset()
	if !ok {
		return time.Time{}, false
	}
	return last.Add(c.cooldown()), true
}

// CooldownRemaining returns the cooldown left at now, or zero.
func (c Checker) CooldownRemaining(sub *models.Subscription, now time.Time) time.Duration {
	end, ok := c.CooldownEnd(sub)
	if !ok || !now.Before(end) {
		return 0
	}
	return end.Sub(now)
}

func (c Checker) cooldown() time.Duration {
	if c.Cooldown <= 0 {
		return DefaultCooldown
	}
	return c.Cooldown
}
