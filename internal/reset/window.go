// Package reset holds the pure decision logic for scheduled credit resets:
// which window is active, whether a subscription may be reset, and whether
// the reset policy wants it reset now.
package reset

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout formats the calendar date a window occurrence belongs to.
const DateLayout = "2006-01-02"

const maxSpan = 24 * time.Hour

// Window is a daily time of day at which reset eligibility is evaluated.
// The window is active from JitterBeforeMinutes before the target until
// SpanMinutes after it, both ends inclusive.
type Window struct {
	Hour                int  `json:"hour"`
	Minute              int  `json:"minute"`
	RequiredResets      int  `json:"requiredResets"`
	JitterBeforeMinutes int  `json:"jitterBeforeMinutes,omitempty"`
	SpanMinutes         int  `json:"spanMinutes"`
	Enabled             bool `json:"enabled"`
}

// ID identifies the window as HH:MM.
func (w Window) ID() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// Lead is the part of the window before the nominal target.
func (w Window) Lead() time.Duration {
	return time.Duration(w.JitterBeforeMinutes) * time.Minute
}

// Span is the part of the window after the nominal target.
func (w Window) Span() time.Duration {
	return time.Duration(w.SpanMinutes) * time.Minute
}

// Validate reports a malformed window.
func (w Window) Validate() error {
	var errs []error
	if w.Hour < 0 || w.Hour > 23 {
		errs = append(errs, fmt.Errorf("hour %d out of range", w.Hour))
	}
	if w.Minute < 0 || w.Minute > 59 {
		errs = append(errs, fmt.Errorf("minute %d out of range", w.Minute))
	}
	if w.JitterBeforeMinutes < 0 || w.SpanMinutes < 0 {
		errs = append(errs, errors.New("negative window span"))
	}
	if w.Lead()+w.Span() >= maxSpan {
		errs = append(errs, errors.New("window spans a full day"))
	}
	if w.RequiredResets < 0 {
		errs = append(errs, errors.New("negative required resets"))
	}
	return errors.Join(errs...)
}

// Target returns the window's nominal time on the calendar day of day.
func (w Window) Target(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, w.Hour, w.Minute, 0, 0, day.Location())
}

// Occurrence is one dated instance of a window.
type Occurrence struct {
	Target time.Time
	Start  time.Time
	End    time.Time
	Window Window
	Index  int
}

// Date is the calendar date of the occurrence's target.
func (o Occurrence) Date() string {
	return o.Target.Format(DateLayout)
}

// Key identifies the occurrence for de-duplication.
func (o Occurrence) Key() string {
	return o.Window.ID() + "@" + o.Date()
}

// Contains reports whether t falls within the occurrence, inclusively.
func (o Occurrence) Contains(t time.Time) bool {
	return !t.Before(o.Start) && !t.After(o.End)
}

func occurrence(w Window, index int, target time.Time) Occurrence {
	return Occurrence{
		Window: w,
		Index:  index,
		Target: target,
		Start:  target.Add(-w.Lead()),
		End:    target.Add(w.Span()),
	}
}

// Resolution is the result of Resolve.
type Resolution struct {
	// Active is the window occurrence containing now, if any.
	Active *Occurrence
	// Next is the enabled window with the earliest target strictly after
	// now. It is nil when no window is enabled.
	Next *Occurrence
}

// NextStart returns the nominal target of the next window, or the zero
// time when there is none.
func (r Resolution) NextStart() time.Time {
	if r.Next == nil {
		return time.Time{}
	}
	return r.Next.Target
}

// Resolve finds the active window at now and the next window target.
// Disabled and malformed windows are ignored. Overlaps and ties go to the
// window declared first.
func Resolve(now time.Time, windows []Window) Resolution {
	var res Resolution

	for i, w := range windows {
		if !w.Enabled || w.Validate() != nil {
			continue
		}

		if res.Active == nil {
			// Spans may cross midnight in either direction.
			for _, offset := range []int{0, -1, 1} {
				occ := occurrence(w, i, w.Target(now.AddDate(0, 0, offset)))
				if occ.Contains(now) {
					res.Active = &occ
					break
				}
			}
		}

		target := w.Target(now)
		if !target.After(now) {
			target = w.Target(now.AddDate(0, 0, 1))
		}
		if res.Next == nil || target.Before(res.Next.Target) {
			occ := occurrence(w, i, target)
			res.Next = &occ
		}
	}

	return res
}

// HasEnabled reports whether any well-formed window is enabled.
func HasEnabled(windows []Window) bool {
	for _, w := range windows {
		if w.Enabled && w.Validate() == nil {
			return true
		}
	}
	return false
}

// DefaultWindows returns the evening and night windows.
func DefaultWindows() []Window {
	return []Window{
		{Hour: 18, Minute: 55, SpanMinutes: 5, RequiredResets: 2, Enabled: true},
		{Hour: 23, Minute: 55, SpanMinutes: 5, RequiredResets: 1, Enabled: true},
	}
}
