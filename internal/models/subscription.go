// Package models defines data structures and domain types.
package models

import (
	"strings"
	"time"
)

// StatusActive is the subscriptionStatus value the billing API reports for
// a running subscription.
const StatusActive = "活跃中"

// paygoMarker identifies pay-as-you-go plans by name or type.
const paygoMarker = "PAYGO"

// SubscriptionPlan describes the plan a subscription is billed under.
type SubscriptionPlan struct {
	SubscriptionName string  `json:"subscriptionName"`
	BillingCycle     string  `json:"billingCycle"`
	Features         string  `json:"features"`
	PlanType         string  `json:"planType"`
	ID               int64   `json:"id"`
	Cost             float64 `json:"cost"`
	CreditLimit      float64 `json:"creditLimit"`
}

// Subscription is a read-only snapshot of a billing subscription.
// It is owned by the billing service; a reset is only visible in the next
// snapshot.
type Subscription struct {
	SubscriptionPlan     SubscriptionPlan `json:"subscriptionPlan"`
	LastCreditReset      *string          `json:"lastCreditReset"`
	EmployeeName         string           `json:"employeeName"`
	EmployeeEmail        string           `json:"employeeEmail"`
	SubscriptionPlanName string           `json:"subscriptionPlanName"`
	StartDate            string           `json:"startDate"`
	EndDate              string           `json:"endDate"`
	BillingCycle         string           `json:"billingCycle"`
	BillingCycleDesc     string           `json:"billingCycleDesc"`
	SubscriptionStatus   string           `json:"subscriptionStatus"`
	ID                   int64            `json:"id"`
	EmployeeID           int64            `json:"employeeId"`
	SubscriptionPlanID   int64            `json:"subscriptionPlanId"`
	CurrentCredits       float64          `json:"currentCredits"`
	Cost                 float64          `json:"cost"`
	RemainingDays        int              `json:"remainingDays"`
	ResetTimes           int              `json:"resetTimes"`
	IsActive             bool             `json:"isActive"`
	AutoRenew            bool             `json:"autoRenew"`
	AutoResetWhenZero    bool             `json:"autoResetWhenZero"`
}

// CreditLimit returns the plan's credit ceiling.
func (s *Subscription) CreditLimit() float64 {
	return s.SubscriptionPlan.CreditLimit
}

// IsFull reports whether the balance is at or above the plan limit.
func (s *Subscription) IsFull() bool {
	return s.CurrentCredits >= s.CreditLimit()
}

// IsPaygo reports whether the subscription is on a pay-as-you-go plan.
func (s *Subscription) IsPaygo() bool {
	return strings.Contains(strings.ToUpper(s.SubscriptionPlanName), paygoMarker) ||
		strings.Contains(strings.ToUpper(s.SubscriptionPlan.PlanType), paygoMarker)
}

// IsRunning reports whether the billing API considers the subscription live.
func (s *Subscription) IsRunning() bool {
	return s.IsActive && s.SubscriptionStatus == StatusActive
}

// CreditPercent returns the balance as a percentage of the limit.
func (s *Subscription) CreditPercent() float64 {
	limit := s.CreditLimit()
	if limit <= 0 {
		return 0
	}
	pct := s.CurrentCredits / limit * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// DisplayName returns a short label for lists and notifications.
func (s *Subscription) DisplayName() string {
	if s.SubscriptionPlanName != "" {
		return s.SubscriptionPlanName
	}
	return s.SubscriptionPlan.SubscriptionName
}

// LastReset parses LastCreditReset. The zero time and false are returned
// when the field is absent or unparseable.
func (s *Subscription) LastReset() (time.Time, bool) {
	if s.LastCreditReset == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(*s.LastCreditReset)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05.000",
}

// ParseTimestamp parses the timestamp formats the billing API emits.
// Zone-less values are interpreted in the local zone.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clone returns a deep copy of the subscription.
func (s *Subscription) Clone() Subscription {
	clone := *s
	if s.LastCreditReset != nil {
		v := *s.LastCreditReset
		clone.LastCreditReset = &v
	}
	return clone
}
