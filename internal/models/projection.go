package models

import "time"

// ProjectionStatus indicates urgency level for credit depletion.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// CreditProjection estimates when a subscription runs out of credits.
type CreditProjection struct {
	DepleteAt         time.Time        // Predicted depletion time
	NextReset         time.Time        // Next scheduled reset window
	LastUpdated       time.Time
	Status            ProjectionStatus // SAFE, WARNING, CRITICAL, UNKNOWN
	Confidence        string           // "low", "medium", "high"
	SubscriptionID    int64
	Credits           float64          // Current balance
	Rate              float64          // Consumption in credits per hour
	HoursLeft         float64          // Hours until depletion at Rate
	TimeUntilReset    time.Duration    // Duration until NextReset
	DataPoints        int              // Snapshots used
	WillDepleteBefore bool             // True if credits run out before NextReset
}
