package models

import "time"

// UsageOverview holds lifetime account totals.
type UsageOverview struct {
	TotalAPIKeys               int     `json:"totalApiKeys"`
	ActiveAPIKeys              int     `json:"activeApiKeys"`
	TotalRequestsUsed          int64   `json:"totalRequestsUsed"`
	TotalTokensUsed            int64   `json:"totalTokensUsed"`
	TotalInputTokensUsed       int64   `json:"totalInputTokensUsed"`
	TotalOutputTokensUsed      int64   `json:"totalOutputTokensUsed"`
	TotalCacheCreateTokensUsed int64   `json:"totalCacheCreateTokensUsed"`
	TotalCacheReadTokensUsed   int64   `json:"totalCacheReadTokensUsed"`
	Cost                       float64 `json:"cost"`
}

// RecentActivity holds today's totals.
type RecentActivity struct {
	RequestsToday          int64   `json:"requestsToday"`
	TokensToday            int64   `json:"tokensToday"`
	InputTokensToday       int64   `json:"inputTokensToday"`
	OutputTokensToday      int64   `json:"outputTokensToday"`
	CacheCreateTokensToday int64   `json:"cacheCreateTokensToday"`
	CacheReadTokensToday   int64   `json:"cacheReadTokensToday"`
	Cost                   float64 `json:"cost"`
}

// Dashboard is the account overview returned by the dashboard endpoint.
type Dashboard struct {
	Overview       UsageOverview  `json:"overview"`
	RecentActivity RecentActivity `json:"recentActivity"`
}

// LoginInfo identifies the account the token belongs to.
type LoginInfo struct {
	UserType     string `json:"userType"`
	LoginName    string `json:"loginName"`
	ActualName   string `json:"actualName"`
	Email        string `json:"email"`
	ReferralCode string `json:"referralCode"`
	EmployeeID   int64  `json:"employeeId"`
}

// UsageTrendPoint is one bucket of the usage trend endpoint.
type UsageTrendPoint struct {
	Date     string  `json:"date"`
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// CreditSnapshot is a point-in-time credit reading (DB model).
type CreditSnapshot struct {
	Timestamp      time.Time
	PlanName       string
	ID             int64
	SubscriptionID int64
	Credits        float64
	CreditLimit    float64
	ResetTimes     int
}
