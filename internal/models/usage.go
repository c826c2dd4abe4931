package models

import (
	"sort"
)

// UsageStats holds average daily cost over trailing periods.
type UsageStats struct {
	Avg30         float64
	Avg15         float64
	Avg7          float64
	Avg3          float64
	AvailableDays int
	HasData       bool
}

// NewUsageStats averages the daily cost of trend points, oldest first.
func NewUsageStats(points []UsageTrendPoint) UsageStats {
	if len(points) == 0 {
		return UsageStats{}
	}

	sorted := make([]UsageTrendPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	costs := make([]float64, len(sorted))
	for i, p := range sorted {
		costs[i] = p.Cost
	}

	return UsageStats{
		Avg30:         trailingAverage(costs, 30),
		Avg15:         trailingAverage(costs, 15),
		Avg7:          trailingAverage(costs, 7),
		Avg3:          trailingAverage(costs, 3),
		AvailableDays: min(30, len(costs)),
		HasData:       true,
	}
}

func trailingAverage(values []float64, n int) float64 {
	if len(values) == 0 || n <= 0 {
		return 0
	}
	if len(values) > n {
		values = values[len(values)-n:]
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
