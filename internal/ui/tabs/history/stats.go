package history

import (
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// consumption summarizes a run of credit snapshots.
type consumption struct {
	Hourly   []float64
	Consumed float64
	Refills  int
	Peak     int
}

// summarize walks consecutive snapshots. A falling balance is consumption
// attributed to the hour of the later reading; a rising one is a reset.
func summarize(snaps []models.CreditSnapshot) consumption {
	c := consumption{Hourly: make([]float64, 24)}
	for i := 1; i < len(snaps); i++ {
		delta := snaps[i-1].Credits - snaps[i].Credits
		switch {
		case delta > 0:
			c.Hourly[snaps[i].Timestamp.Local().Hour()] += delta
			c.Consumed += delta
		case delta < 0:
			c.Refills++
		}
	}
	for h, v := range c.Hourly {
		if v > c.Hourly[c.Peak] {
			c.Peak = h
		}
	}
	return c
}

// balances extracts the credit series of snaps.
func balances(snaps []models.CreditSnapshot) []float64 {
	out := make([]float64, len(snaps))
	for i, s := range snaps {
		out[i] = s.Credits
	}
	return out
}

// weekdayCost averages the daily cost of trend points per weekday,
// Sunday first. Points with unparseable dates are ignored.
func weekdayCost(trend []models.UsageTrendPoint) []float64 {
	sums := make([]float64, 7)
	counts := make([]int, 7)
	for _, p := range trend {
		day, err := time.Parse(time.DateOnly, p.Date)
		if err != nil {
			continue
		}
		sums[day.Weekday()] += p.Cost
		counts[day.Weekday()]++
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
		}
	}
	return sums
}

// trendCosts returns the daily costs and their date labels.
func trendCosts(trend []models.UsageTrendPoint) ([]float64, []string) {
	costs := make([]float64, len(trend))
	labels := make([]string, len(trend))
	for i, p := range trend {
		costs[i] = p.Cost
		labels[i] = p.Date
		if len(p.Date) == len(time.DateOnly) {
			labels[i] = p.Date[5:]
		}
	}
	return costs, labels
}
