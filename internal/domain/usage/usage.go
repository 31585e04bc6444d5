// Package usage defines the embedding token budget report.
package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty input defaults to day.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case PeriodDay, "":
		return PeriodDay, true
	case PeriodMonth:
		return PeriodMonth, true
	default:
		return "", false
	}
}

// Report is a token usage report for one budget period. Remaining is -1
// when the period has no configured limit, and cost is -1 when no price
// is configured.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	limit       int64
	used        int64
	remaining   int64
	exhausted   bool
	costUSD     float64
}

// NewReport creates a usage report. Timestamps are unix milliseconds.
func NewReport(period Period, start, end, limit, used, remaining int64, exhausted bool) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		limit:       limit,
		used:        used,
		remaining:   remaining,
		exhausted:   exhausted,
		costUSD:     -1,
	}
}

// WithEstimatedCost returns a copy of the report carrying a cost estimate.
func (r Report) WithEstimatedCost(costUSD float64) Report {
	r.costUSD = costUSD
	return r
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis). The budget
// resets at this instant.
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// TokensLimit returns the configured cap, 0 when unlimited.
func (r *Report) TokensLimit() int64 { return r.limit }

// TokensUsed returns tokens consumed in the period.
func (r *Report) TokensUsed() int64 { return r.used }

// TokensRemaining returns tokens left, -1 when unlimited.
func (r *Report) TokensRemaining() int64 { return r.remaining }

// Exhausted reports whether a configured limit has been reached.
func (r *Report) Exhausted() bool { return r.exhausted }

// EstimatedCostUSD returns the estimated spend for the period, -1 when no
// token price is configured.
func (r *Report) EstimatedCostUSD() float64 { return r.costUSD }
