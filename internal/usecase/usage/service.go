// Package usage reports embedding token consumption against the
// configured budget.
package usage

import (
	"context"
	"time"

	"github.com/wabenzi/prethrift/internal/domain"
	domusage "github.com/wabenzi/prethrift/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br          BudgetReader
	costPerMTok float64
	now         func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// WithCostRate sets the price per million tokens used for cost estimates.
// Zero leaves cost untracked.
func (s *Service) WithCostRate(perMillionTokens float64) *Service {
	s.costPerMTok = perMillionTokens
	return s
}

// GetReport builds a token usage report for the given period. Without a
// budget reader the report shows an unmetered period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()

	var snap domain.BudgetSnapshot
	if s.br != nil {
		snap = s.br.Snapshot()
	}

	var start, end time.Time
	var pb domain.PeriodBudget

	if period == domusage.PeriodMonth {
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		pb = snap.Monthly
	} else {
		period = domusage.PeriodDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		pb = snap.Daily
	}

	report := domusage.NewReport(period, start.UnixMilli(), end.UnixMilli(),
		pb.Limit, pb.Used, pb.Remaining(), pb.Exhausted())
	if s.costPerMTok > 0 {
		report = report.WithEstimatedCost(float64(pb.Used) / 1e6 * s.costPerMTok)
	}
	return report
}
