package domain

// PeriodBudget is a token allowance for one accounting period. A zero
// Limit means the period is unmetered.
type PeriodBudget struct {
	Limit int64
	Used  int64
}

// Remaining returns tokens left in the period: -1 when unmetered, 0 once
// the allowance is spent.
func (p PeriodBudget) Remaining() int64 {
	if p.Limit == 0 {
		return -1
	}
	if p.Used >= p.Limit {
		return 0
	}
	return p.Limit - p.Used
}

// Exhausted reports whether a configured limit has been reached.
func (p PeriodBudget) Exhausted() bool {
	return p.Limit > 0 && p.Used >= p.Limit
}

// BudgetSnapshot is a point-in-time view of the embedding token budget
// for one provider. The zero value reads as unmetered, which is what the
// usage report shows when no budget is configured.
type BudgetSnapshot struct {
	Provider string
	Daily    PeriodBudget
	Monthly  PeriodBudget
}
