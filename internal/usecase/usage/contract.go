package usage

import "github.com/wabenzi/prethrift/internal/domain"

// BudgetReader provides read-only access to token budget counters.
type BudgetReader interface {
	Snapshot() domain.BudgetSnapshot
}
