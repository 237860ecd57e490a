// Package ledger is the read-only query engine over transaction history.
// It never mutates records; filtering and summarizing are pure functions
// invoked by the presentation layer whenever criteria change.
package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/avelichko/fundsops/internal/models"
)

// DateRange presets resolve to a lower bound relative to "now". No upper
// bound is applied, so future-dated transactions always pass.
type DateRange string

const (
	RangeAll   DateRange = "all"
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
	RangeYear  DateRange = "year"
)

// Criteria are independently composable; active ones combine with AND.
// Zero values ("" / "all") deactivate a criterion.
type Criteria struct {
	Search    string
	Type      string
	Status    string
	DateRange DateRange

	// Now overrides the clock for the date-range bound. Nil means time.Now.
	Now func() time.Time
}

// Summary aggregates completed transactions by type, absolute values.
type Summary struct {
	TotalDeposits    float64 `json:"total_deposits"`
	TotalWithdrawals float64 `json:"total_withdrawals"`
	TotalProfits     float64 `json:"total_profits"`
	TotalLosses      float64 `json:"total_losses"`
}

// Filter returns the transactions matching all active criteria, in the
// original order. With no active criteria the input comes back whole.
func Filter(txns []models.Transaction, c Criteria) []models.Transaction {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	bound, bounded := c.lowerBound()

	out := make([]models.Transaction, 0, len(txns))
	for _, tx := range txns {
		if search != "" && !matchesSearch(tx, search) {
			continue
		}
		if c.Type != "" && c.Type != "all" && tx.Type != c.Type {
			continue
		}
		if c.Status != "" && c.Status != "all" && tx.Status != c.Status {
			continue
		}
		if bounded && tx.Date.Before(bound) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// matchesSearch checks id, description and reference; any hit qualifies.
func matchesSearch(tx models.Transaction, needle string) bool {
	return strings.Contains(strings.ToLower(tx.ID), needle) ||
		strings.Contains(strings.ToLower(tx.Description), needle) ||
		strings.Contains(strings.ToLower(tx.Reference), needle)
}

func (c Criteria) lowerBound() (time.Time, bool) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	n := now()
	switch c.DateRange {
	case RangeToday:
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location()), true
	case RangeWeek:
		return n.AddDate(0, 0, -7), true
	case RangeMonth:
		return n.AddDate(0, -1, 0), true
	case RangeYear:
		return n.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// ValidRange reports whether a query-string value names a known preset.
func ValidRange(v string) bool {
	switch DateRange(v) {
	case RangeAll, RangeToday, RangeWeek, RangeMonth, RangeYear:
		return true
	}
	return false
}

// Summarize totals completed transactions by type. Non-completed records
// never contribute, whatever their type.
func Summarize(txns []models.Transaction) Summary {
	var s Summary
	for _, tx := range txns {
		if tx.Status != models.StatusCompleted {
			continue
		}
		switch tx.Type {
		case models.TypeDeposit:
			s.TotalDeposits += math.Abs(tx.Amount)
		case models.TypeWithdrawal:
			s.TotalWithdrawals += math.Abs(tx.Amount)
		case models.TypeTradeProfit:
			s.TotalProfits += math.Abs(tx.Amount)
		case models.TypeTradeLoss:
			s.TotalLosses += math.Abs(tx.Amount)
		}
	}
	return s
}

// TypeLabel maps a transaction type to its display name.
func TypeLabel(txType string) string {
	switch txType {
	case models.TypeDeposit:
		return "Deposit"
	case models.TypeWithdrawal:
		return "Withdrawal"
	case models.TypeTradeProfit:
		return "Trade Profit"
	case models.TypeTradeLoss:
		return "Trade Loss"
	case models.TypeBonus:
		return "Bonus"
	case models.TypeRefund:
		return "Refund"
	default:
		return txType
	}
}
