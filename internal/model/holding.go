package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contribution is one custody account's share of a consolidated holding,
// expressed in the declaration currency.
type Contribution struct {
	Account       CustodyAccount
	Quantity      decimal.Decimal
	Value         decimal.Decimal // unrounded, declaration currency
	Date          time.Time       // date of the selected snapshot, zero if movement-only
	FirstAcquired time.Time       // earliest buy on record, zero if unknown
}

// ConsolidatedHolding is the fiscal year-end aggregate of one security
// across every custody account of the taxpayer.
type ConsolidatedHolding struct {
	Security      Security
	Total         decimal.Decimal
	Quantity      decimal.Decimal
	Contributions []Contribution
}

// Accounts returns the contributing custody accounts in contribution order.
func (h *ConsolidatedHolding) Accounts() []CustodyAccount {
	out := make([]CustodyAccount, len(h.Contributions))
	for i, c := range h.Contributions {
		out[i] = c.Account
	}
	return out
}

// Contribution returns the contribution of the account with key k.
func (h *ConsolidatedHolding) Contribution(k AccountKey) (Contribution, bool) {
	for _, c := range h.Contributions {
		if c.Account.Key() == k {
			return c, true
		}
	}
	return Contribution{}, false
}

// SumTolerance is the largest accepted gap between a holding's total and
// the sum of its contributions.
var SumTolerance = decimal.New(1, -2)

// Balanced reports whether the contributions add up to Total.
func (h *ConsolidatedHolding) Balanced() bool {
	sum := decimal.Zero
	for _, c := range h.Contributions {
		sum = sum.Add(c.Value)
	}
	return sum.Sub(h.Total).Abs().LessThanOrEqual(SumTolerance)
}
