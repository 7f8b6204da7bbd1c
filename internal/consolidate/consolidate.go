// Package consolidate merges normalized statements into the year-end view
// of one taxpayer: one holding per security, valued in the declaration
// currency.
//
// The result is a pure function of the statements, the rate source and the
// parameters. Input order does not matter: overlapping statements are
// resolved by the later as-of timestamp, then by the higher parse sequence.
package consolidate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/model"
	"github.com/declara-dev/declara/internal/rates"
)

const stage = "consolidate"

// Params selects the fiscal year and the declaration currency.
type Params struct {
	Year     int
	Cutoff   time.Time // last day whose snapshots count, normally Dec 31 of Year
	Currency string
}

// YearStart returns the first day of the fiscal year.
func (p Params) YearStart() time.Time {
	return time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// InYear reports whether t falls between the start of the year and the
// cutoff, both included.
func (p Params) InYear(t time.Time) bool {
	return !t.Before(p.YearStart()) && !t.After(p.Cutoff)
}

// Movement is an in-year transaction with its amount converted to the
// declaration currency.
type Movement struct {
	model.Transaction
	Value decimal.Decimal // unrounded
}

// Portfolio is the consolidated view of a fiscal year.
type Portfolio struct {
	Year      int
	Currency  string
	Cutoff    time.Time
	Holdings  []model.ConsolidatedHolding // ordered by security id
	Movements []Movement                  // ordered by security, account, date, reference
}

// Holding returns the holding of the security with the given id.
func (p *Portfolio) Holding(id string) *model.ConsolidatedHolding {
	i := sort.Search(len(p.Holdings), func(i int) bool { return p.Holdings[i].Security.ID >= id })
	if i < len(p.Holdings) && p.Holdings[i].Security.ID == id {
		return &p.Holdings[i]
	}
	return nil
}

type slot struct {
	account  model.AccountKey
	security string
}

type snapshot struct {
	slot
	date time.Time
}

// Consolidate builds the portfolio for p from every statement on record.
func Consolidate(stmts []*model.Statement, src rates.Source, p Params) (*Portfolio, error) {
	if p.Cutoff.IsZero() {
		return nil, failure.Config("cutoff", "fiscal year cutoff not set")
	}

	positions := dedupPositions(stmts)
	txs := dedupTransactions(stmts)

	// Latest snapshot per (account, security) on or before the cutoff.
	latest := make(map[slot][]model.Position)
	for k, lots := range positions {
		if k.date.After(p.Cutoff) {
			continue
		}
		if cur, ok := latest[k.slot]; !ok || k.date.After(cur[0].Date) {
			latest[k.slot] = lots
		}
	}

	firstBuy := make(map[slot]time.Time)
	for _, tx := range txs {
		if tx.Type != model.TxBuy || tx.Date.After(p.Cutoff) {
			continue
		}
		k := slot{tx.Account.Key(), tx.Security.ID}
		if cur, ok := firstBuy[k]; !ok || tx.Date.Before(cur) {
			firstBuy[k] = tx.Date
		}
	}

	b := newBuilder(p, src)
	for _, k := range sortedSlots(latest) {
		lots := latest[k]
		var quantity, value decimal.Decimal
		for _, pos := range lots {
			v, err := b.convert(pos.Value, pos.Currency, pos.Date)
			if err != nil {
				return nil, err
			}
			quantity = quantity.Add(pos.Quantity)
			value = value.Add(v)
		}
		b.add(lots[0].Security, model.Contribution{
			Account:       lots[0].Account,
			Quantity:      quantity,
			Value:         value,
			Date:          lots[0].Date,
			FirstAcquired: firstBuy[k],
		})
	}

	var movements []Movement
	for _, tx := range txs {
		if !p.InYear(tx.Date) {
			continue
		}
		value, err := b.convert(tx.Amount, tx.Currency, tx.Date)
		if err != nil {
			return nil, err
		}
		movements = append(movements, Movement{Transaction: tx, Value: value})
		k := slot{tx.Account.Key(), tx.Security.ID}
		if _, ok := latest[k]; !ok {
			// Movement-only account: listed with a zero contribution so
			// movement lines can reference the holding.
			b.ensure(tx.Security, tx.Account, firstBuy[k])
		}
	}
	sortMovements(movements)

	out := &Portfolio{Year: p.Year, Currency: p.Currency, Cutoff: p.Cutoff, Holdings: b.holdings(), Movements: movements}
	for i := range out.Holdings {
		if h := &out.Holdings[i]; !h.Balanced() {
			return nil, failure.Internal(stage, "holding %s: contributions do not add up to total %s", h.Security.ID, h.Total)
		}
	}
	return out, nil
}

// dedupPositions keeps, per (account, security, date), the rows of the
// newest statement reporting it. Several rows of one statement for the same
// snapshot are separate lots (one ISIN listed on two exchanges) and are all
// kept.
func dedupPositions(stmts []*model.Statement) map[snapshot][]model.Position {
	best := make(map[snapshot][]model.Position)
	for _, st := range stmts {
		for _, pos := range st.Positions {
			k := snapshot{slot{pos.Account.Key(), pos.Security.ID}, pos.Date}
			cur := best[k]
			switch {
			case len(cur) == 0 || pos.Source.Newer(cur[0].Source):
				best[k] = []model.Position{pos}
			case pos.Source.ID == cur[0].Source.ID:
				best[k] = append(cur, pos)
			}
		}
	}
	return best
}

type txKey struct {
	slot
	typ       model.TxType
	date      time.Time
	quantity  string
	amount    string
	currency  string
	reference string
}

func keyOf(tx model.Transaction) txKey {
	return txKey{
		slot:      slot{tx.Account.Key(), tx.Security.ID},
		typ:       tx.Type,
		date:      tx.Date,
		quantity:  tx.Quantity.String(),
		amount:    tx.Amount.String(),
		currency:  tx.Currency,
		reference: tx.Reference,
	}
}

// dedupTransactions drops the copies of a transaction reported by more than
// one statement. Identical transactions within one statement are distinct
// trades and all survive.
func dedupTransactions(stmts []*model.Statement) []model.Transaction {
	best := make(map[txKey][]model.Transaction)
	for _, st := range stmts {
		for _, tx := range st.Transactions {
			k := keyOf(tx)
			cur := best[k]
			switch {
			case len(cur) == 0 || tx.Source.Newer(cur[0].Source):
				best[k] = []model.Transaction{tx}
			case tx.Source.ID == cur[0].Source.ID:
				best[k] = append(cur, tx)
			}
		}
	}
	var out []model.Transaction
	for _, copies := range best {
		out = append(out, copies...)
	}
	sortTransactions(out)
	return out
}

func sortTransactions(txs []model.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txLess(txs[i], txs[j]) })
}

func sortMovements(ms []Movement) {
	sort.Slice(ms, func(i, j int) bool { return txLess(ms[i].Transaction, ms[j].Transaction) })
}

func txLess(a, b model.Transaction) bool {
	if a.Security.ID != b.Security.ID {
		return a.Security.ID < b.Security.ID
	}
	if a.Account.Key() != b.Account.Key() {
		return a.Account.Key().Less(b.Account.Key())
	}
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Reference != b.Reference {
		return a.Reference < b.Reference
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if !a.Quantity.Equal(b.Quantity) {
		return a.Quantity.LessThan(b.Quantity)
	}
	return a.Amount.LessThan(b.Amount)
}

func sortedSlots(m map[slot][]model.Position) []slot {
	out := make([]slot, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].security != out[j].security {
			return out[i].security < out[j].security
		}
		return out[i].account.Less(out[j].account)
	})
	return out
}
