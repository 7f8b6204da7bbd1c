package consolidate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/model"
	"github.com/declara-dev/declara/internal/rates"
)

// builder accumulates contributions per security.
type builder struct {
	params Params
	src    rates.Source
	order  []string
	by     map[string]*model.ConsolidatedHolding
}

func newBuilder(p Params, src rates.Source) *builder {
	return &builder{params: p, src: src, by: make(map[string]*model.ConsolidatedHolding)}
}

// convert expresses amount in the declaration currency. The declaration
// currency itself converts at 1 without asking the source.
func (b *builder) convert(amount decimal.Decimal, currency string, on time.Time) (decimal.Decimal, error) {
	if strings.EqualFold(currency, b.params.Currency) {
		return amount, nil
	}
	if b.src == nil {
		return decimal.Zero, rates.Missing(b.params.Currency, currency, on)
	}
	r, err := b.src.Rate(currency, on)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(r), nil
}

func (b *builder) holding(sec model.Security) *model.ConsolidatedHolding {
	h, ok := b.by[sec.ID]
	if !ok {
		h = &model.ConsolidatedHolding{Security: sec}
		b.by[sec.ID] = h
		b.order = append(b.order, sec.ID)
	}
	return h
}

func (b *builder) add(sec model.Security, c model.Contribution) {
	h := b.holding(sec)
	h.Contributions = append(h.Contributions, c)
	h.Total = h.Total.Add(c.Value)
	h.Quantity = h.Quantity.Add(c.Quantity)
}

// ensure lists acct on the holding of sec, with nothing held.
func (b *builder) ensure(sec model.Security, acct model.CustodyAccount, firstAcquired time.Time) {
	h := b.holding(sec)
	if _, ok := h.Contribution(acct.Key()); ok {
		return
	}
	h.Contributions = append(h.Contributions, model.Contribution{Account: acct, FirstAcquired: firstAcquired})
}

// holdings returns the holdings by security id, contributions by account.
func (b *builder) holdings() []model.ConsolidatedHolding {
	sort.Strings(b.order)
	out := make([]model.ConsolidatedHolding, 0, len(b.order))
	for _, id := range b.order {
		h := *b.by[id]
		sort.SliceStable(h.Contributions, func(i, j int) bool {
			return h.Contributions[i].Account.Key().Less(h.Contributions[j].Account.Key())
		})
		out = append(out, h)
	}
	return out
}
