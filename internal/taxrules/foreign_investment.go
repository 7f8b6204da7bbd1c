package taxrules

import (
	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/consolidate"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/model"
)

// ForeignInvestment returns the movement lines: one per in-year
// transaction on a foreign custody account, for every security whose
// foreign year-end value or foreign movement volume reaches the threshold.
func ForeignInvestment(p *consolidate.Portfolio, params Params) ([]model.DeclarationLine, error) {
	if err := params.check(); err != nil {
		return nil, err
	}

	moved := make(map[string]decimal.Decimal)
	for _, m := range p.Movements {
		if params.foreign(m.Account) {
			moved[m.Security.ID] = moved[m.Security.ID].Add(m.Value.Abs())
		}
	}
	qualifies := make(map[string]bool)
	for _, h := range p.Holdings {
		held := decimal.Zero
		for _, c := range h.Contributions {
			if params.foreign(c.Account) {
				held = held.Add(c.Value)
			}
		}
		id := h.Security.ID
		qualifies[id] = held.GreaterThanOrEqual(params.Threshold) || moved[id].GreaterThanOrEqual(params.Threshold)
	}

	var lines []model.DeclarationLine
	for _, m := range p.Movements {
		if !params.foreign(m.Account) || !qualifies[m.Security.ID] {
			continue
		}
		h := p.Holding(m.Security.ID)
		if h == nil {
			return nil, failure.Internal("taxrules", "movement %s references security %s without a holding", m.Reference, m.Security.ID)
		}
		c, ok := h.Contribution(m.Account.Key())
		if !ok {
			return nil, failure.Internal("taxrules", "movement %s: account %s does not contribute to %s", m.Reference, m.Account.Key(), h.Security.ID)
		}
		sec := h.Security

		var f model.Fields
		f.Set(FieldISIN, model.Text(sec.ID))
		f.Set(FieldName, model.Text(sec.Name))
		f.Set(FieldCountry, model.Text(params.country(sec.IssuerCountry)))
		f.Set(FieldAssetCode, model.Text(params.assetCode(sec.Class)))
		f.Set(FieldMovement, model.Text(params.movement(m.Type)))
		f.Set(FieldDate, model.Date(m.Date))
		f.Set(FieldQuantity, model.Number(RoundHalfUp(m.Quantity, params.QuantityDecimals)))
		f.Set(FieldAmount, model.Number(RoundHalfUp(m.Amount, params.Decimals)))
		f.Set(FieldCurrency, model.Text(m.Currency))
		f.Set(FieldValue, model.Number(RoundHalfUp(m.Value, params.Decimals)))
		f.Set(FieldYearEndValue, model.Number(RoundHalfUp(c.Value, params.Decimals)))
		f.Set(FieldEntity, model.Text(m.Account.Broker))
		f.Set(FieldAccount, model.Text(m.Account.AccountID))
		f.Set(FieldReference, model.Text(m.Reference))

		lines = append(lines, model.DeclarationLine{
			Form:    params.Form,
			Holding: h,
			Account: m.Account,
			Fields:  f,
		})
	}
	sortLines(lines)
	return lines, nil
}
