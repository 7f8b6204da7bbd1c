package taxrules

import (
	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/consolidate"
	"github.com/declara-dev/declara/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ForeignAssets returns the foreign-asset lines: one per holding and
// foreign custody account with something held at the cutoff.
//
// The threshold is tested once against the unrounded sum of every
// qualifying contribution. Either all of them are declared or none is.
func ForeignAssets(p *consolidate.Portfolio, params Params) ([]model.DeclarationLine, error) {
	if err := params.check(); err != nil {
		return nil, err
	}

	type candidate struct {
		holding *model.ConsolidatedHolding
		c       model.Contribution
	}
	var (
		qualifying []candidate
		aggregate  = decimal.Zero
	)
	for i := range p.Holdings {
		h := &p.Holdings[i]
		for _, c := range h.Contributions {
			if c.Quantity.IsZero() || !params.foreign(c.Account) {
				continue
			}
			qualifying = append(qualifying, candidate{h, c})
			aggregate = aggregate.Add(c.Value)
		}
	}
	if len(qualifying) == 0 || aggregate.LessThan(params.Threshold) {
		return nil, nil
	}

	lines := make([]model.DeclarationLine, 0, len(qualifying))
	for _, q := range qualifying {
		sec := q.holding.Security
		value := RoundHalfUp(q.c.Value, params.Decimals)

		origin := OriginHeld
		if !q.c.FirstAcquired.IsZero() && q.c.FirstAcquired.Year() == params.Year {
			origin = OriginAcquired
		}

		var f model.Fields
		f.Set(FieldISIN, model.Text(sec.ID))
		f.Set(FieldName, model.Text(sec.Name))
		f.Set(FieldCountry, model.Text(params.country(sec.IssuerCountry)))
		f.Set(FieldCustodyCountry, model.Text(params.country(q.c.Account.Country)))
		f.Set(FieldAssetCode, model.Text(params.assetCode(sec.Class)))
		f.Set(FieldAssetSubcode, model.Text(params.assetSubcode(sec.Class)))
		f.Set(FieldValue, model.Number(value))
		f.Set(FieldQuantity, model.Number(RoundHalfUp(q.c.Quantity, params.QuantityDecimals)))
		f.Set(FieldOwnershipPercent, model.Number(hundred))
		f.Set(FieldAcquired, model.Date(q.c.FirstAcquired))
		f.Set(FieldOrigin, model.Text(origin))
		f.Set(FieldEntity, model.Text(q.c.Account.Broker))
		f.Set(FieldAccount, model.Text(q.c.Account.AccountID))
		if code, ok := params.Brackets.Code(value); ok {
			f.Set(FieldBracket, model.Text(code))
		}

		lines = append(lines, model.DeclarationLine{
			Form:    params.Form,
			Holding: q.holding,
			Account: q.c.Account,
			Fields:  f,
		})
	}
	sortLines(lines)
	return lines, nil
}
