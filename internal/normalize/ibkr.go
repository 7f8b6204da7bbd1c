package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/model"
)

type ibkrMapper struct {
	st *model.Statement
}

func (m *ibkrMapper) security(r row) (model.Security, error) {
	isin, err := r.str("isin")
	if err != nil {
		return model.Security{}, err
	}
	name := r.optStr("description")
	if name == "" {
		if name, err = r.str("symbol"); err != nil {
			return model.Security{}, err
		}
	}
	class := classifyIBKR(r.optStr("asset_category"), r.optStr("instrument_type"), name)
	return newSecurity(isin, name, market(ibkrMarkets, r.optStr("exchange")), class), nil
}

func (m *ibkrMapper) position(r row) (model.Position, error) {
	sec, err := m.security(r)
	if err != nil {
		return model.Position{}, err
	}
	qty, err := r.dec("quantity")
	if err != nil {
		return model.Position{}, err
	}
	value, err := r.dec("value")
	if err != nil {
		return model.Position{}, err
	}
	cur, err := r.str("currency")
	if err != nil {
		return model.Position{}, err
	}
	date, err := r.date("date")
	if err != nil {
		return model.Position{}, err
	}
	return model.Position{
		Account:  m.st.Account,
		Security: sec,
		Quantity: qty,
		Value:    value,
		Currency: cur,
		Date:     date,
		Source:   m.st.Ref(),
	}, nil
}

func (m *ibkrMapper) transactions(r row) ([]model.Transaction, error) {
	sec, err := m.security(r)
	if err != nil {
		return nil, err
	}
	cur, err := r.str("currency")
	if err != nil {
		return nil, err
	}
	date, err := r.date("date")
	if err != nil {
		return nil, err
	}

	switch r.Kind {
	case importer.RowTrade:
		qty, err := r.dec("quantity")
		if err != nil {
			return nil, err
		}
		proceeds, err := r.dec("proceeds")
		if err != nil {
			return nil, err
		}
		// Sells carry a negative quantity.
		typ := model.TxBuy
		if qty.IsNegative() {
			typ = model.TxSell
		}
		tx := model.Transaction{
			Account:   m.st.Account,
			Security:  sec,
			Type:      typ,
			Quantity:  qty.Abs(),
			Amount:    proceeds.Abs(),
			Currency:  cur,
			Date:      date,
			Reference: reference("IB", date, sec.ID, typ, qty, proceeds),
			Source:    m.st.Ref(),
		}
		out := []model.Transaction{tx}
		if comm := r.optDec("commission"); !comm.IsZero() {
			out = append(out, commissionFee(tx, comm, cur))
		}
		return out, nil

	case importer.RowCash:
		op, err := r.str("operation")
		if err != nil {
			return nil, err
		}
		var typ model.TxType
		switch op {
		case importer.IBKRDividend:
			typ = model.TxDividend
		case importer.IBKRFee:
			typ = model.TxFee
		default:
			return nil, failure.Internal(stage, "ibkr line %d: unmapped cash operation %q", r.Line, op)
		}
		amount, err := r.dec("amount")
		if err != nil {
			return nil, err
		}
		return []model.Transaction{{
			Account:   m.st.Account,
			Security:  sec,
			Type:      typ,
			Amount:    amount.Abs(),
			Currency:  cur,
			Date:      date,
			Reference: reference("IB", date, sec.ID, typ, decimal.Zero, amount),
			Source:    m.st.Ref(),
		}}, nil
	}
	return nil, failure.Internal(stage, "ibkr line %d: unknown row kind %q", r.Line, r.Kind)
}
