package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/model"
)

// Degiro values portfolio lines and commissions in euros regardless of the
// instrument currency.
const degiroValuationCurrency = "EUR"

var degiroTxTypes = map[string]model.TxType{
	importer.DegiroBuy:      model.TxBuy,
	importer.DegiroSell:     model.TxSell,
	importer.DegiroDividend: model.TxDividend,
	importer.DegiroFee:      model.TxFee,
	importer.DegiroTransfer: model.TxTransfer,
}

type degiroMapper struct {
	st *model.Statement
}

func (m *degiroMapper) security(r row) (model.Security, error) {
	isin, err := r.str("isin")
	if err != nil {
		return model.Security{}, err
	}
	name, err := r.str("product")
	if err != nil {
		return model.Security{}, err
	}
	return newSecurity(isin, name, market(degiroMarkets, r.optStr("market")), classifyName(name)), nil
}

func (m *degiroMapper) position(r row) (model.Position, error) {
	sec, err := m.security(r)
	if err != nil {
		return model.Position{}, err
	}
	qty, err := r.dec("quantity")
	if err != nil {
		return model.Position{}, err
	}
	value, err := r.dec("value_eur")
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
		Currency: degiroValuationCurrency,
		Date:     date,
		Source:   m.st.Ref(),
	}, nil
}

func (m *degiroMapper) transactions(r row) ([]model.Transaction, error) {
	op, err := r.str("operation")
	if err != nil {
		return nil, err
	}
	typ, ok := degiroTxTypes[op]
	if !ok {
		return nil, failure.Internal(stage, "degiro line %d: unmapped operation %q", r.Line, op)
	}
	sec, err := m.security(r)
	if err != nil {
		return nil, err
	}
	date, err := r.date("date")
	if err != nil {
		return nil, err
	}
	cur, err := r.str("currency")
	if err != nil {
		return nil, err
	}
	amount, err := r.dec("local_value")
	if err != nil {
		return nil, err
	}
	qty := r.optDec("quantity").Abs()
	if r.Kind == importer.RowTrade && qty.IsZero() {
		return nil, r.missing("quantity")
	}

	tx := model.Transaction{
		Account:   m.st.Account,
		Security:  sec,
		Type:      typ,
		Quantity:  qty,
		Amount:    amount.Abs(),
		Currency:  cur,
		Date:      date,
		Reference: reference("DG", date, sec.ID, typ, qty, amount),
		Source:    m.st.Ref(),
	}
	out := []model.Transaction{tx}

	if comm := r.optDec("commission"); !comm.IsZero() {
		out = append(out, commissionFee(tx, comm, degiroValuationCurrency))
	}
	return out, nil
}

// commissionFee books the commission charged on a trade as a fee movement.
func commissionFee(tx model.Transaction, comm decimal.Decimal, currency string) model.Transaction {
	fee := tx
	fee.Type = model.TxFee
	fee.Quantity = decimal.Zero
	fee.Amount = comm.Abs()
	fee.Currency = currency
	fee.Reference = tx.Reference + "-fee"
	return fee
}

func newSecurity(id, name, mkt string, class model.AssetClass) model.Security {
	id = strings.ToUpper(strings.TrimSpace(id))
	return model.Security{
		ID:            id,
		Name:          strings.TrimSpace(name),
		IssuerCountry: issuerCountry(id),
		Class:         class,
		Market:        mkt,
	}
}
