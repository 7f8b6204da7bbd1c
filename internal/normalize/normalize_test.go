package normalize

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declara-dev/declara/internal/brokers"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/model"
)

func readReport(t *testing.T, format, name string) *importer.Report {
	t.Helper()
	data, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	rep, err := importer.DefaultRegistry().Read(format, data, importer.Options{})
	require.NoError(t, err)
	return rep
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func txOf(st *model.Statement, typ model.TxType) []model.Transaction {
	var out []model.Transaction
	for _, tx := range st.Transactions {
		if tx.Type == typ {
			out = append(out, tx)
		}
	}
	return out
}

func TestStatement_Degiro(t *testing.T) {
	rep := readReport(t, "degiro", "degiro_2023.txt")
	st, err := Statement(rep, 3, brokers.NewService(brokers.Default()))
	require.NoError(t, err)

	_, err = uuid.Parse(st.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Seq)
	assert.Equal(t, rep.AsOf, st.AsOf)
	assert.Equal(t, model.CustodyAccount{Broker: "Degiro", AccountID: "12345678", Country: "NL", Currency: "EUR"}, st.Account)

	require.Len(t, st.Positions, 3)
	require.Len(t, st.Securities, 3)

	apple := st.Positions[0]
	assert.Equal(t, "US0378331005", apple.Security.ID)
	assert.Equal(t, "US", apple.Security.IssuerCountry)
	assert.Equal(t, "XNAS", apple.Security.Market)
	assert.Equal(t, model.AssetEquity, apple.Security.Class)
	assert.Equal(t, "EUR", apple.Currency, "portfolio values are printed in euros")
	assert.True(t, apple.Value.Equal(decimal.RequireFromString("1742.90")))
	assert.Equal(t, day(2023, 12, 31), apple.Date)
	assert.Equal(t, st.Ref(), apple.Source)

	vanguard := st.Positions[1]
	assert.Equal(t, model.AssetFund, vanguard.Security.Class)
	assert.Equal(t, "IE", vanguard.Security.IssuerCountry)

	buys := txOf(st, model.TxBuy)
	require.Len(t, buys, 3)
	assert.Equal(t, "USD", buys[0].Currency)
	assert.Equal(t, "10", buys[0].Quantity.String())
	assert.Equal(t, "1502", buys[0].Amount.String())
	assert.Equal(t, day(2023, 3, 15), buys[0].Date)
	assert.Equal(t, "DG-20230315-US0378331005-buy-10-1502", buys[0].Reference)

	fees := txOf(st, model.TxFee)
	require.Len(t, fees, 2, "zero commissions are not booked")
	assert.Equal(t, "0.5", fees[0].Amount.String())
	assert.Equal(t, "EUR", fees[0].Currency)
	assert.Equal(t, buys[0].Reference+"-fee", fees[0].Reference)

	divs := txOf(st, model.TxDividend)
	require.Len(t, divs, 1)
	assert.Equal(t, "2.4", divs[0].Amount.String())
	assert.True(t, divs[0].Quantity.IsZero())
}

func TestStatement_IBKR(t *testing.T) {
	rep := readReport(t, "ibkr", "ibkr_2023.csv")
	st, err := Statement(rep, 1, brokers.NewService(brokers.Default()))
	require.NoError(t, err)

	assert.Equal(t, "Interactive Brokers", st.Account.Broker)
	assert.Equal(t, "IE", st.Account.Country)
	assert.Equal(t, "U1234567", st.Account.AccountID)

	require.Len(t, st.Positions, 2)
	msft := st.Positions[0]
	assert.Equal(t, "US5949181045", msft.Security.ID)
	assert.Equal(t, "MICROSOFT CORP", msft.Security.Name)
	assert.Equal(t, model.AssetEquity, msft.Security.Class)
	assert.Equal(t, "USD", msft.Currency, "positions keep the instrument currency")
	iwda := st.Positions[1]
	assert.Equal(t, model.AssetFund, iwda.Security.Class)
	assert.Equal(t, "XAMS", iwda.Security.Market)

	sells := txOf(st, model.TxSell)
	require.Len(t, sells, 1)
	assert.Equal(t, "5", sells[0].Quantity.String())
	assert.Equal(t, "1850", sells[0].Amount.String())
	assert.Equal(t, day(2023, 11, 20), sells[0].Date)

	assert.Len(t, txOf(st, model.TxBuy), 2)
	assert.Len(t, txOf(st, model.TxFee), 3)
	divs := txOf(st, model.TxDividend)
	require.Len(t, divs, 1)
	assert.Equal(t, "US5949181045", divs[0].Security.ID)
	assert.Equal(t, "17", divs[0].Amount.String())
}

func TestStatement_IBKRFee(t *testing.T) {
	data := "Account Information,Header,Field Name,Field Value\n" +
		"Account Information,Data,Account,U1\n" +
		"Fees,Header,Subtitle,Currency,Date,Description,Amount\n" +
		"Fees,Data,Other Fees,USD,2023-05-18,MSFT(US5949181045) ADR Fee USD 0.02 per Share,-0.4\n"
	rep, err := importer.DefaultRegistry().Read("ibkr", []byte(data), importer.Options{})
	require.NoError(t, err)
	st, err := Statement(rep, 0, brokers.NewService(brokers.Default()))
	require.NoError(t, err)

	fees := txOf(st, model.TxFee)
	require.Len(t, fees, 1)
	assert.Equal(t, "US5949181045", fees[0].Security.ID)
	assert.Equal(t, "0.4", fees[0].Amount.String())
	assert.Equal(t, "USD", fees[0].Currency)
	assert.Equal(t, day(2023, 5, 18), fees[0].Date)
}

func TestStatement_UniqueIDs(t *testing.T) {
	rep := readReport(t, "ibkr", "ibkr_2023.csv")
	svc := brokers.NewService(brokers.Default())
	a, err := Statement(rep, 0, svc)
	require.NoError(t, err)
	b, err := Statement(rep, 1, svc)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Transactions[0].Reference, b.Transactions[0].Reference, "references depend on content only")
}

func TestStatement_BrokerOverride(t *testing.T) {
	svc := brokers.NewService(brokers.Default())
	require.NoError(t, svc.Override("ibkr", "", "GB"))
	st, err := Statement(readReport(t, "ibkr", "ibkr_2023.csv"), 0, svc)
	require.NoError(t, err)
	assert.Equal(t, "GB", st.Account.Country)
}

func TestStatement_InternalErrors(t *testing.T) {
	svc := brokers.NewService(brokers.Default())
	pos := importer.Row{Kind: importer.RowPosition, Line: 7, Fields: []importer.Field{
		{Name: "product", Value: importer.Value{Kind: importer.ValueString, Str: "APPLE INC"}},
	}}

	tests := []struct {
		name string
		rep  *importer.Report
		want string
	}{
		{"unknown format", &importer.Report{Format: "saxo", Account: "1"}, "saxo"},
		{"missing field", &importer.Report{Format: "degiro", Account: "1", Rows: []importer.Row{pos}}, `lacks field "isin"`},
		{"unknown kind", &importer.Report{Format: "ibkr", Account: "1", Rows: []importer.Row{{Kind: "journal", Line: 3}}}, "unknown row kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Statement(tt.rep, 0, svc)
			require.Error(t, err)
			assert.Equal(t, failure.KindInternal, failure.Category(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClassifyName(t *testing.T) {
	tests := []struct {
		name string
		want model.AssetClass
	}{
		{"APPLE INC", model.AssetEquity},
		{"ISHARES CORE S&P 500 UCITS ETF", model.AssetFund},
		{"Morgan Stanley EUR Liquidity Fund", model.AssetCashEquivalent},
		{"TURBO LONG DAX 15000", model.AssetDerivative},
		{"PETFOOD CORP", model.AssetEquity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyName(tt.name), tt.name)
	}
}

func TestMarket(t *testing.T) {
	assert.Equal(t, "XETR", market(degiroMarkets, "xet"))
	assert.Equal(t, "XETR", market(ibkrMarkets, "IBIS"))
	assert.Equal(t, "TSE", market(ibkrMarkets, "TSE"))
}
