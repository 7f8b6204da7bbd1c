package consolidate

import (
	"errors"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declara-dev/declara/internal/brokers"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/model"
	"github.com/declara-dev/declara/internal/normalize"
	"github.com/declara-dev/declara/internal/rates"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	params2023 = Params{Year: 2023, Cutoff: day(2023, 12, 31), Currency: "EUR"}

	acctA = model.CustodyAccount{Broker: "Broker A", AccountID: "A-1", Country: "NL", Currency: "EUR"}
	acctB = model.CustodyAccount{Broker: "Broker B", AccountID: "B-1", Country: "IE", Currency: "EUR"}
	secX  = model.Security{ID: "US0378331005", Name: "SECURITY X", IssuerCountry: "US", Class: model.AssetEquity}
	secY  = model.Security{ID: "NL0010273215", Name: "SECURITY Y", IssuerCountry: "NL", Class: model.AssetEquity}
)

func statement(id string, asOf time.Time, seq int, acct model.CustodyAccount) *model.Statement {
	return &model.Statement{ID: id, AsOf: asOf, Seq: seq, Account: acct}
}

func (b *stmtBuilder) position(sec model.Security, qty, value, cur string, on time.Time) *stmtBuilder {
	b.st.Positions = append(b.st.Positions, model.Position{
		Account: b.st.Account, Security: sec, Quantity: dec(qty), Value: dec(value),
		Currency: cur, Date: on, Source: b.st.Ref(),
	})
	return b
}

func (b *stmtBuilder) tx(sec model.Security, typ model.TxType, qty, amount, cur string, on time.Time, ref string) *stmtBuilder {
	b.st.Transactions = append(b.st.Transactions, model.Transaction{
		Account: b.st.Account, Security: sec, Type: typ, Quantity: dec(qty), Amount: dec(amount),
		Currency: cur, Date: on, Reference: ref, Source: b.st.Ref(),
	})
	return b
}

type stmtBuilder struct{ st *model.Statement }

func build(id string, asOf time.Time, seq int, acct model.CustodyAccount) *stmtBuilder {
	return &stmtBuilder{st: statement(id, asOf, seq, acct)}
}

func usdAtParity() *rates.Table {
	tbl := rates.NewTable("EUR")
	tbl.Lookback = 7
	tbl.Set("USD", day(2023, 12, 28), decimal.NewFromInt(1))
	tbl.Set("USD", day(2023, 12, 29), decimal.NewFromInt(1))
	return tbl
}

func TestConsolidate_TwoBrokerScenario(t *testing.T) {
	a := build("a", day(2024, 1, 5), 0, acctA).
		position(secX, "100", "10000", "USD", day(2023, 12, 28)).st
	b := build("b", day(2024, 1, 6), 1, acctB).
		tx(secX, model.TxSell, "20", "2000", "USD", day(2023, 12, 29), "S1").st

	p, err := Consolidate([]*model.Statement{a, b}, usdAtParity(), params2023)
	require.NoError(t, err)

	require.Len(t, p.Holdings, 1)
	h := p.Holdings[0]
	assert.Equal(t, secX.ID, h.Security.ID)
	assert.True(t, h.Total.Equal(dec("10000")), "pre-sale snapshot value, got %s", h.Total)
	assert.True(t, h.Quantity.Equal(dec("100")))
	require.Len(t, h.Contributions, 2)
	assert.Equal(t, acctA, h.Contributions[0].Account)
	assert.Equal(t, acctB, h.Contributions[1].Account)
	assert.True(t, h.Contributions[1].Value.IsZero())
	assert.True(t, h.Balanced())

	require.Len(t, p.Movements, 1)
	assert.Equal(t, model.TxSell, p.Movements[0].Type)
	assert.True(t, p.Movements[0].Value.Equal(dec("2000")))
	assert.Same(t, &p.Holdings[0], p.Holding(secX.ID))
	assert.Nil(t, p.Holding(secY.ID))
}

func TestConsolidate_LatestSnapshotPerAccount(t *testing.T) {
	a := build("a", day(2024, 2, 1), 0, acctA).
		position(secX, "10", "1000", "EUR", day(2023, 6, 30)).
		position(secX, "12", "1500", "EUR", day(2023, 12, 31)).
		position(secX, "15", "2500", "EUR", day(2024, 1, 31)).st
	b := build("b", day(2024, 1, 2), 1, acctB).
		position(secX, "3", "300", "EUR", day(2023, 9, 30)).st

	p, err := Consolidate([]*model.Statement{a, b}, nil, params2023)
	require.NoError(t, err)
	require.Len(t, p.Holdings, 1)
	h := p.Holdings[0]
	assert.True(t, h.Total.Equal(dec("1800")), "got %s", h.Total)

	ca, ok := h.Contribution(acctA.Key())
	require.True(t, ok)
	assert.Equal(t, day(2023, 12, 31), ca.Date)
	cb, ok := h.Contribution(acctB.Key())
	require.True(t, ok)
	assert.Equal(t, day(2023, 9, 30), cb.Date)
}

func TestConsolidate_DuplicateStatements(t *testing.T) {
	older := build("old", day(2024, 1, 5), 1, acctA).
		position(secX, "10", "1000", "EUR", day(2023, 12, 31)).
		tx(secX, model.TxBuy, "10", "900", "EUR", day(2023, 3, 1), "R1").st
	newer := build("new", day(2024, 1, 9), 0, acctA).
		position(secX, "10", "1010", "EUR", day(2023, 12, 31)).
		tx(secX, model.TxBuy, "10", "900", "EUR", day(2023, 3, 1), "R1").st

	for _, order := range [][]*model.Statement{{older, newer}, {newer, older}} {
		p, err := Consolidate(order, nil, params2023)
		require.NoError(t, err)
		require.Len(t, p.Holdings, 1)
		assert.True(t, p.Holdings[0].Total.Equal(dec("1010")), "later as-of wins")
		require.Len(t, p.Movements, 1, "same transaction reported twice")
		assert.Equal(t, "new", p.Movements[0].Source.ID)
	}
}

func TestConsolidate_LotsWithinStatementAreSummed(t *testing.T) {
	usd := build("usd", day(2024, 1, 3), 1, acctA).
		position(secX, "5", "500", "USD", day(2023, 12, 29)).st
	st := build("two-exchanges", day(2024, 1, 5), 0, acctA).
		position(secY, "100", "20000", "EUR", day(2023, 12, 31)).
		position(secY, "100", "20000", "EUR", day(2023, 12, 31)).
		position(secX, "10", "1000", "EUR", day(2023, 12, 29)).
		position(secX, "5", "500", "USD", day(2023, 12, 29)).st
	reread := build("reread", day(2024, 1, 6), 2, acctA).
		position(secY, "100", "20000", "EUR", day(2023, 12, 31)).
		position(secY, "100", "20000", "EUR", day(2023, 12, 31)).st

	for _, order := range [][]*model.Statement{{usd, st, reread}, {reread, st, usd}} {
		p, err := Consolidate(order, usdAtParity(), params2023)
		require.NoError(t, err)
		require.Len(t, p.Holdings, 2)

		y := p.Holding(secY.ID)
		require.NotNil(t, y)
		assert.True(t, y.Total.Equal(dec("40000")), "got %s", y.Total)
		assert.True(t, y.Quantity.Equal(dec("200")), "got %s", y.Quantity)
		require.Len(t, y.Contributions, 1)

		x := p.Holding(secX.ID)
		require.NotNil(t, x)
		assert.True(t, x.Total.Equal(dec("1500")), "older statement replaced, lots summed across currencies; got %s", x.Total)
	}
}

func TestConsolidate_RepeatedTradesWithinStatement(t *testing.T) {
	fill := func(b *stmtBuilder) *stmtBuilder {
		return b.tx(secX, model.TxBuy, "10", "1000", "EUR", day(2023, 7, 10), "D-20230710-US0378331005-buy-10-1000").
			tx(secX, model.TxBuy, "10", "1000", "EUR", day(2023, 7, 10), "D-20230710-US0378331005-buy-10-1000")
	}
	first := fill(build("first", day(2024, 1, 5), 0, acctA)).st
	again := fill(build("again", day(2024, 1, 9), 1, acctA)).st

	for _, order := range [][]*model.Statement{{first}, {first, again}, {again, first}} {
		p, err := Consolidate(order, nil, params2023)
		require.NoError(t, err)
		require.Len(t, p.Movements, 2, "two fills in one statement are two movements")
		want := "again"
		if len(order) == 1 {
			want = "first"
		}
		for _, m := range p.Movements {
			assert.Equal(t, want, m.Source.ID)
		}
	}
}

func TestConsolidate_SameAsOfUsesSeq(t *testing.T) {
	asOf := day(2024, 1, 5)
	first := build("first", asOf, 0, acctA).position(secX, "10", "1000", "EUR", day(2023, 12, 31)).st
	second := build("second", asOf, 1, acctA).position(secX, "10", "1001", "EUR", day(2023, 12, 31)).st

	for _, order := range [][]*model.Statement{{first, second}, {second, first}} {
		p, err := Consolidate(order, nil, params2023)
		require.NoError(t, err)
		assert.True(t, p.Holdings[0].Total.Equal(dec("1001")))
	}
}

func TestConsolidate_MissingRate(t *testing.T) {
	a := build("a", day(2024, 1, 5), 0, acctA).
		position(secX, "10", "1000", "GBP", day(2023, 12, 31)).st

	_, err := Consolidate([]*model.Statement{a}, rates.NewTable("EUR"), params2023)
	require.Error(t, err)
	var cerr *failure.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "GBP@2023-12-31", cerr.Key)

	_, err = Consolidate([]*model.Statement{a}, nil, params2023)
	require.Error(t, err)
	assert.Equal(t, failure.KindConfig, failure.Category(err))
}

func TestConsolidate_ConvertsWithRate(t *testing.T) {
	tbl := rates.NewTable("EUR")
	tbl.Set("USD", day(2023, 12, 31), dec("0.905"))
	tbl.Set("USD", day(2023, 6, 8), dec("0.93"))
	a := build("a", day(2024, 1, 5), 0, acctB).
		position(secX, "20", "7520.80", "USD", day(2023, 12, 31)).
		tx(secX, model.TxDividend, "0", "17", "USD", day(2023, 6, 8), "D1").st

	p, err := Consolidate([]*model.Statement{a}, tbl, params2023)
	require.NoError(t, err)
	assert.Equal(t, "6806.324", p.Holdings[0].Total.String())
	require.Len(t, p.Movements, 1)
	assert.Equal(t, "15.81", p.Movements[0].Value.String())
}

func TestConsolidate_YearWindow(t *testing.T) {
	a := build("a", day(2024, 3, 1), 0, acctA).
		position(secX, "10", "1000", "EUR", day(2023, 12, 31)).
		tx(secX, model.TxBuy, "5", "400", "EUR", day(2021, 5, 4), "R0").
		tx(secX, model.TxBuy, "5", "500", "EUR", day(2023, 2, 1), "R1").
		tx(secX, model.TxSell, "1", "110", "EUR", day(2024, 1, 15), "R2").st

	p, err := Consolidate([]*model.Statement{a}, nil, params2023)
	require.NoError(t, err)
	require.Len(t, p.Movements, 1, "only transactions inside the fiscal year")
	assert.Equal(t, "R1", p.Movements[0].Reference)
	assert.Equal(t, day(2021, 5, 4), p.Holdings[0].Contributions[0].FirstAcquired)
}

func TestConsolidate_NoCutoff(t *testing.T) {
	_, err := Consolidate(nil, nil, Params{Year: 2023, Currency: "EUR"})
	require.Error(t, err)
	assert.Equal(t, failure.KindConfig, failure.Category(err))
}

func TestConsolidate_ShuffleDeterminism(t *testing.T) {
	var stmts []*model.Statement
	for i, acct := range []model.CustodyAccount{acctA, acctB} {
		b := build(acct.AccountID, day(2024, 1, 5+i), i, acct).
			position(secX, "10", "1000", "EUR", day(2023, 12, 31)).
			position(secY, "4", "400", "EUR", day(2023, 11, 30)).
			tx(secY, model.TxBuy, "4", "380", "EUR", day(2023, 4, 2), "Y1").
			tx(secX, model.TxDividend, "0", "12.5", "EUR", day(2023, 5, 2), "X1")
		stmts = append(stmts, b.st)
	}
	// A re-export of the first account, generated later.
	stmts = append(stmts, build("A-again", day(2024, 2, 1), 2, acctA).
		position(secX, "10", "1005", "EUR", day(2023, 12, 31)).
		tx(secX, model.TxDividend, "0", "12.5", "EUR", day(2023, 5, 2), "X1").st)

	want, err := Consolidate(stmts, nil, params2023)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]*model.Statement(nil), stmts...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := Consolidate(shuffled, nil, params2023)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, secY.ID, want.Holdings[0].Security.ID, "ordered by security id")
	assert.Equal(t, "2805", want.Holdings[0].Total.Add(want.Holdings[1].Total).String())
}

// Normalizing and consolidating a single statement reproduces the
// valuations the broker printed.
func TestConsolidate_RoundTripFromReports(t *testing.T) {
	svc := brokers.NewService(brokers.Default())
	tbl := rates.NewTable("EUR")
	tbl.Set("USD", day(2023, 12, 31), dec("0.905"))
	tbl.Set("USD", day(2023, 2, 10), dec("0.93"))
	tbl.Set("USD", day(2023, 3, 15), dec("0.92"))
	tbl.Set("USD", day(2023, 5, 18), dec("0.92"))
	tbl.Set("USD", day(2023, 6, 8), dec("0.93"))
	tbl.Set("USD", day(2023, 11, 20), dec("0.91"))

	for _, tc := range []struct{ format, file string }{
		{"degiro", "degiro_2023.txt"},
		{"ibkr", "ibkr_2023.csv"},
	} {
		t.Run(tc.format, func(t *testing.T) {
			data, err := os.ReadFile("../../testdata/" + tc.file)
			require.NoError(t, err)
			rep, err := importer.DefaultRegistry().Read(tc.format, data, importer.Options{})
			require.NoError(t, err)
			st, err := normalize.Statement(rep, 0, svc)
			require.NoError(t, err)

			p, err := Consolidate([]*model.Statement{st}, tbl, params2023)
			require.NoError(t, err)
			for _, pos := range st.Positions {
				h := p.Holding(pos.Security.ID)
				require.NotNil(t, h, pos.Security.ID)
				want := pos.Value
				if pos.Currency != "EUR" {
					r, err := tbl.Rate(pos.Currency, pos.Date)
					require.NoError(t, err)
					want = want.Mul(r)
				}
				assert.True(t, h.Total.Sub(want).Abs().LessThanOrEqual(model.SumTolerance),
					"%s: want %s got %s", pos.Security.ID, want, h.Total)
			}
		})
	}
}
