// Package normalize maps the provisional rows of a broker report onto the
// canonical model.
//
// Readers guarantee that every required field of a row is present and
// typed, so any gap found here is a defect and reported as an internal
// error.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/brokers"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/locale"
	"github.com/declara-dev/declara/internal/model"
)

const stage = "normalize"

// mapper converts the rows of one report format.
type mapper interface {
	position(r row) (model.Position, error)
	transactions(r row) ([]model.Transaction, error)
}

// Statement converts a report into a canonical statement. seq is the
// caller's parse order and breaks ties between statements generated at
// the same instant.
func Statement(rep *importer.Report, seq int, table *brokers.Service) (*model.Statement, error) {
	b, ok := table.Get(rep.Format)
	if !ok {
		return nil, failure.Internal(stage, "no broker entry for format %q", rep.Format)
	}

	st := &model.Statement{
		ID:     uuid.NewString(),
		Format: rep.Format,
		AsOf:   rep.AsOf,
		Seq:    seq,
		Account: model.CustodyAccount{
			Broker:    b.Name,
			AccountID: rep.Account,
			Country:   b.Country,
			Currency:  rep.BaseCurrency,
		},
		PeriodEnd: rep.PeriodEnd,
	}

	var m mapper
	switch rep.Format {
	case "degiro":
		m = &degiroMapper{st: st}
	case "ibkr":
		m = &ibkrMapper{st: st}
	default:
		return nil, failure.Internal(stage, "no mapping for format %q", rep.Format)
	}

	seen := make(map[string]bool)
	addSecurity := func(s model.Security) {
		if !seen[s.ID] {
			seen[s.ID] = true
			st.Securities = append(st.Securities, s)
		}
	}

	for _, raw := range rep.Rows {
		r := row{Row: raw, format: rep.Format}
		switch raw.Kind {
		case importer.RowPosition:
			p, err := m.position(r)
			if err != nil {
				return nil, err
			}
			addSecurity(p.Security)
			st.Positions = append(st.Positions, p)
		case importer.RowTrade, importer.RowCash:
			txs, err := m.transactions(r)
			if err != nil {
				return nil, err
			}
			for _, tx := range txs {
				addSecurity(tx.Security)
			}
			st.Transactions = append(st.Transactions, txs...)
		default:
			return nil, failure.Internal(stage, "%s line %d: unknown row kind %q", rep.Format, raw.Line, raw.Kind)
		}
	}
	return st, nil
}

// row wraps a provisional row with accessors that turn missing fields into
// internal errors.
type row struct {
	importer.Row
	format string
}

func (r row) missing(name string) error {
	return failure.Internal(stage, "%s line %d: %s row lacks field %q", r.format, r.Line, r.Kind, name)
}

func (r row) str(name string) (string, error) {
	s, ok := r.String(name)
	if !ok {
		return "", r.missing(name)
	}
	return s, nil
}

func (r row) optStr(name string) string {
	s, _ := r.String(name)
	return s
}

func (r row) dec(name string) (decimal.Decimal, error) {
	d, ok := r.Decimal(name)
	if !ok {
		return decimal.Zero, r.missing(name)
	}
	return d, nil
}

func (r row) optDec(name string) decimal.Decimal {
	d, _ := r.Decimal(name)
	return d
}

func (r row) date(name string) (time.Time, error) {
	t, ok := r.Date(name)
	if !ok {
		return time.Time{}, r.missing(name)
	}
	return locale.Day(t), nil
}

// reference synthesises a stable reference for brokers that do not print
// an order id. Equal facts in overlapping reports get equal references.
func reference(prefix string, date time.Time, isin string, tx model.TxType, qty, amount decimal.Decimal) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s-%s", prefix, date.Format("20060102"), strings.ToUpper(isin), tx, qty.Abs().String(), amount.Abs().String())
}
