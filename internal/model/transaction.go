package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the kind of movement on a custody account.
type TxType string

const (
	TxBuy      TxType = "buy"
	TxSell     TxType = "sell"
	TxDividend TxType = "dividend"
	TxFee      TxType = "fee"
	TxTransfer TxType = "transfer"
)

// Transaction is a movement on a security. Quantity and Amount are
// absolute values; direction is carried by Type.
type Transaction struct {
	Account   CustodyAccount
	Security  Security
	Type      TxType
	Quantity  decimal.Decimal
	Amount    decimal.Decimal
	Currency  string
	Date      time.Time
	Reference string // broker order id, or a synthesised reference
	Source    StatementRef
}

// Position is a holding snapshot on a given date.
type Position struct {
	Account  CustodyAccount
	Security Security
	Quantity decimal.Decimal
	Value    decimal.Decimal
	Currency string
	Date     time.Time
	Source   StatementRef
}

// StatementRef records which parsed statement produced an entity, for
// deterministic de-duplication.
type StatementRef struct {
	ID   string
	AsOf time.Time // timestamp the broker attached to the statement
	Seq  int       // parse order
}

// Newer reports whether r should win over o when both describe the same
// fact: later AsOf first, then later parse order.
func (r StatementRef) Newer(o StatementRef) bool {
	if !r.AsOf.Equal(o.AsOf) {
		return r.AsOf.After(o.AsOf)
	}
	return r.Seq > o.Seq
}
