package model

import "time"

// Statement is the canonical content of one broker export.
type Statement struct {
	ID           string
	Format       string
	AsOf         time.Time
	Seq          int
	Account      CustodyAccount
	PeriodEnd    time.Time
	Securities   []Security
	Positions    []Position
	Transactions []Transaction
}

// Ref returns the provenance reference stamped on the statement's entities.
func (s *Statement) Ref() StatementRef {
	return StatementRef{ID: s.ID, AsOf: s.AsOf, Seq: s.Seq}
}
