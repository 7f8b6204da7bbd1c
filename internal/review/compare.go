package review

import (
	"fmt"

	"github.com/declara-dev/declara/internal/model"
)

// Difference is one mismatch between a reviewed export and the lines the
// inputs produce now. Line is 1-based; Field is empty when the whole line
// is missing or extra.
type Difference struct {
	Line     int
	Field    string
	Reviewed string
	Current  string
}

func (d Difference) String() string {
	switch {
	case d.Field != "":
		return fmt.Sprintf("line %d: %s is %q in the review, %q now", d.Line, d.Field, d.Reviewed, d.Current)
	case d.Current == "":
		return fmt.Sprintf("line %d: %s is no longer produced", d.Line, d.Reviewed)
	}
	return fmt.Sprintf("line %d: %s was not reviewed", d.Line, d.Current)
}

// Compare matches reviewed against current line by line. Lines are in
// generator order, so a position holds the same holding in both unless
// something upstream changed.
func Compare(reviewed, current []model.DeclarationLine) []Difference {
	cols := columns(append(append([]model.DeclarationLine{}, reviewed...), current...))
	header := append(append([]string{}, fixedHeader...), names(cols)...)

	var out []Difference
	for i := 0; i < len(reviewed) || i < len(current); i++ {
		switch {
		case i >= len(current):
			out = append(out, Difference{Line: i + 1, Reviewed: describe(reviewed[i])})
			continue
		case i >= len(reviewed):
			out = append(out, Difference{Line: i + 1, Current: describe(current[i])})
			continue
		}
		r, c := marshalLine(reviewed[i], cols), marshalLine(current[i], cols)
		for j := range r {
			if r[j] != c[j] {
				out = append(out, Difference{Line: i + 1, Field: header[j], Reviewed: r[j], Current: c[j]})
			}
		}
	}
	return out
}

func names(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

func describe(l model.DeclarationLine) string {
	id, _ := l.SortKey()
	return fmt.Sprintf("%s %s (%s %s)", l.Form, id, l.Account.Broker, l.Account.AccountID)
}
