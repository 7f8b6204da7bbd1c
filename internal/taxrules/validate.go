package taxrules

import (
	"fmt"

	"github.com/declara-dev/declara/internal/model"
)

// ValidationError describes a single invariant violation on a line.
type ValidationError struct {
	Invariant   int
	Line        int // 1-based position in the line list
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [line %d]: %s", e.Invariant, e.Line, e.Description)
}

// monetary lists the fields rounded to the form's decimals.
var monetary = []string{FieldValue, FieldAmount, FieldYearEndValue}

// Validate checks generated lines before they are serialized:
//  1. every line targets the form
//  2. every line references a holding
//  3. the line's account contributes to that holding
//  4. the isin field names the holding's security
//  5. monetary values carry no more than the form's decimals
//  6. lines are ordered by security id, then account
func Validate(lines []model.DeclarationLine, params Params) []ValidationError {
	var errs []ValidationError
	add := func(inv, i int, format string, args ...any) {
		errs = append(errs, ValidationError{Invariant: inv, Line: i + 1, Description: fmt.Sprintf(format, args...)})
	}

	for i, l := range lines {
		if l.Form != params.Form {
			add(1, i, "line for form %q in %q", l.Form, params.Form)
		}
		if l.Holding == nil {
			add(2, i, "line references no holding")
			continue
		}
		if _, ok := l.Holding.Contribution(l.Account.Key()); !ok {
			add(3, i, "account %s does not contribute to %s", l.Account.Key(), l.Holding.Security.ID)
		}
		if v, _ := l.Fields.Get(FieldISIN); v.Text != l.Holding.Security.ID {
			add(4, i, "isin %q does not match holding %s", v.Text, l.Holding.Security.ID)
		}
		for _, name := range monetary {
			v, ok := l.Fields.Get(name)
			if !ok || v.Kind != model.KindNumber {
				continue
			}
			if !v.Number.Equal(v.Number.Truncate(params.Decimals)) {
				add(5, i, "%s %s has more than %d decimals", name, v.Number, params.Decimals)
			}
		}
		if i > 0 {
			si, ai := lines[i-1].SortKey()
			sj, aj := l.SortKey()
			if sj < si || (sj == si && aj.Less(ai)) {
				add(6, i, "line out of order after %s %s", si, ai)
			}
		}
	}
	return errs
}
