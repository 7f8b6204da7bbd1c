package model

import "strings"

// AssetClass classifies a security for declaration purposes.
type AssetClass string

const (
	AssetEquity         AssetClass = "equity"
	AssetFund           AssetClass = "fund"
	AssetDerivative     AssetClass = "derivative"
	AssetCashEquivalent AssetClass = "cash-equivalent"
)

// Security identifies a tradable instrument. Values are immutable once a
// statement has been normalized.
type Security struct {
	ID            string // ISIN, or broker-local code when no ISIN is known
	Name          string
	IssuerCountry string // ISO 3166-1 alpha-2
	Class         AssetClass
	Market        string // exchange code as reported by the broker
}

// IsISIN reports whether the security is identified by a valid ISIN.
func (s Security) IsISIN() bool { return ValidISIN(s.ID) }

// ValidISIN checks the ISIN layout (2 letters, 9 alphanumerics, 1 digit)
// and its Luhn check digit.
func ValidISIN(isin string) bool {
	if len(isin) != 12 {
		return false
	}
	isin = strings.ToUpper(isin)
	var digits []int
	for i, r := range isin {
		switch {
		case r >= '0' && r <= '9':
			if i < 2 {
				return false
			}
			digits = append(digits, int(r-'0'))
		case r >= 'A' && r <= 'Z':
			if i == 11 {
				return false
			}
			v := int(r-'A') + 10
			digits = append(digits, v/10, v%10)
		default:
			return false
		}
	}

	sum := 0
	for i := 0; i < len(digits); i++ {
		d := digits[len(digits)-1-i]
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// ISINCountry returns the country prefix of an ISIN, or "" if id is not one.
func ISINCountry(id string) string {
	if !ValidISIN(id) {
		return ""
	}
	return strings.ToUpper(id[:2])
}
