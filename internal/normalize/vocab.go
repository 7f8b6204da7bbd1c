package normalize

import (
	"strings"

	"github.com/declara-dev/declara/internal/model"
)

// Market codes as printed by each broker, mapped to ISO 10383 MICs.
var (
	degiroMarkets = map[string]string{
		"NDQ": "XNAS",
		"NSY": "XNYS",
		"XET": "XETR",
		"FRA": "XFRA",
		"EAM": "XAMS",
		"EPA": "XPAR",
		"EBR": "XBRU",
		"MAD": "XMAD",
		"MIL": "XMIL",
		"LSE": "XLON",
		"SWX": "XSWX",
	}
	ibkrMarkets = map[string]string{
		"NASDAQ":   "XNAS",
		"NYSE":     "XNYS",
		"ARCA":     "ARCX",
		"IBIS":     "XETR",
		"IBIS2":    "XETR",
		"FWB":      "XFRA",
		"AEB":      "XAMS",
		"SBF":      "XPAR",
		"ENEXT.BE": "XBRU",
		"BM":       "XMAD",
		"BVME":     "XMIL",
		"LSE":      "XLON",
		"LSEETF":   "XLON",
		"EBS":      "XSWX",
	}
)

// market maps a broker market code, keeping unknown codes as reported.
func market(vocab map[string]string, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if mic, ok := vocab[code]; ok {
		return mic
	}
	return code
}

var (
	fundWords       = []string{"ETF", "UCITS", "FUND", "FONDO", "SICAV", "ETC"}
	cashWords       = []string{"LIQUIDITY", "MONEY MARKET", "MONETARIO"}
	derivativeWords = []string{"WARRANT", "TURBO", "OPTION", "MINI FUTURE", "CALL ", "PUT "}
)

// classifyName guesses the asset class from a product name.
func classifyName(name string) model.AssetClass {
	n := " " + strings.ToUpper(name) + " "
	switch {
	case containsWord(n, cashWords):
		return model.AssetCashEquivalent
	case containsWord(n, derivativeWords):
		return model.AssetDerivative
	case containsWord(n, fundWords):
		return model.AssetFund
	default:
		return model.AssetEquity
	}
}

func containsWord(n string, words []string) bool {
	for _, w := range words {
		if strings.Contains(n, " "+strings.TrimSpace(w)+" ") {
			return true
		}
	}
	return false
}

// classifyIBKR uses the statement's asset category and instrument type.
func classifyIBKR(category, kind, name string) model.AssetClass {
	switch strings.ToUpper(strings.TrimSpace(category)) {
	case "EQUITY AND INDEX OPTIONS", "OPTIONS", "FUTURES", "FUTURES OPTIONS", "WARRANTS", "CFDS", "STRUCTURED PRODUCTS":
		return model.AssetDerivative
	case "MUTUAL FUNDS", "FUNDS":
		return model.AssetFund
	case "TREASURY BILLS":
		return model.AssetCashEquivalent
	}
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case "ETF", "ETC", "ETN", "FUND":
		return model.AssetFund
	case "COMMON", "ADR", "REIT", "PREFERRED", "GDR":
		return model.AssetEquity
	}
	return classifyName(name)
}

// issuerCountry returns the ISIN country prefix, or "" for broker-local ids.
func issuerCountry(id string) string {
	return model.ISINCountry(id)
}
