package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// formatAmount renders minor units for humans, e.g. 9500 usd -> "95.00 USD".
func formatAmount(minor int64, currency string) string {
	exp := int32(-2)
	places := int32(2)
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		exp, places = 0, 0
	}
	return decimal.New(minor, exp).StringFixed(places) + " " + strings.ToUpper(currency)
}
