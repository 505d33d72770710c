package bakong

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is a settlement currency accepted by the gateway.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKHR Currency = "KHR"
)

func (c Currency) Valid() bool {
	return c == CurrencyUSD || c == CurrencyKHR
}

// khrPerUSD is an approximate fixed rate; a live rate feed is out of scope.
const khrPerUSD = 4100

// ConvertUSDToKHR converts a USD amount to whole riel.
func ConvertUSDToKHR(usd float64) int64 {
	return decimal.NewFromFloat(usd).Mul(decimal.NewFromInt(khrPerUSD)).Round(0).IntPart()
}

// FormatAmount renders an amount for display in the given currency.
func FormatAmount(amount float64, currency Currency) string {
	if currency == CurrencyUSD {
		return "$" + decimal.NewFromFloat(amount).StringFixed(2)
	}
	return fmt.Sprintf("%d ៛", decimal.NewFromFloat(amount).Round(0).IntPart())
}
