// internal/domain/money.go
package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// QuoteCurrency is the fiat currency every price and balance is denominated in.
const QuoteCurrency = money.USD

// FormatUSD renders a float amount as display money, e.g. "$10,000.00".
func FormatUSD(amount float64) string {
	cur := money.GetCurrency(QuoteCurrency)
	minor := decimal.NewFromFloat(amount).Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return money.New(minor.IntPart(), QuoteCurrency).Display()
}
