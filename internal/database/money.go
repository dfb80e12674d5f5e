package database

import "github.com/shopspring/decimal"

// Money columns hold integer minor units. SQLite gives NUMERIC columns REAL
// storage for fractional values, so sums and increments are done on cents.

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
