package postgres

import (
	"github.com/shopspring/decimal"
)

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func centsPtr(d *decimal.Decimal) *int64 {
	if d == nil {
		return nil
	}
	c := toCents(*d)
	return &c
}

func decimalPtr(c *int64) *decimal.Decimal {
	if c == nil {
		return nil
	}
	d := fromCents(*c)
	return &d
}
