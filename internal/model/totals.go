package model

import "github.com/shopspring/decimal"

// LineTotal is price × quantity. Lines stored without a quantity count once.
func (s OrderService) LineTotal() decimal.Decimal {
	qty := s.Quantity
	if qty < 1 {
		qty = 1
	}
	return s.Price.Mul(decimal.NewFromInt(int64(qty)))
}

func Total(order Order) decimal.Decimal {
	total := decimal.Zero
	for _, line := range order.Services {
		total = total.Add(line.LineTotal())
	}
	return total
}

// AmountDue never goes below zero, even when prepayment exceeds the total.
func AmountDue(order Order) decimal.Decimal {
	due := Total(order).Sub(order.Prepayment)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}
