package cart

import (
	"luxio/models"

	"github.com/shopspring/decimal"
)

func Total(items []models.CartItem) float64 {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(lineTotal(item.Price, item.Quantity))
	}
	return sum.InexactFloat64()
}

func ItemCount(items []models.CartItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

func Summary(items []models.CartItem) models.CartSummary {
	savings := decimal.Zero
	for _, item := range items {
		if item.OriginalPrice > item.Price {
			delta := decimal.NewFromFloat(item.OriginalPrice).Sub(decimal.NewFromFloat(item.Price))
			savings = savings.Add(delta.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return models.CartSummary{
		ItemCount:   ItemCount(items),
		UniqueItems: len(items),
		Total:       Total(items),
		Savings:     savings.Round(2).InexactFloat64(),
	}
}

func lineTotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}
