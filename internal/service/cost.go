package service

import "chargebook/internal/models"

// ComputeCost turns consumed energy and tariff into a monetary amount.
// base = energy * price; a qualifying promotion discounts by its percentage,
// capped at its max discount, and the result never goes below zero.
// Pure: identical inputs always produce identical output.
func ComputeCost(energyKWh, pricePerKWh float64, promo *models.Promotion) float64 {
	base := energyKWh * pricePerKWh
	if base <= 0 {
		return 0
	}
	if promo == nil || base < promo.MinAmount {
		return base
	}

	discount := base * promo.DiscountPercent / 100
	if discount > promo.MaxDiscount {
		discount = promo.MaxDiscount
	}

	amount := base - discount
	if amount < 0 {
		amount = 0
	}
	return amount
}
