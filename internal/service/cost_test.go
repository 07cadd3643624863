package service

import (
	"testing"
	"time"

	"chargebook/internal/models"
)

func TestComputeCostWithoutPromotion(t *testing.T) {
	tests := []struct {
		name   string
		energy float64
		price  float64
		want   float64
	}{
		{name: "typical session", energy: 30, price: 3500, want: 105000},
		{name: "zero energy", energy: 0, price: 3500, want: 0},
		{name: "zero price", energy: 42, price: 0, want: 0},
		{name: "fractional energy", energy: 12.5, price: 8, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCost(tt.energy, tt.price, nil)
			if got != tt.want {
				t.Errorf("ComputeCost(%v, %v, nil) = %v, want %v", tt.energy, tt.price, got, tt.want)
			}
		})
	}
}

func TestComputeCostWithPromotion(t *testing.T) {
	promo := &models.Promotion{
		DiscountPercent: 10,
		MaxDiscount:     5000,
		MinAmount:       50000,
	}

	tests := []struct {
		name   string
		energy float64
		price  float64
		want   float64
	}{
		// 30 * 3500 = 105000, 10% = 10500, capped at 5000
		{name: "discount capped", energy: 30, price: 3500, want: 100000},
		// 20 * 3000 = 60000, 10% = 6000, capped at 5000
		{name: "discount capped again", energy: 20, price: 3000, want: 55000},
		// 10 * 3500 = 35000, below min amount, no discount
		{name: "below min amount", energy: 10, price: 3500, want: 35000},
		// 50000 exactly at min amount qualifies, 10% = 5000 within cap
		{name: "exactly at min amount", energy: 10, price: 5000, want: 45000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCost(tt.energy, tt.price, promo)
			if got != tt.want {
				t.Errorf("ComputeCost(%v, %v, promo) = %v, want %v", tt.energy, tt.price, got, tt.want)
			}
		})
	}
}

func TestComputeCostNeverNegative(t *testing.T) {
	promo := &models.Promotion{
		DiscountPercent: 100,
		MaxDiscount:     1000000,
		MinAmount:       0,
	}
	if got := ComputeCost(10, 100, promo); got != 0 {
		t.Errorf("ComputeCost with 100%% discount = %v, want 0", got)
	}
}

func TestComputeCostIsMonotonicInEnergy(t *testing.T) {
	// MinAmount 0 keeps the discount active over the whole range; with a
	// threshold the qualifying side can legitimately cost less than just
	// below it.
	promo := &models.Promotion{
		DiscountPercent: 15,
		MaxDiscount:     7000,
		MinAmount:       0,
	}

	prev := 0.0
	for energy := 0.0; energy <= 100; energy += 0.5 {
		got := ComputeCost(energy, 3500, promo)
		if got < prev {
			t.Fatalf("cost regressed at energy %v: %v < %v", energy, got, prev)
		}
		prev = got
	}
}

func TestComputeCostIsPure(t *testing.T) {
	promo := &models.Promotion{
		DiscountPercent: 10,
		MaxDiscount:     5000,
		MinAmount:       50000,
		ValidFrom:       time.Now().Add(-time.Hour),
		ValidUntil:      time.Now().Add(time.Hour),
	}
	first := ComputeCost(33.3, 3500, promo)
	for i := 0; i < 10; i++ {
		if got := ComputeCost(33.3, 3500, promo); got != first {
			t.Fatalf("ComputeCost not deterministic: %v != %v", got, first)
		}
	}
}
