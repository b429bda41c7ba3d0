package feepolicy

import (
	"testing"

	"github.com/worklyhq/backend/internal/models"
)

func TestSplit_FeePlusNetEqualsAmount(t *testing.T) {
	amounts := []int64{
		1, 2, 39, 40, 41, 999, 1_000_000,
		10 * models.LamportsPerSOL,
		123_456_789_012,
		1<<40 + 7,
	}
	for _, amount := range amounts {
		fee := PlatformFee(amount)
		net := NetAmount(amount)
		if fee+net != amount {
			t.Errorf("amount %d: fee %d + net %d != amount", amount, fee, net)
		}
		if fee < 0 || fee > amount {
			t.Errorf("amount %d: fee %d out of range", amount, fee)
		}
	}
}

func TestSplit_ReferenceExample(t *testing.T) {
	// 10 SOL reward: fee 0.25 SOL, net 9.75 SOL, reward accrual 0.0975 WORK.
	amount := int64(10 * models.LamportsPerSOL)
	if got := PlatformFee(amount); got != 250_000_000 {
		t.Errorf("PlatformFee(10 SOL) = %d, want 250000000", got)
	}
	if got := NetAmount(amount); got != 9_750_000_000 {
		t.Errorf("NetAmount(10 SOL) = %d, want 9750000000", got)
	}
	if got := RewardAccrual(NetAmount(amount)); got != 97_500_000 {
		t.Errorf("RewardAccrual(net) = %d, want 97500000", got)
	}
}

func TestSplit_NonPositiveAmounts(t *testing.T) {
	for _, amount := range []int64{0, -1, -1_000_000} {
		if got := PlatformFee(amount); got != 0 {
			t.Errorf("PlatformFee(%d) = %d, want 0", amount, got)
		}
		if got := NetAmount(amount); got != 0 {
			t.Errorf("NetAmount(%d) = %d, want 0", amount, got)
		}
		if got := RewardAccrual(amount); got != 0 {
			t.Errorf("RewardAccrual(%d) = %d, want 0", amount, got)
		}
	}
}

func TestDiscountedFee_TierBoundaries(t *testing.T) {
	amount := int64(10 * models.LamportsPerSOL)
	base := PlatformFee(amount)

	cases := []struct {
		name    string
		loyalty int64
		want    int64
	}{
		{"zero balance", 0, base},
		{"just below silver (99.999 WORK)", 100*models.LamportsPerSOL - 1_000_000, base},
		{"exactly silver (100 WORK)", 100 * models.LamportsPerSOL, base - base*1500/10000},
		{"just below gold", 500*models.LamportsPerSOL - 1, base - base*1500/10000},
		{"exactly gold (500 WORK)", 500 * models.LamportsPerSOL, base - base*3000/10000},
		{"exactly platinum (1000 WORK)", 1000 * models.LamportsPerSOL, base - base*5000/10000},
		{"far above platinum", 1_000_000 * models.LamportsPerSOL, base / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DiscountedFee(amount, tc.loyalty); got != tc.want {
				t.Errorf("DiscountedFee(%d, %d) = %d, want %d", amount, tc.loyalty, got, tc.want)
			}
		})
	}
}

func TestDiscountedFee_MonotoneNonIncreasing(t *testing.T) {
	amount := int64(7_777_777_777)
	prev := PlatformFee(amount) + 1
	for loyalty := int64(0); loyalty <= 1200*models.LamportsPerSOL; loyalty += 25 * models.LamportsPerSOL {
		fee := DiscountedFee(amount, loyalty)
		if fee > prev {
			t.Fatalf("fee increased from %d to %d at loyalty %d", prev, fee, loyalty)
		}
		if fee > PlatformFee(amount) {
			t.Fatalf("discounted fee %d exceeds base fee at loyalty %d", fee, loyalty)
		}
		if fee < 0 {
			t.Fatalf("negative fee %d at loyalty %d", fee, loyalty)
		}
		prev = fee
	}
}

func TestFundingThreshold(t *testing.T) {
	amount := int64(10 * models.LamportsPerSOL)
	want := amount - amount/100
	if got := FundingThreshold(amount); got != want {
		t.Errorf("FundingThreshold(%d) = %d, want %d", amount, got, want)
	}
	if got := FundingThreshold(0); got != 0 {
		t.Errorf("FundingThreshold(0) = %d, want 0", got)
	}
	if FundingThreshold(amount) > amount {
		t.Error("threshold must never exceed the amount itself")
	}
}
