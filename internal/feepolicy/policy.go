// Package feepolicy holds the platform's fee and reward arithmetic. Every
// function here is pure and total: no I/O, no failure paths, and for any
// amount > 0 the split PlatformFee(amount) + NetAmount(amount) == amount.
package feepolicy

import "github.com/worklyhq/backend/internal/models"

// Rates in basis points of 10_000.
const (
	// FeeRateBps is the platform fee retained on release: 2.5%.
	FeeRateBps = 250
	// RewardRateBps is the WORK loyalty accrual on a worker's net payout: 1%.
	RewardRateBps = 100
	// FundingToleranceBps is the slack allowed when detecting funding, to
	// absorb network-fee rounding on the depositor's side: 1%.
	FundingToleranceBps = 100

	bpsDenominator = 10_000
)

// MinWithdrawalLamports is the smallest withdrawal accepted: 0.001 SOL.
const MinWithdrawalLamports = 1_000_000

// Loyalty tiers, inclusive lower bounds in WORK base units
// (1 WORK = 1e9 base units). A bigger WORK balance never yields a bigger fee.
const (
	tierSilverMin = 100 * models.LamportsPerSOL
	tierGoldMin   = 500 * models.LamportsPerSOL
	tierPlatMin   = 1000 * models.LamportsPerSOL

	tierSilverDiscountBps = 1_500
	tierGoldDiscountBps   = 3_000
	tierPlatDiscountBps   = 5_000
)

// PlatformFee returns the base fee for a gross reward amount.
func PlatformFee(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount * FeeRateBps / bpsDenominator
}

// NetAmount is the worker's share: amount minus the base platform fee.
func NetAmount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount - PlatformFee(amount)
}

// DiscountedFee applies the caller's loyalty tier to the base fee.
// Tier boundaries are inclusive: a balance of exactly 100 WORK earns the
// silver discount.
func DiscountedFee(amount, loyaltyBalance int64) int64 {
	fee := PlatformFee(amount)
	return fee - fee*discountBps(loyaltyBalance)/bpsDenominator
}

func discountBps(loyaltyBalance int64) int64 {
	switch {
	case loyaltyBalance >= tierPlatMin:
		return tierPlatDiscountBps
	case loyaltyBalance >= tierGoldMin:
		return tierGoldDiscountBps
	case loyaltyBalance >= tierSilverMin:
		return tierSilverDiscountBps
	}
	return 0
}

// RewardAccrual returns the WORK loyalty earned on a net payout.
func RewardAccrual(netAmount int64) int64 {
	if netAmount <= 0 {
		return 0
	}
	return netAmount * RewardRateBps / bpsDenominator
}

// FundingThreshold is the minimum on-chain balance at the escrow address
// that counts as funded for a gross reward amount.
func FundingThreshold(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount - amount*FundingToleranceBps/bpsDenominator
}
