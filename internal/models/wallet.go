package models

import "time"

// Token is one of the closed set of currencies an escrow can be denominated in.
type Token string

const (
	TokenSOL  Token = "SOL"
	TokenUSDT Token = "USDT"
	TokenUSDC Token = "USDC"
)

// Supported reports whether t is a member of the supported token set.
func (t Token) Supported() bool {
	switch t {
	case TokenSOL, TokenUSDT, TokenUSDC:
		return true
	}
	return false
}

// Transferable reports whether escrows in t can be settled on-chain.
// Only native SOL transfers are wired up today.
func (t Token) Transferable() bool {
	return t == TokenSOL
}

// LamportsPerSOL is the number of base units in one SOL. All monetary
// amounts in this codebase are int64 base units, never floats.
const LamportsPerSOL = 1_000_000_000

// Wallet is a custodial user wallet. SolBalance is a read cache of the
// on-chain balance (the chain is authoritative); TotalEarned, TotalSpent and
// LoyaltyBalance are ledger-maintained accumulators with no chain equivalent.
type Wallet struct {
	UserID          string    `json:"user_id"`
	Address         string    `json:"address"`
	EncryptedSecret string    `json:"-"`
	SolBalance      int64     `json:"sol_balance"`
	UsdtBalance     int64     `json:"usdt_balance"`
	UsdcBalance     int64     `json:"usdc_balance"`
	LoyaltyBalance  int64     `json:"loyalty_balance"`
	TotalEarned     int64     `json:"total_earned"`
	TotalSpent      int64     `json:"total_spent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
