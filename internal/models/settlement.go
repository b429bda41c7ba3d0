package models

// Settlement carries everything the store needs to finalize a completed
// escrow in one atomic write: the status flip, both wallets' accumulators,
// the loyalty accrual and the audit entries.
type Settlement struct {
	TaskID        string
	EscrowAddress string
	ClientID      string
	WorkerID      string
	Token         Token
	Amount        int64
	NetAmount     int64
	LoyaltyReward int64
	Signature     string
}
