package models

import "time"

// EscrowStatus is the escrow state machine. Transitions are forward-only:
// pending_payment -> funded -> completed, with cancelled reachable from
// pending_payment or funded. A completed escrow never changes again.
type EscrowStatus string

const (
	EscrowPendingPayment EscrowStatus = "pending_payment"
	EscrowFunded         EscrowStatus = "funded"
	EscrowCompleted      EscrowStatus = "completed"
	EscrowCancelled      EscrowStatus = "cancelled"
)

// EscrowAccount is a custodial address holding one task's reward until
// release. Invariant: PlatformFee + NetAmount == Amount.
type EscrowAccount struct {
	TaskID          string       `json:"task_id"`
	Address         string       `json:"address"`
	EncryptedSecret string       `json:"-"`
	ClientID        string       `json:"client_id"`
	WorkerID        *string      `json:"worker_id,omitempty"`
	Amount          int64        `json:"amount"`
	Token           Token        `json:"token"`
	PlatformFee     int64        `json:"platform_fee"`
	NetAmount       int64        `json:"net_amount"`
	Status          EscrowStatus `json:"status"`
	// SettlementSig is persisted as soon as the payout transaction has been
	// submitted, before confirmation, so a crash mid-settlement is
	// recoverable by re-querying the signature's fate.
	SettlementSig *string    `json:"settlement_sig,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FundedAt      *time.Time `json:"funded_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
