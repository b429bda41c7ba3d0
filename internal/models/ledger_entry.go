package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction log entry types. The log is append-only and serves as the
// audit trail; entries are never mutated or deleted.
const (
	EntryWalletCreated   = "wallet_created"
	EntryEscrowCreated   = "escrow_created"
	EntryEscrowFunded    = "escrow_funded"
	EntryEscrowCancelled = "escrow_cancelled"
	EntryTaskCompleted   = "task_completed"
	EntryWorklyReward    = "workly_reward"
	EntryWithdrawal      = "withdrawal"
)

type LedgerEntry struct {
	ID            uuid.UUID `json:"id"`
	EntryType     string    `json:"entry_type"`
	UserID        string    `json:"user_id"`
	TaskID        *string   `json:"task_id,omitempty"`
	EscrowAddress *string   `json:"escrow_address,omitempty"`
	Amount        *int64    `json:"amount,omitempty"`
	Token         *Token    `json:"token,omitempty"`
	TxSignature   *string   `json:"tx_signature,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
