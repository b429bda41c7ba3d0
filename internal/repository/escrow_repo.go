package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worklyhq/backend/internal/models"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = `task_id, address, encrypted_secret, client_id, worker_id, amount, token,
	platform_fee, net_amount, status, settlement_sig, created_at, funded_at, completed_at`

func scanEscrow(row pgx.Row) (*models.EscrowAccount, error) {
	var e models.EscrowAccount
	err := row.Scan(&e.TaskID, &e.Address, &e.EncryptedSecret, &e.ClientID, &e.WorkerID, &e.Amount, &e.Token,
		&e.PlatformFee, &e.NetAmount, &e.Status, &e.SettlementSig, &e.CreatedAt, &e.FundedAt, &e.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts the escrow with status pending_payment and appends the
// escrow_created entry in the same transaction.
func (r *EscrowRepo) Create(ctx context.Context, e *models.EscrowAccount) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO escrow_accounts (task_id, address, encrypted_secret, client_id, amount, token, platform_fee, net_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, e.TaskID, e.Address, e.EncryptedSecret, e.ClientID, e.Amount, e.Token, e.PlatformFee, e.NetAmount, e.Status).Scan(&e.CreatedAt)
	if err != nil {
		return err
	}
	err = insertEntry(ctx, tx, &models.LedgerEntry{
		EntryType:     models.EntryEscrowCreated,
		UserID:        e.ClientID,
		TaskID:        &e.TaskID,
		EscrowAddress: &e.Address,
		Amount:        &e.Amount,
		Token:         &e.Token,
	})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *EscrowRepo) GetByTaskID(ctx context.Context, taskID string) (*models.EscrowAccount, error) {
	return scanEscrow(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrow_accounts WHERE task_id = $1
	`, taskID))
}

// ListPendingTaskIDs returns the task IDs of every escrow still awaiting
// payment, oldest first, for the funding sweep.
func (r *EscrowRepo) ListPendingTaskIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT task_id FROM escrow_accounts WHERE status = $1 ORDER BY created_at
	`, models.EscrowPendingPayment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkFunded flips pending_payment to funded and appends the escrow_funded
// entry, atomically. The conditional UPDATE is the compare-and-swap that
// makes concurrent funding checks race safely: exactly one caller gets
// applied=true and writes the log entry.
func (r *EscrowRepo) MarkFunded(ctx context.Context, taskID string) (applied bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var clientID, address string
	var amount int64
	var token models.Token
	err = tx.QueryRow(ctx, `
		UPDATE escrow_accounts SET status = $2, funded_at = now()
		WHERE task_id = $1 AND status = $3
		RETURNING client_id, address, amount, token
	`, taskID, models.EscrowFunded, models.EscrowPendingPayment).Scan(&clientID, &address, &amount, &token)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = insertEntry(ctx, tx, &models.LedgerEntry{
		EntryType:     models.EntryEscrowFunded,
		UserID:        clientID,
		TaskID:        &taskID,
		EscrowAddress: &address,
		Amount:        &amount,
		Token:         &token,
	})
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// SetSettlementSignature records a submitted, not yet confirmed payout
// transaction so a crash mid-settlement is recoverable.
func (r *EscrowRepo) SetSettlementSignature(ctx context.Context, taskID, signature string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrow_accounts SET settlement_sig = $2 WHERE task_id = $1 AND status = $3
	`, taskID, signature, models.EscrowFunded)
	return err
}

// ClearSettlementSignature forgets a payout attempt the ledger rejected.
func (r *EscrowRepo) ClearSettlementSignature(ctx context.Context, taskID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrow_accounts SET settlement_sig = NULL WHERE task_id = $1 AND status = $2
	`, taskID, models.EscrowFunded)
	return err
}

// CompleteSettlement finalizes a confirmed payout in one transaction:
// compare-and-swap funded -> completed, credit the worker, bump the
// client's spent accumulator, accrue loyalty, and append the audit entries.
// Either every write lands or none do.
func (r *EscrowRepo) CompleteSettlement(ctx context.Context, s models.Settlement) (applied bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE escrow_accounts
		SET status = $2, worker_id = $3, settlement_sig = $4, completed_at = now()
		WHERE task_id = $1 AND status = $5
	`, s.TaskID, models.EscrowCompleted, s.WorkerID, s.Signature, models.EscrowFunded)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	col, err := balanceColumn(s.Token)
	if err != nil {
		return false, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE wallets SET `+col+` = `+col+` + $2, total_earned = total_earned + $2,
			loyalty_balance = loyalty_balance + $3, updated_at = now()
		WHERE user_id = $1
	`, s.WorkerID, s.NetAmount, s.LoyaltyReward)
	if err != nil {
		return false, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE wallets SET total_spent = total_spent + $2, updated_at = now() WHERE user_id = $1
	`, s.ClientID, s.Amount)
	if err != nil {
		return false, err
	}

	err = insertEntry(ctx, tx, &models.LedgerEntry{
		EntryType:     models.EntryTaskCompleted,
		UserID:        s.WorkerID,
		TaskID:        &s.TaskID,
		EscrowAddress: &s.EscrowAddress,
		Amount:        &s.NetAmount,
		Token:         &s.Token,
		TxSignature:   &s.Signature,
	})
	if err != nil {
		return false, err
	}
	if s.LoyaltyReward > 0 {
		err = insertEntry(ctx, tx, &models.LedgerEntry{
			EntryType: models.EntryWorklyReward,
			UserID:    s.WorkerID,
			TaskID:    &s.TaskID,
			Amount:    &s.LoyaltyReward,
		})
		if err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

// MarkCancelled moves a pending or funded escrow to the cancelled terminal
// state. Refund broadcast is a separate concern; only the state and the
// audit trail change here.
func (r *EscrowRepo) MarkCancelled(ctx context.Context, taskID string) (applied bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var clientID, address string
	err = tx.QueryRow(ctx, `
		UPDATE escrow_accounts SET status = $2
		WHERE task_id = $1 AND status IN ($3, $4)
		RETURNING client_id, address
	`, taskID, models.EscrowCancelled, models.EscrowPendingPayment, models.EscrowFunded).Scan(&clientID, &address)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = insertEntry(ctx, tx, &models.LedgerEntry{
		EntryType:     models.EntryEscrowCancelled,
		UserID:        clientID,
		TaskID:        &taskID,
		EscrowAddress: &address,
	})
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
