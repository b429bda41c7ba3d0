package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worklyhq/backend/internal/models"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `user_id, address, encrypted_secret, sol_balance, usdt_balance, usdc_balance,
	loyalty_balance, total_earned, total_spent, created_at, updated_at`

// Create inserts the wallet with zeroed balances and appends the
// wallet_created entry in the same transaction. A duplicate user_id
// surfaces as a pgconn unique-violation for the caller to map.
func (r *WalletRepo) Create(ctx context.Context, w *models.Wallet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, address, encrypted_secret)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, w.UserID, w.Address, w.EncryptedSecret).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return err
	}
	err = insertEntry(ctx, tx, &models.LedgerEntry{
		EntryType: models.EntryWalletCreated,
		UserID:    w.UserID,
	})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT `+walletColumns+` FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.UserID, &w.Address, &w.EncryptedSecret, &w.SolBalance, &w.UsdtBalance, &w.UsdcBalance,
		&w.LoyaltyBalance, &w.TotalEarned, &w.TotalSpent, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// SetNativeBalance overwrites the cached SOL balance with the chain-reported
// value. The chain is authoritative for this field.
func (r *WalletRepo) SetNativeBalance(ctx context.Context, userID string, lamports int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wallets SET sol_balance = $2, updated_at = now() WHERE user_id = $1
	`, userID, lamports)
	return err
}

// CreditEarned adds a confirmed payout to the token balance and the
// total_earned accumulator.
func (r *WalletRepo) CreditEarned(ctx context.Context, userID string, token models.Token, amount int64) error {
	col, err := balanceColumn(token)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE wallets SET `+col+` = `+col+` + $2, total_earned = total_earned + $2, updated_at = now()
		WHERE user_id = $1
	`, userID, amount)
	return err
}

// DebitSpent bumps the total_spent accumulator. Escrow deposits move funds
// on-chain, so no cached balance changes here.
func (r *WalletRepo) DebitSpent(ctx context.Context, userID string, amount int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wallets SET total_spent = total_spent + $2, updated_at = now() WHERE user_id = $1
	`, userID, amount)
	return err
}

// ApplyWithdrawal debits the token balance and appends the withdrawal entry
// in one transaction. The debit is conditional on sufficient balance: it
// reports applied=false instead of ever driving a balance negative.
func (r *WalletRepo) ApplyWithdrawal(ctx context.Context, userID string, token models.Token, amount int64, toAddress, signature string) (applied bool, err error) {
	col, err := balanceColumn(token)
	if err != nil {
		return false, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE wallets SET `+col+` = `+col+` - $2, updated_at = now()
		WHERE user_id = $1 AND `+col+` >= $2
	`, userID, amount)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}
	err = insertEntry(ctx, tx, &models.LedgerEntry{
		EntryType:   models.EntryWithdrawal,
		UserID:      userID,
		Amount:      &amount,
		Token:       &token,
		TxSignature: &signature,
	})
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func balanceColumn(token models.Token) (string, error) {
	switch token {
	case models.TokenSOL:
		return "sol_balance", nil
	case models.TokenUSDT:
		return "usdt_balance", nil
	case models.TokenUSDC:
		return "usdc_balance", nil
	}
	return "", fmt.Errorf("unsupported token %q", token)
}
