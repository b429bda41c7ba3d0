package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worklyhq/backend/internal/models"
)

// queryRower is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LogRepo reads the append-only transaction log. Writes happen only through
// insertEntry inside the wallet and escrow repo transactions; there is
// deliberately no Update or Delete here.
type LogRepo struct {
	pool *pgxpool.Pool
}

func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

func (r *LogRepo) ListByUserID(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	return r.list(ctx, `
		SELECT id, entry_type, user_id, task_id, escrow_address, amount, token, tx_signature, created_at
		FROM transaction_log WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (r *LogRepo) ListByTaskID(ctx context.Context, taskID string) ([]*models.LedgerEntry, error) {
	return r.list(ctx, `
		SELECT id, entry_type, user_id, task_id, escrow_address, amount, token, tx_signature, created_at
		FROM transaction_log WHERE task_id = $1 ORDER BY created_at DESC
	`, taskID)
}

func (r *LogRepo) list(ctx context.Context, sql string, arg any) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.EntryType, &e.UserID, &e.TaskID, &e.EscrowAddress, &e.Amount, &e.Token, &e.TxSignature, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// insertEntry appends one log entry via the given pool or transaction.
func insertEntry(ctx context.Context, q queryRower, e *models.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return q.QueryRow(ctx, `
		INSERT INTO transaction_log (id, entry_type, user_id, task_id, escrow_address, amount, token, tx_signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.EntryType, e.UserID, e.TaskID, e.EscrowAddress, e.Amount, e.Token, e.TxSignature).Scan(&e.CreatedAt)
}
