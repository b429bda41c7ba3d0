// Package escrow orchestrates the escrow lifecycle: create a custodial
// escrow address for a task, detect funding, and settle the payout to the
// worker and the platform treasury in a single atomic transfer.
package escrow

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/worklyhq/backend/internal/chain"
	"github.com/worklyhq/backend/internal/feepolicy"
	"github.com/worklyhq/backend/internal/models"
)

var (
	// ErrInvalidAmount is returned for a non-positive reward amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrUnsupportedToken is returned for tokens outside the supported
	// set, or on settlement for tokens without transfer support.
	ErrUnsupportedToken = errors.New("unsupported token")
	// ErrEscrowExists is returned when an escrow already exists for the
	// task. Creation rejects duplicates rather than returning the
	// existing record, so a double-submit cannot look like a fresh quote.
	ErrEscrowExists = errors.New("escrow already exists for task")
	// ErrNotFound is returned when no escrow exists for the task.
	ErrNotFound = errors.New("escrow not found")
	// ErrWalletNotFound is returned when the settlement counterparty has
	// no wallet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWrongState is returned when the escrow is not in the state the
	// requested transition needs.
	ErrWrongState = errors.New("escrow in wrong state for operation")
)

// Keys is the keyvault surface the service needs.
type Keys interface {
	Generate() (address, encryptedSecret string, err error)
	Signer(encryptedSecret string) (ed25519.PrivateKey, error)
}

// Store is the escrow persistence contract. Compound methods (Create,
// MarkFunded, CompleteSettlement, MarkCancelled) are atomic: the record
// change and its audit entries land together or not at all.
type Store interface {
	Create(ctx context.Context, e *models.EscrowAccount) error
	GetByTaskID(ctx context.Context, taskID string) (*models.EscrowAccount, error)
	ListPendingTaskIDs(ctx context.Context) ([]string, error)
	MarkFunded(ctx context.Context, taskID string) (applied bool, err error)
	SetSettlementSignature(ctx context.Context, taskID, signature string) error
	ClearSettlementSignature(ctx context.Context, taskID string) error
	CompleteSettlement(ctx context.Context, s models.Settlement) (applied bool, err error)
	MarkCancelled(ctx context.Context, taskID string) (applied bool, err error)
}

// Wallets resolves settlement counterparties.
type Wallets interface {
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
}

// Service is the escrow state machine. Operations on different tasks run
// independently; operations on one task are serialized by a per-task lock,
// with the store's conditional updates as the final arbiter.
type Service struct {
	keys     Keys
	ledger   chain.Client
	store    Store
	wallets  Wallets
	treasury string
	log      *slog.Logger

	confirmTimeout  time.Duration
	confirmInterval time.Duration

	mu        sync.Mutex
	taskLocks map[string]*sync.Mutex
}

// Config carries the service's fixed collaborators and tunables.
type Config struct {
	Keys            Keys
	Ledger          chain.Client
	Store           Store
	Wallets         Wallets
	TreasuryAddress string
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
	Logger          *slog.Logger
}

func NewService(cfg Config) *Service {
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}
	if cfg.ConfirmInterval == 0 {
		cfg.ConfirmInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		keys:            cfg.Keys,
		ledger:          cfg.Ledger,
		store:           cfg.Store,
		wallets:         cfg.Wallets,
		treasury:        cfg.TreasuryAddress,
		log:             cfg.Logger,
		confirmTimeout:  cfg.ConfirmTimeout,
		confirmInterval: cfg.ConfirmInterval,
		taskLocks:       make(map[string]*sync.Mutex),
	}
}

// Create mints a custodial escrow address for the task, computes the fee
// split, and persists the record as pending_payment. The returned record
// includes the deposit address for payment instructions.
func (s *Service) Create(ctx context.Context, taskID, clientID string, amount int64, token models.Token) (*models.EscrowAccount, error) {
	if taskID == "" || clientID == "" {
		return nil, fmt.Errorf("%w: task and client IDs are required", ErrInvalidAmount)
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !token.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, token)
	}

	address, secret, err := s.keys.Generate()
	if err != nil {
		return nil, err
	}
	esc := &models.EscrowAccount{
		TaskID:          taskID,
		Address:         address,
		EncryptedSecret: secret,
		ClientID:        clientID,
		Amount:          amount,
		Token:           token,
		PlatformFee:     feepolicy.PlatformFee(amount),
		NetAmount:       feepolicy.NetAmount(amount),
		Status:          models.EscrowPendingPayment,
	}
	if err := s.store.Create(ctx, esc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEscrowExists
		}
		return nil, err
	}
	s.log.Info("escrow created", "task_id", taskID, "address", address, "amount", amount, "token", token)
	return esc, nil
}

// Get returns the escrow record for a task.
func (s *Service) Get(ctx context.Context, taskID string) (*models.EscrowAccount, error) {
	esc, err := s.store.GetByTaskID(ctx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return esc, err
}

// PendingTaskIDs lists tasks whose escrows still await payment.
func (s *Service) PendingTaskIDs(ctx context.Context) ([]string, error) {
	return s.store.ListPendingTaskIDs(ctx)
}

// CheckFunding queries the ledger for the escrow address balance and flips
// pending_payment to funded when the deposit (within tolerance) has landed.
// Safe to poll from any number of callers: the funded transition is a
// compare-and-swap, so only one check wins and writes the log entry, and a
// check on an already funded escrow returns true without side effects.
func (s *Service) CheckFunding(ctx context.Context, taskID string) (bool, error) {
	esc, err := s.Get(ctx, taskID)
	if err != nil {
		return false, err
	}
	switch esc.Status {
	case models.EscrowFunded, models.EscrowCompleted:
		return true, nil
	case models.EscrowCancelled:
		return false, fmt.Errorf("%w: escrow is cancelled", ErrWrongState)
	}

	balance, err := s.ledger.Balance(ctx, esc.Address)
	if err != nil {
		return false, err
	}
	if balance < feepolicy.FundingThreshold(esc.Amount) {
		return false, nil
	}

	applied, err := s.store.MarkFunded(ctx, taskID)
	if err != nil {
		return false, err
	}
	if applied {
		s.log.Info("escrow funded", "task_id", taskID, "address", esc.Address, "balance", balance)
	}
	// A lost race means a concurrent check already funded it.
	return true, nil
}

// Complete settles a funded escrow: one atomic transfer pays the net amount
// to the worker and the platform fee to the treasury, and only after the
// ledger confirms does the record flip to completed together with all
// bookkeeping. Any failure before confirmation leaves every balance and the
// status untouched. Completing an already completed escrow returns the
// recorded signature.
func (s *Service) Complete(ctx context.Context, taskID, workerID string) (string, error) {
	unlock := s.lockTask(taskID)
	defer unlock()

	esc, err := s.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	if esc.Status == models.EscrowCompleted {
		if esc.SettlementSig != nil {
			return *esc.SettlementSig, nil
		}
		return "", nil
	}
	if esc.Status != models.EscrowFunded {
		return "", fmt.Errorf("%w: status %s, need %s", ErrWrongState, esc.Status, models.EscrowFunded)
	}
	if !esc.Token.Transferable() {
		return "", fmt.Errorf("%w: %s settlement is not supported", ErrUnsupportedToken, esc.Token)
	}

	worker, err := s.wallets.GetByUserID(ctx, workerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: worker %s", ErrWalletNotFound, workerID)
	}
	if err != nil {
		return "", err
	}

	// A signature left over from an earlier attempt means a transfer may
	// already be in flight; resolve its fate before even thinking about
	// resubmitting.
	if esc.SettlementSig != nil {
		sig := *esc.SettlementSig
		confirmed, err := s.ledger.ConfirmSignature(ctx, sig)
		switch {
		case errors.Is(err, chain.ErrTxFailed):
			if err := s.store.ClearSettlementSignature(ctx, taskID); err != nil {
				return "", err
			}
		case err != nil:
			return "", err
		case confirmed:
			return s.finalize(ctx, esc, workerID, sig)
		default:
			return "", fmt.Errorf("%w: settlement %s still pending", chain.ErrUnconfirmed, sig)
		}
	}

	signer, err := s.keys.Signer(esc.EncryptedSecret)
	if err != nil {
		return "", err
	}
	outs := []chain.TransferOut{
		{To: worker.Address, Lamports: esc.NetAmount},
		{To: s.treasury, Lamports: esc.PlatformFee},
	}
	sig, err := s.ledger.SubmitTransfer(ctx, signer, outs)
	if err != nil {
		return "", err
	}
	// Persist the submitted signature before trusting it: a crash from
	// here on is recoverable by re-checking the signature's fate.
	if err := s.store.SetSettlementSignature(ctx, taskID, sig); err != nil {
		s.log.Error("settlement submitted but signature not persisted", "task_id", taskID, "signature", sig, "error", err)
		return "", err
	}

	if err := chain.AwaitConfirmation(ctx, s.ledger, sig, s.confirmTimeout, s.confirmInterval); err != nil {
		if errors.Is(err, chain.ErrTxFailed) {
			if clearErr := s.store.ClearSettlementSignature(ctx, taskID); clearErr != nil {
				return "", clearErr
			}
		}
		return "", err
	}
	return s.finalize(ctx, esc, workerID, sig)
}

func (s *Service) finalize(ctx context.Context, esc *models.EscrowAccount, workerID, sig string) (string, error) {
	applied, err := s.store.CompleteSettlement(ctx, models.Settlement{
		TaskID:        esc.TaskID,
		EscrowAddress: esc.Address,
		ClientID:      esc.ClientID,
		WorkerID:      workerID,
		Token:         esc.Token,
		Amount:        esc.Amount,
		NetAmount:     esc.NetAmount,
		LoyaltyReward: feepolicy.RewardAccrual(esc.NetAmount),
		Signature:     sig,
	})
	if err != nil {
		return "", err
	}
	if !applied {
		// Someone else finalized first; surface their result.
		current, err := s.Get(ctx, esc.TaskID)
		if err == nil && current.Status == models.EscrowCompleted && current.SettlementSig != nil {
			return *current.SettlementSig, nil
		}
		return "", fmt.Errorf("%w: escrow no longer funded", ErrWrongState)
	}
	s.log.Info("escrow settled", "task_id", esc.TaskID, "worker_id", workerID,
		"net_amount", esc.NetAmount, "platform_fee", esc.PlatformFee, "signature", sig)
	return sig, nil
}

// Cancel moves a pending or funded escrow to cancelled. Refunding the
// deposit is a follow-up flow on top of this transition.
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	unlock := s.lockTask(taskID)
	defer unlock()

	applied, err := s.store.MarkCancelled(ctx, taskID)
	if err != nil {
		return err
	}
	if !applied {
		if _, err := s.Get(ctx, taskID); err != nil {
			return err
		}
		return fmt.Errorf("%w: escrow not cancellable", ErrWrongState)
	}
	s.log.Info("escrow cancelled", "task_id", taskID)
	return nil
}

func (s *Service) lockTask(taskID string) func() {
	s.mu.Lock()
	l, ok := s.taskLocks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.taskLocks[taskID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
