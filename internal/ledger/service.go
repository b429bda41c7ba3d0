// Package ledger maintains per-user custodial wallets: balances, earned and
// spent accumulators, the append-only transaction log view, and withdrawals.
//
// The cached SOL balance is a read cache; the chain is the source of truth
// for it. Earned, spent and loyalty accumulators are ledger-maintained and
// have no chain equivalent.
package ledger

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
	// ErrDuplicateWallet is returned when the user already has a wallet.
	ErrDuplicateWallet = errors.New("wallet already exists for user")
	// ErrWalletNotFound is returned when no wallet exists for the user.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrBelowMinWithdrawal is returned for withdrawals under the minimum.
	ErrBelowMinWithdrawal = errors.New("withdrawal below minimum")
	// ErrInvalidAddress is returned for a malformed destination address.
	ErrInvalidAddress = errors.New("invalid destination address")
	// ErrInsufficientFunds is returned when a debit would drive a balance
	// negative. Debits reject, they never clamp.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnsupportedToken is returned for tokens outside the supported set.
	ErrUnsupportedToken = errors.New("unsupported token")
)

// Keys is the keyvault surface the service needs.
type Keys interface {
	Generate() (address, encryptedSecret string, err error)
	Signer(encryptedSecret string) (ed25519.PrivateKey, error)
}

// Store is the wallet persistence contract.
type Store interface {
	Create(ctx context.Context, w *models.Wallet) error
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	SetNativeBalance(ctx context.Context, userID string, lamports int64) error
	CreditEarned(ctx context.Context, userID string, token models.Token, amount int64) error
	DebitSpent(ctx context.Context, userID string, amount int64) error
	ApplyWithdrawal(ctx context.Context, userID string, token models.Token, amount int64, toAddress, signature string) (applied bool, err error)
}

// Logs reads the append-only transaction log.
type Logs interface {
	ListByUserID(ctx context.Context, userID string) ([]*models.LedgerEntry, error)
}

// Service is the wallet ledger. Operations on one user's wallet are
// serialized by a per-user lock; different users proceed in parallel.
type Service struct {
	keys   Keys
	ledger chain.Client
	store  Store
	logs   Logs
	log    *slog.Logger

	minWithdrawal   int64
	confirmTimeout  time.Duration
	confirmInterval time.Duration

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

type Config struct {
	Keys            Keys
	Ledger          chain.Client
	Store           Store
	Logs            Logs
	MinWithdrawal   int64
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
	Logger          *slog.Logger
}

func NewService(cfg Config) *Service {
	if cfg.MinWithdrawal == 0 {
		cfg.MinWithdrawal = feepolicy.MinWithdrawalLamports
	}
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
		logs:            cfg.Logs,
		log:             cfg.Logger,
		minWithdrawal:   cfg.MinWithdrawal,
		confirmTimeout:  cfg.ConfirmTimeout,
		confirmInterval: cfg.ConfirmInterval,
		userLocks:       make(map[string]*sync.Mutex),
	}
}

// CreateWallet mints a custodial keypair for the user and persists a wallet
// with zeroed balances. At most one wallet per user.
func (s *Service) CreateWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	address, secret, err := s.keys.Generate()
	if err != nil {
		return nil, err
	}
	w := &models.Wallet{
		UserID:          userID,
		Address:         address,
		EncryptedSecret: secret,
	}
	if err := s.store.Create(ctx, w); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateWallet
		}
		return nil, err
	}
	s.log.Info("wallet created", "user_id", userID, "address", address)
	return w, nil
}

// Get returns the wallet as stored, without touching the chain.
func (s *Service) Get(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := s.store.GetByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	return w, err
}

// GetSynced returns the wallet with the SOL balance refreshed from the
// chain. If the ledger backend is unreachable the cached value is served.
func (s *Service) GetSynced(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, w.Address)
	if err != nil {
		s.log.Warn("balance sync failed, serving cached value", "user_id", userID, "error", err)
		return w, nil
	}
	if err := s.store.SetNativeBalance(ctx, userID, balance); err != nil {
		return nil, err
	}
	w.SolBalance = balance
	return w, nil
}

// SyncBalance refreshes the cached SOL balance from the chain and returns
// the chain value. Unlike GetSynced it fails loudly on ledger errors.
func (s *Service) SyncBalance(ctx context.Context, userID string) (int64, error) {
	w, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	balance, err := s.ledger.Balance(ctx, w.Address)
	if err != nil {
		return 0, err
	}
	if err := s.store.SetNativeBalance(ctx, userID, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// CreditEarned records a confirmed payout into the wallet's token balance
// and total_earned accumulator.
func (s *Service) CreditEarned(ctx context.Context, userID string, amount int64, token models.Token) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !token.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedToken, token)
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return s.store.CreditEarned(ctx, userID, token, amount)
}

// DebitSpent bumps the monotonically non-decreasing total_spent accumulator.
func (s *Service) DebitSpent(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return s.store.DebitSpent(ctx, userID, amount)
}

// Withdraw sends SOL from the user's custodial wallet to an external
// address. The cached balance is debited only after the ledger confirms the
// transfer, never before, so a failed or stuck broadcast cannot lose funds.
// An unconfirmed submit returns chain.ErrUnconfirmed with no debit.
func (s *Service) Withdraw(ctx context.Context, userID string, amount int64, toAddress string) (string, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	if amount < s.minWithdrawal {
		return "", fmt.Errorf("%w: minimum is %d lamports", ErrBelowMinWithdrawal, s.minWithdrawal)
	}
	if !chain.ValidAddress(toAddress) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, toAddress)
	}
	w, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	// The chain is authoritative for the native balance; the cached field
	// must also cover the debit so it can never go negative.
	chainBalance, err := s.ledger.Balance(ctx, w.Address)
	if err != nil {
		return "", err
	}
	if chainBalance < amount || w.SolBalance < amount {
		return "", fmt.Errorf("%w: have %d cached / %d on chain, need %d", ErrInsufficientFunds, w.SolBalance, chainBalance, amount)
	}

	signer, err := s.keys.Signer(w.EncryptedSecret)
	if err != nil {
		return "", err
	}
	sig, err := s.ledger.SubmitTransfer(ctx, signer, []chain.TransferOut{{To: toAddress, Lamports: amount}})
	if err != nil {
		return "", err
	}
	if err := chain.AwaitConfirmation(ctx, s.ledger, sig, s.confirmTimeout, s.confirmInterval); err != nil {
		return "", err
	}

	applied, err := s.store.ApplyWithdrawal(ctx, userID, models.TokenSOL, amount, toAddress, sig)
	if err != nil {
		return "", err
	}
	if !applied {
		return "", ErrInsufficientFunds
	}
	s.log.Info("withdrawal confirmed", "user_id", userID, "amount", amount, "to", toAddress, "signature", sig)
	return sig, nil
}

// Entries returns the user's transaction log, newest first.
func (s *Service) Entries(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.logs.ListByUserID(ctx, userID)
}

func (s *Service) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
