// Package chain abstracts the ledger backend (Solana JSON-RPC). Services
// depend on the Client interface; the RPC implementation and the in-memory
// fake both live here.
package chain

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// ErrLedger wraps any network or RPC failure talking to the ledger backend.
// Callers must treat it as "unknown outcome": no local state may change, and
// a submitted transaction must be re-checked by signature before resubmitting.
var ErrLedger = errors.New("ledger backend error")

// ErrTxFailed means the ledger definitively rejected or reverted the
// transaction. Unlike ErrLedger the outcome is known: the transfer did not
// happen.
var ErrTxFailed = errors.New("transaction failed on ledger")

// ErrUnconfirmed means a submitted transaction was still pending when the
// confirmation window closed. The transaction may yet land; re-check its
// signature before retrying.
var ErrUnconfirmed = errors.New("transaction not confirmed in time")

// TransferOut is one recipient of a multi-recipient transfer.
type TransferOut struct {
	To       string
	Lamports int64
}

// Client is the ledger backend collaborator. All calls block on network I/O
// and honor the context deadline.
type Client interface {
	// Balance returns the current lamport balance at address.
	Balance(ctx context.Context, address string) (int64, error)
	// SubmitTransfer signs and submits a single atomic transaction paying
	// every out from the signer's account. All outs commit together or not
	// at all. Returns the transaction signature once network-accepted.
	SubmitTransfer(ctx context.Context, signer ed25519.PrivateKey, outs []TransferOut) (string, error)
	// ConfirmSignature reports whether the transaction has been confirmed.
	// (false, nil) means still pending or unknown; ErrTxFailed means the
	// ledger rejected it.
	ConfirmSignature(ctx context.Context, signature string) (bool, error)
}

// ValidAddress reports whether addr is a syntactically valid base58-encoded
// 32-byte public key.
func ValidAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	return err == nil && len(raw) == ed25519.PublicKeySize
}

// AwaitConfirmation polls ConfirmSignature until the transaction is
// confirmed, definitively failed, or the window elapses (ErrUnconfirmed).
func AwaitConfirmation(ctx context.Context, c Client, signature string, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		confirmed, err := c.ConfirmSignature(ctx, signature)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if confirmed {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrUnconfirmed, signature)
		case <-ticker.C:
		}
	}
}
