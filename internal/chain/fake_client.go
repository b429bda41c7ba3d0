package chain

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"sync"

	"github.com/mr-tron/base58"
)

// FakeClient is an in-memory ledger for tests. Balances move synchronously
// on SubmitTransfer and every submitted signature confirms immediately
// unless a failure is injected.
type FakeClient struct {
	mu        sync.Mutex
	balances  map[string]int64
	transfers [][]TransferOut
	confirmed map[string]bool

	// Fault injection.
	BalanceErr error
	SubmitErr  error
	ConfirmErr error
	// HoldConfirmation leaves submitted signatures pending until
	// ConfirmAll is called.
	HoldConfirmation bool
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		balances:  make(map[string]int64),
		confirmed: make(map[string]bool),
	}
}

var _ Client = (*FakeClient)(nil)

// SetBalance seeds the on-chain balance at address.
func (f *FakeClient) SetBalance(address string, lamports int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = lamports
}

func (f *FakeClient) Balance(_ context.Context, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return 0, f.BalanceErr
	}
	return f.balances[address], nil
}

func (f *FakeClient) SubmitTransfer(_ context.Context, signer ed25519.PrivateKey, outs []TransferOut) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return "", f.SubmitErr
	}
	from := base58.Encode(signer.Public().(ed25519.PublicKey))
	var total int64
	for _, out := range outs {
		total += out.Lamports
	}
	if f.balances[from] < total {
		return "", ErrTxFailed
	}
	f.balances[from] -= total
	for _, out := range outs {
		f.balances[out.To] += out.Lamports
	}
	recorded := make([]TransferOut, len(outs))
	copy(recorded, outs)
	f.transfers = append(f.transfers, recorded)

	sig := fakeSignature(from, outs, len(f.transfers))
	f.confirmed[sig] = !f.HoldConfirmation
	return sig, nil
}

func (f *FakeClient) ConfirmSignature(_ context.Context, signature string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfirmErr != nil {
		return false, f.ConfirmErr
	}
	return f.confirmed[signature], nil
}

// ConfirmAll confirms every held signature.
func (f *FakeClient) ConfirmAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sig := range f.confirmed {
		f.confirmed[sig] = true
	}
}

// Transfers returns every submitted transfer in order.
func (f *FakeClient) Transfers() [][]TransferOut {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]TransferOut, len(f.transfers))
	copy(out, f.transfers)
	return out
}

func fakeSignature(from string, outs []TransferOut, seq int) string {
	h := sha256.New()
	h.Write([]byte(from))
	for _, out := range outs {
		h.Write([]byte(out.To))
		h.Write(transferData(out.Lamports))
	}
	h.Write([]byte{byte(seq), byte(seq >> 8)})
	sum := h.Sum(nil)
	return base58.Encode(append(sum, sum...))
}
