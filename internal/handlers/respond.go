package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/worklyhq/backend/internal/chain"
	"github.com/worklyhq/backend/internal/escrow"
	"github.com/worklyhq/backend/internal/keyvault"
	"github.com/worklyhq/backend/internal/ledger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps domain failures onto HTTP statuses. Ledger-backend
// trouble is a 502: the request may be retried, and nothing changed locally.
func statusForError(err error) int {
	switch {
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, escrow.ErrWalletNotFound),
		errors.Is(err, ledger.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrEscrowExists),
		errors.Is(err, escrow.ErrWrongState),
		errors.Is(err, ledger.ErrDuplicateWallet):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrUnsupportedToken),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrBelowMinWithdrawal),
		errors.Is(err, ledger.ErrInvalidAddress),
		errors.Is(err, ledger.ErrUnsupportedToken):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chain.ErrLedger),
		errors.Is(err, chain.ErrUnconfirmed),
		errors.Is(err, chain.ErrTxFailed):
		return http.StatusBadGateway
	case errors.Is(err, keyvault.ErrKeyDecode):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
