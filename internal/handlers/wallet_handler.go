package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/worklyhq/backend/internal/middleware"
	"github.com/worklyhq/backend/internal/models"
	"github.com/worklyhq/backend/internal/server"
)

// WalletService is the wallet ledger surface the handler needs.
type WalletService interface {
	CreateWallet(ctx context.Context, userID string) (*models.Wallet, error)
	GetSynced(ctx context.Context, userID string) (*models.Wallet, error)
	Withdraw(ctx context.Context, userID string, amount int64, toAddress string) (string, error)
	Entries(ctx context.Context, userID string) ([]*models.LedgerEntry, error)
}

// WalletHandler serves /v1/wallets endpoints.
type WalletHandler struct {
	Wallets WalletService
	Metrics *server.Metrics
	Logger  *slog.Logger
}

// CreateWallet handles POST /v1/wallets.
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.Wallets.CreateWallet(r.Context(), userID)
	if err != nil {
		status := statusForError(err)
		if status >= 500 {
			h.Logger.Error("create wallet", "user_id", userID, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

// GetWallet handles GET /v1/wallets/me. The SOL balance is refreshed from
// the chain when reachable.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.Wallets.GetSynced(r.Context(), userID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type withdrawRequest struct {
	Amount    int64  `json:"amount"`
	ToAddress string `json:"to_address"`
}

type withdrawResponse struct {
	TxSignature string `json:"tx_signature"`
}

// Withdraw handles POST /v1/wallets/me/withdrawals.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sig, err := h.Wallets.Withdraw(r.Context(), userID, req.Amount, req.ToAddress)
	if err != nil {
		h.Metrics.IncWithdrawal("rejected")
		status := statusForError(err)
		if status >= 500 {
			h.Logger.Error("withdraw", "user_id", userID, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	h.Metrics.IncWithdrawal("confirmed")
	writeJSON(w, http.StatusOK, withdrawResponse{TxSignature: sig})
}

// ListEntries handles GET /v1/wallets/me/ledger.
func (h *WalletHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries, err := h.Wallets.Entries(r.Context(), userID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
