package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/worklyhq/backend/internal/feepolicy"
	"github.com/worklyhq/backend/internal/middleware"
	"github.com/worklyhq/backend/internal/models"
)

// LoyaltyReader resolves the caller's loyalty balance for fee quotes.
type LoyaltyReader interface {
	Get(ctx context.Context, userID string) (*models.Wallet, error)
}

// FeeHandler serves GET /v1/fees/quote: the fee split a caller would pay
// for a given reward amount, after their loyalty discount.
type FeeHandler struct {
	Wallets LoyaltyReader
}

type feeQuoteResponse struct {
	Amount        int64 `json:"amount"`
	PlatformFee   int64 `json:"platform_fee"`
	DiscountedFee int64 `json:"discounted_fee"`
	NetAmount     int64 `json:"net_amount"`
}

func (h *FeeHandler) Quote(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive integer")
		return
	}

	// A caller without a wallet simply has no loyalty discount yet.
	var loyalty int64
	if wallet, err := h.Wallets.Get(r.Context(), userID); err == nil {
		loyalty = wallet.LoyaltyBalance
	}

	writeJSON(w, http.StatusOK, feeQuoteResponse{
		Amount:        amount,
		PlatformFee:   feepolicy.PlatformFee(amount),
		DiscountedFee: feepolicy.DiscountedFee(amount, loyalty),
		NetAmount:     feepolicy.NetAmount(amount),
	})
}
