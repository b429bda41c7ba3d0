package main

import (
	"net/http"

	"github.com/worklyhq/backend/internal/handlers"
	"github.com/worklyhq/backend/internal/middleware"
)

// RegisterRoutes adds the /v1/ escrow and wallet endpoints to the mux.
// Every route runs behind bearer-token auth.
func RegisterRoutes(
	mux *http.ServeMux,
	validator middleware.TokenValidator,
	wallets *handlers.WalletHandler,
	escrows *handlers.EscrowHandler,
	fees *handlers.FeeHandler,
) {
	authed := middleware.Auth(validator)

	mux.Handle("POST /v1/wallets", authed(http.HandlerFunc(wallets.CreateWallet)))
	mux.Handle("GET /v1/wallets/me", authed(http.HandlerFunc(wallets.GetWallet)))
	mux.Handle("POST /v1/wallets/me/withdrawals", authed(http.HandlerFunc(wallets.Withdraw)))
	mux.Handle("GET /v1/wallets/me/ledger", authed(http.HandlerFunc(wallets.ListEntries)))

	mux.Handle("POST /v1/escrows", authed(http.HandlerFunc(escrows.CreateEscrow)))
	mux.Handle("GET /v1/escrows/{taskID}", authed(http.HandlerFunc(escrows.GetEscrow)))
	mux.Handle("POST /v1/escrows/{taskID}/funding-checks", authed(http.HandlerFunc(escrows.CheckFunding)))
	mux.Handle("POST /v1/escrows/{taskID}/release", authed(http.HandlerFunc(escrows.Complete)))
	mux.Handle("POST /v1/escrows/{taskID}/cancel", authed(http.HandlerFunc(escrows.Cancel)))
	mux.Handle("GET /v1/escrows/{taskID}/ledger", authed(http.HandlerFunc(escrows.ListEntries)))

	mux.Handle("GET /v1/fees/quote", authed(http.HandlerFunc(fees.Quote)))
}
