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

// EscrowService is the escrow surface the handler needs.
type EscrowService interface {
	Create(ctx context.Context, taskID, clientID string, amount int64, token models.Token) (*models.EscrowAccount, error)
	Get(ctx context.Context, taskID string) (*models.EscrowAccount, error)
	CheckFunding(ctx context.Context, taskID string) (bool, error)
	Complete(ctx context.Context, taskID, workerID string) (string, error)
	Cancel(ctx context.Context, taskID string) error
}

// TaskLogReader lists the transaction log entries of one task.
type TaskLogReader interface {
	ListByTaskID(ctx context.Context, taskID string) ([]*models.LedgerEntry, error)
}

// EscrowHandler serves /v1/escrows endpoints.
type EscrowHandler struct {
	Escrows EscrowService
	Logs    TaskLogReader
	Metrics *server.Metrics
	Logger  *slog.Logger
}

type createEscrowRequest struct {
	TaskID string       `json:"task_id"`
	Amount int64        `json:"amount"`
	Token  models.Token `json:"token"`
}

// CreateEscrow handles POST /v1/escrows. The authenticated caller is the
// client funding the task; the response carries the deposit address.
func (h *EscrowHandler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.UserIDFromCtx(r.Context())
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	esc, err := h.Escrows.Create(r.Context(), req.TaskID, clientID, req.Amount, req.Token)
	if err != nil {
		status := statusForError(err)
		if status >= 500 {
			h.Logger.Error("create escrow", "task_id", req.TaskID, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	h.Metrics.IncEscrowCreated()
	writeJSON(w, http.StatusCreated, esc)
}

// GetEscrow handles GET /v1/escrows/{taskID}.
func (h *EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	esc, err := h.Escrows.Get(r.Context(), r.PathValue("taskID"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

type fundingCheckResponse struct {
	Funded bool `json:"funded"`
}

// CheckFunding handles POST /v1/escrows/{taskID}/funding-checks. Safe to
// poll; the funded transition fires at most once.
func (h *EscrowHandler) CheckFunding(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")
	funded, err := h.Escrows.CheckFunding(r.Context(), taskID)
	if err != nil {
		status := statusForError(err)
		if status >= 500 {
			h.Logger.Error("check funding", "task_id", taskID, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	if funded {
		h.Metrics.IncFundingDetected()
	}
	writeJSON(w, http.StatusOK, fundingCheckResponse{Funded: funded})
}

type completeRequest struct {
	WorkerID string `json:"worker_id"`
}

type completeResponse struct {
	TxSignature string `json:"tx_signature"`
}

// Complete handles POST /v1/escrows/{taskID}/release. The platform calls
// this once both worker and client have confirmed completion.
func (h *EscrowHandler) Complete(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}
	sig, err := h.Escrows.Complete(r.Context(), taskID, req.WorkerID)
	if err != nil {
		h.Metrics.IncSettlement("failed")
		status := statusForError(err)
		if status >= 500 {
			h.Logger.Error("complete escrow", "task_id", taskID, "worker_id", req.WorkerID, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	h.Metrics.IncSettlement("completed")
	writeJSON(w, http.StatusOK, completeResponse{TxSignature: sig})
}

// ListEntries handles GET /v1/escrows/{taskID}/ledger: the task's audit
// trail, newest first.
func (h *EscrowHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")
	if _, err := h.Escrows.Get(r.Context(), taskID); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	entries, err := h.Logs.ListByTaskID(r.Context(), taskID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Cancel handles POST /v1/escrows/{taskID}/cancel.
func (h *EscrowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")
	if err := h.Escrows.Cancel(r.Context(), taskID); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.EscrowCancelled)})
}
