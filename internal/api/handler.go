package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/GhanshyamSharma122/server-for-payment/internal/accounts"
	"github.com/GhanshyamSharma122/server-for-payment/internal/interfaces"
	"github.com/GhanshyamSharma122/server-for-payment/internal/models"
	"github.com/GhanshyamSharma122/server-for-payment/internal/reconcile"
)

// Handler is the thin HTTP layer over the account store and the
// reconciliation engine. All ledger semantics live below it.
type Handler struct {
	accounts *accounts.Store
	engine   *reconcile.Engine
	store    interfaces.LedgerStore
	logger   *slog.Logger
}

func NewHandler(accountStore *accounts.Store, engine *reconcile.Engine, store interfaces.LedgerStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		accounts: accountStore,
		engine:   engine,
		store:    store,
		logger:   logger,
	}
}

type LoginRequest struct {
	Username  string `json:"username"`
	PublicKey string `json:"public_key"`
}

type LoginResponse struct {
	Status  string          `json:"status"`
	Balance decimal.Decimal `json:"balance"`
}

// SyncRequest carries a batch of offline transactions. Entries are raw so a
// single malformed element skips that element instead of failing the batch.
type SyncRequest struct {
	Username     string            `json:"username"`
	Transactions []json.RawMessage `json:"transactions"`
}

type SyncResponse struct {
	Status         string          `json:"status"`
	ProcessedCount int             `json:"processed_count"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is a mandatory field")
		return
	}

	balance, created, err := h.accounts.ResolveOrCreate(r.Context(), req.Username, req.PublicKey)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "login failed",
			slog.String("username", req.Username),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if created {
		h.logger.InfoContext(r.Context(), "account created",
			slog.String("username", req.Username))
	}

	writeJSON(w, http.StatusOK, LoginResponse{Status: "success", Balance: balance})
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is a mandatory field")
		return
	}

	txs := make([]models.Transaction, 0, len(req.Transactions))
	for _, raw := range req.Transactions {
		var tx models.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			// Malformed entry; the rest of the batch still runs.
			h.logger.WarnContext(r.Context(), "dropping malformed transaction",
				slog.String("error", err.Error()))
			continue
		}
		txs = append(txs, tx)
	}

	summary, err := h.engine.SyncBatch(r.Context(), req.Username, txs)
	if err != nil {
		if errors.Is(err, reconcile.ErrUnknownRequester) {
			writeError(w, http.StatusNotFound, "unknown requester account")
			return
		}
		h.logger.ErrorContext(r.Context(), "sync failed",
			slog.String("username", req.Username),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Status:         "synced",
		ProcessedCount: summary.Processed,
		NewBalance:     summary.NewBalance,
	})
}

func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is a mandatory field")
		return
	}

	balance, err := h.accounts.Balance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		AccountID string          `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
	}{
		AccountID: accountID,
		Balance:   balance,
	})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.GetTransactions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "transaction log lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
