package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/GhanshyamSharma122/server-for-payment/internal/accounts"
	"github.com/GhanshyamSharma122/server-for-payment/internal/reconcile"
	"github.com/GhanshyamSharma122/server-for-payment/internal/storage/memory"
)

func newTestHandler() *Handler {
	store := memory.NewMemoryLedgerStore()
	accountStore := accounts.NewStore(store, accounts.DefaultStartingBalance)
	engine := reconcile.NewEngine(store, nil, nil, nil, accounts.DefaultStartingBalance, nil)
	return NewHandler(accountStore, engine, store, nil)
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handlerFunc(w, r)
	return w
}

func mustLoginHTTP(t *testing.T, h *Handler, username string) LoginResponse {
	t.Helper()
	w := postJSON(t, h.Login, "/login", `{"username":"`+username+`","public_key":"pk"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", username, w.Code)
	}
	var resp LoginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

func TestHandler_Login_NewUserGetsDefaultBalance(t *testing.T) {
	h := newTestHandler()

	resp := mustLoginHTTP(t, h, "alice")

	if resp.Status != "success" {
		t.Errorf("expected status success, got %q", resp.Status)
	}
	if !resp.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected balance 1000, got %s", resp.Balance)
	}
}

func TestHandler_SyncFlow(t *testing.T) {
	h := newTestHandler()
	mustLoginHTTP(t, h, "alice")
	mustLoginHTTP(t, h, "bob")

	body := `{"username":"alice","transactions":[
		{"id":"t1","sender":"alice","receiver":"bob","amount":100,"timestamp":"2024-01-01T00:00:00Z"}
	]}`

	w := postJSON(t, h.Sync, "/sync", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp SyncResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sync response: %v", err)
	}
	if resp.Status != "synced" || resp.ProcessedCount != 1 {
		t.Errorf("expected synced/1, got %q/%d", resp.Status, resp.ProcessedCount)
	}
	if !resp.NewBalance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("expected new balance 900, got %s", resp.NewBalance)
	}

	// Replaying the same batch changes nothing.
	w = postJSON(t, h.Sync, "/sync", body)
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode replay response: %v", err)
	}
	if resp.ProcessedCount != 0 {
		t.Errorf("expected processed 0 on replay, got %d", resp.ProcessedCount)
	}
	if !resp.NewBalance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("expected balance still 900, got %s", resp.NewBalance)
	}
}

func TestHandler_Sync_MalformedEntrySkipsOnlyThatEntry(t *testing.T) {
	h := newTestHandler()
	mustLoginHTTP(t, h, "alice")
	mustLoginHTTP(t, h, "bob")

	body := `{"username":"alice","transactions":[
		{"id":"bad","sender":"alice","receiver":"bob","amount":"not-a-number"},
		{"id":"good","sender":"alice","receiver":"bob","amount":50}
	]}`

	w := postJSON(t, h.Sync, "/sync", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp SyncResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sync response: %v", err)
	}
	if resp.ProcessedCount != 1 {
		t.Errorf("expected processed 1, got %d", resp.ProcessedCount)
	}
	if !resp.NewBalance.Equal(decimal.NewFromInt(950)) {
		t.Errorf("expected new balance 950, got %s", resp.NewBalance)
	}
}

func TestHandler_Sync_UnknownRequester(t *testing.T) {
	h := newTestHandler()

	w := postJSON(t, h.Sync, "/sync", `{"username":"nobody","transactions":[]}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_Sync_MissingUsername(t *testing.T) {
	h := newTestHandler()

	w := postJSON(t, h.Sync, "/sync", `{"transactions":[]}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandler_AccountBalance(t *testing.T) {
	h := newTestHandler()
	mustLoginHTTP(t, h, "alice")

	r := httptest.NewRequest(http.MethodGet, "/accounts/balance?account_id=alice", nil)
	w := httptest.NewRecorder()
	h.AccountBalance(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/accounts/balance?account_id=nobody", nil)
	w = httptest.NewRecorder()
	h.AccountBalance(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", w.Code)
	}
}

func TestHandler_Transactions_ListsAppliedLog(t *testing.T) {
	h := newTestHandler()
	mustLoginHTTP(t, h, "alice")
	mustLoginHTTP(t, h, "bob")
	postJSON(t, h.Sync, "/sync", `{"username":"alice","transactions":[
		{"id":"t1","sender":"alice","receiver":"bob","amount":25}
	]}`)

	r := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	w := httptest.NewRecorder()
	h.Transactions(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var txs []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&txs); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if len(txs) != 1 || txs[0]["id"] != "t1" {
		t.Errorf("expected one logged transaction t1, got %+v", txs)
	}
}
