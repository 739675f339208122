package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/GhanshyamSharma122/server-for-payment/internal/interfaces"
	"github.com/GhanshyamSharma122/server-for-payment/internal/storage/memory"
)

func TestStore_ResolveOrCreate_NewAccountGetsDefaultGrant(t *testing.T) {
	store := NewStore(memory.NewMemoryLedgerStore(), DefaultStartingBalance)

	balance, created, err := store.ResolveOrCreate(context.Background(), "alice", "alice-pk")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Errorf("expected account to be created")
	}
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected balance 1000, got %s", balance)
	}
}

func TestStore_ResolveOrCreate_ExistingAccountKeepsBalance(t *testing.T) {
	ledger := memory.NewMemoryLedgerStore()
	store := NewStore(ledger, DefaultStartingBalance)
	ctx := context.Background()

	if _, _, err := store.ResolveOrCreate(ctx, "alice", "alice-pk"); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	balance, created, err := store.ResolveOrCreate(ctx, "alice", "other-pk")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Errorf("expected no creation on second login")
	}
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected balance 1000, got %s", balance)
	}
	// The original credential wins; login never rotates keys.
	account, err := ledger.GetAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if account.PublicKey != "alice-pk" {
		t.Errorf("expected credential alice-pk, got %q", account.PublicKey)
	}
}

func TestStore_ResolveOrCreate_CustomStartingBalance(t *testing.T) {
	store := NewStore(memory.NewMemoryLedgerStore(), decimal.NewFromInt(50))

	balance, _, err := store.ResolveOrCreate(context.Background(), "bob", "bob-pk")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected balance 50, got %s", balance)
	}
}

func TestStore_Balance_NotFound(t *testing.T) {
	store := NewStore(memory.NewMemoryLedgerStore(), DefaultStartingBalance)

	_, err := store.Balance(context.Background(), "nobody")

	if !errors.Is(err, interfaces.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
