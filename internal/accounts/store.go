// Package accounts implements the account side of the ledger: lookups and
// the get-or-create flow used by login. Balance mutation is reserved for the
// reconciliation engine.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GhanshyamSharma122/server-for-payment/internal/interfaces"
	"github.com/GhanshyamSharma122/server-for-payment/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultStartingBalance is the grant every new account receives.
var DefaultStartingBalance = decimal.NewFromInt(1000)

type Store struct {
	ledger          interfaces.LedgerStore
	startingBalance decimal.Decimal
}

func NewStore(ledger interfaces.LedgerStore, startingBalance decimal.Decimal) *Store {
	return &Store{
		ledger:          ledger,
		startingBalance: startingBalance,
	}
}

// ResolveOrCreate returns the current balance for id, creating the account
// with the starting balance and the supplied credential if it does not exist.
// created reports whether this call made the account. Safe under concurrent
// logins for the same id: the loser of the create race reads the winner's row.
func (s *Store) ResolveOrCreate(ctx context.Context, id, publicKey string) (decimal.Decimal, bool, error) {
	account, err := s.ledger.GetAccount(ctx, id)
	if err == nil {
		return account.Balance, false, nil
	}
	if !errors.Is(err, interfaces.ErrAccountNotFound) {
		return decimal.Zero, false, fmt.Errorf("resolve account %s: %w", id, err)
	}

	account = &models.Account{
		ID:        id,
		Balance:   s.startingBalance,
		PublicKey: publicKey,
		CreatedAt: time.Now(),
	}
	err = s.ledger.CreateAccount(ctx, account)
	if err == nil {
		return account.Balance, true, nil
	}
	if !errors.Is(err, interfaces.ErrDuplicateAccount) {
		return decimal.Zero, false, fmt.Errorf("create account %s: %w", id, err)
	}

	// Lost a create race; the account exists now.
	existing, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("resolve account %s after create race: %w", id, err)
	}
	return existing.Balance, false, nil
}

// Balance returns the current balance for id, or ErrAccountNotFound.
func (s *Store) Balance(ctx context.Context, id string) (decimal.Decimal, error) {
	account, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}
