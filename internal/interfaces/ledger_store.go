package interfaces

import (
	"context"
	"errors"

	"github.com/GhanshyamSharma122/server-for-payment/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateAccount     = errors.New("account already exists")
	ErrDuplicateTransaction = errors.New("transaction already applied")
)

// AccountUpsert is one half of a transfer's write set: the balance an account
// must hold after the transfer is applied. When Create is set the account does
// not exist yet and must be inserted with the given credential.
type AccountUpsert struct {
	ID         string
	NewBalance decimal.Decimal
	Create     bool
	PublicKey  string
}

// LedgerStore is the durable pair of account table and append-only
// transaction log. The reconciliation engine is the only writer.
type LedgerStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	TransactionExists(ctx context.Context, txID string) (bool, error)

	// ApplyTransfer persists the debit, the credit and the transaction-log
	// row as one atomic unit: either all three land or none do. A tx id
	// already present in the log fails the whole unit with
	// ErrDuplicateTransaction.
	ApplyTransfer(ctx context.Context, tx *models.Transaction, debit, credit AccountUpsert) error

	GetTransactions(ctx context.Context) ([]*models.Transaction, error)
}
