package memory

import (
	"context"
	"sync"

	"github.com/GhanshyamSharma122/server-for-payment/internal/interfaces"
	"github.com/GhanshyamSharma122/server-for-payment/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// A single mutex guards both tables, which makes ApplyTransfer trivially
// atomic. Intended for tests and single-node development.
type MemoryLedgerStore struct {
	mu           sync.Mutex
	accounts     map[string]*models.Account
	transactions map[string]*models.Transaction
	txOrder      []string // tx ids in append order
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:     make(map[string]*models.Account),
		transactions: make(map[string]*models.Transaction),
	}
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, exists := m.accounts[id]
	if !exists {
		return nil, interfaces.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return interfaces.ErrDuplicateAccount
	}
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *MemoryLedgerStore) TransactionExists(ctx context.Context, txID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.transactions[txID]
	return exists, nil
}

func (m *MemoryLedgerStore) ApplyTransfer(ctx context.Context, tx *models.Transaction, debit, credit interfaces.AccountUpsert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transactions[tx.ID]; exists {
		return interfaces.ErrDuplicateTransaction
	}
	if debit.Create {
		if _, exists := m.accounts[debit.ID]; exists {
			return interfaces.ErrDuplicateAccount
		}
	}
	if credit.Create {
		if _, exists := m.accounts[credit.ID]; exists {
			return interfaces.ErrDuplicateAccount
		}
	}

	// All checks passed; nothing below can fail, so the unit is atomic.
	m.upsert(debit)
	m.upsert(credit)

	copied := *tx
	m.transactions[tx.ID] = &copied
	m.txOrder = append(m.txOrder, tx.ID)
	return nil
}

func (m *MemoryLedgerStore) upsert(change interfaces.AccountUpsert) {
	if account, exists := m.accounts[change.ID]; exists {
		account.Balance = change.NewBalance
		return
	}
	m.accounts[change.ID] = &models.Account{
		ID:        change.ID,
		Balance:   change.NewBalance,
		PublicKey: change.PublicKey,
	}
}

// GetTransactions returns copies of all logged transactions in append order.
func (m *MemoryLedgerStore) GetTransactions(ctx context.Context) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*models.Transaction, 0, len(m.txOrder))
	for _, id := range m.txOrder {
		copied := *m.transactions[id]
		result = append(result, &copied)
	}
	return result, nil
}

var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
