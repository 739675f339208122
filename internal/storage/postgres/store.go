package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GhanshyamSharma122/server-for-payment/internal/interfaces"
	"github.com/GhanshyamSharma122/server-for-payment/internal/models"
)

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db}
}

// InitSchema creates the two ledger tables if they are missing.
// The primary key on transactions.tx_id is what makes duplicate detection
// race-free across processes.
func InitSchema(db *sql.DB) error {
	const accounts = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		balance NUMERIC(20, 4) NOT NULL,
		public_key TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(accounts); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}

	const transactions = `
	CREATE TABLE IF NOT EXISTS transactions (
		tx_id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		receiver TEXT NOT NULL,
		amount NUMERIC(20, 4) NOT NULL,
		client_timestamp TEXT NOT NULL DEFAULT '',
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(transactions); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	return nil
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	const query = `SELECT id, balance, public_key, created_at FROM accounts WHERE id = $1`

	var account models.Account
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Balance,
		&account.PublicKey,
		&account.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account *models.Account) error {
	const query = `INSERT INTO accounts (id, balance, public_key, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO NOTHING`

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := p.db.ExecContext(ctx, query, account.ID, account.Balance, account.PublicKey, createdAt)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return interfaces.ErrDuplicateAccount
	}
	return nil
}

func (p *PostgresLedgerStore) TransactionExists(ctx context.Context, txID string) (bool, error) {
	const query = `SELECT 1 FROM transactions WHERE tx_id = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, txID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PostgresLedgerStore) ApplyTransfer(ctx context.Context, tx *models.Transaction, debit, credit interfaces.AccountUpsert) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback() // no-op after commit

	// Claim the tx id first: a concurrent apply of the same id loses here
	// and the whole unit rolls back.
	const insertTx = `INSERT INTO transactions (tx_id, sender, receiver, amount, client_timestamp)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (tx_id) DO NOTHING`

	result, err := dbTx.ExecContext(ctx, insertTx, tx.ID, tx.Sender, tx.Receiver, tx.Amount, tx.Timestamp)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return interfaces.ErrDuplicateTransaction
	}

	if err := applyUpsert(ctx, dbTx, debit); err != nil {
		return err
	}
	if err := applyUpsert(ctx, dbTx, credit); err != nil {
		return err
	}
	return dbTx.Commit()
}

func applyUpsert(ctx context.Context, dbTx *sql.Tx, change interfaces.AccountUpsert) error {
	if change.Create {
		const insert = `INSERT INTO accounts (id, balance, public_key) VALUES ($1, $2, $3)`
		_, err := dbTx.ExecContext(ctx, insert, change.ID, change.NewBalance, change.PublicKey)
		return err
	}

	const update = `UPDATE accounts SET balance = $1 WHERE id = $2`
	result, err := dbTx.ExecContext(ctx, update, change.NewBalance, change.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return interfaces.ErrAccountNotFound
	}
	return nil
}

func (p *PostgresLedgerStore) GetTransactions(ctx context.Context) ([]*models.Transaction, error) {
	const query = `SELECT tx_id, sender, receiver, amount, client_timestamp
	FROM transactions ORDER BY applied_at`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.Sender, &tx.Receiver, &tx.Amount, &tx.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
