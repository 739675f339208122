// Package reconcile applies batches of offline-generated transactions to the
// ledger, guaranteeing each transaction id lands at most once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GhanshyamSharma122/server-for-payment/internal/interfaces"
	"github.com/GhanshyamSharma122/server-for-payment/internal/models"
	"github.com/GhanshyamSharma122/server-for-payment/internal/models/events"
	"github.com/GhanshyamSharma122/server-for-payment/internal/verify"
	"github.com/GhanshyamSharma122/server-for-payment/pkg/metrics"
)

// ErrUnknownRequester is returned when the syncing account does not exist.
// Transactions may still have been applied; the caller only lacks a balance
// to report against.
var ErrUnknownRequester = errors.New("unknown requester account")

// AppliedTopic is the event stream carrying applied-transaction records.
const AppliedTopic = "transactions.applied"

// Status classifies the outcome of one proposed transaction.
type Status string

const (
	StatusApplied              Status = "applied"
	StatusSkippedDuplicate     Status = "skipped_duplicate"
	StatusSkippedUnknownSender Status = "skipped_unknown_sender"
	StatusSkippedInvalid       Status = "skipped_invalid"
	StatusSkippedUnauthorized  Status = "skipped_unauthorized"
	StatusFailed               Status = "failed"
)

// Result is the per-transaction outcome. Only StatusApplied counts toward
// the batch's processed total; skips are deliberate no-ops and Failed means
// the storage layer rejected the atomic unit (safe to retry).
type Result struct {
	TxID   string
	Status Status
	Err    error
}

// Summary reports one sync batch: how many transactions were applied and the
// requester's balance after the batch.
type Summary struct {
	BatchID    string
	Processed  int
	NewBalance decimal.Decimal
	Results    []Result
}

// Engine serializes balance mutation per account while letting transactions
// on disjoint accounts proceed concurrently. Locks for the two accounts of a
// transfer are always taken in lexicographic order so overlapping pairs
// cannot deadlock.
type Engine struct {
	store           interfaces.LedgerStore
	verifier        verify.Verifier
	publisher       interfaces.EventPublisher // optional
	collector       *metrics.Collector        // optional
	startingBalance decimal.Decimal
	logger          *slog.Logger

	muMap map[string]*sync.Mutex
	mapMu sync.Mutex
}

func NewEngine(
	store interfaces.LedgerStore,
	verifier verify.Verifier,
	publisher interfaces.EventPublisher,
	collector *metrics.Collector,
	startingBalance decimal.Decimal,
	logger *slog.Logger,
) *Engine {
	if verifier == nil {
		verifier = verify.AcceptAll{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:           store,
		verifier:        verifier,
		publisher:       publisher,
		collector:       collector,
		startingBalance: startingBalance,
		logger:          logger,
		muMap:           make(map[string]*sync.Mutex),
	}
}

func (e *Engine) getAccountLock(accountID string) *sync.Mutex {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	if _, exists := e.muMap[accountID]; !exists {
		e.muMap[accountID] = &sync.Mutex{}
	}
	return e.muMap[accountID]
}

// lockAccounts locks the pair in lexicographic order and returns the unlock.
func (e *Engine) lockAccounts(a, b string) func() {
	if a == b {
		mu := e.getAccountLock(a)
		mu.Lock()
		return mu.Unlock
	}

	first, second := a, b
	if second < first {
		first, second = second, first
	}
	firstMu := e.getAccountLock(first)
	secondMu := e.getAccountLock(second)
	firstMu.Lock()
	secondMu.Lock()
	return func() {
		secondMu.Unlock()
		firstMu.Unlock()
	}
}

// SyncBatch applies the proposed transactions strictly in list order and
// returns the requester's resulting balance. The batch is best-effort: a
// failed or skipped entry never aborts the rest. ErrUnknownRequester is
// returned when requester has no account at final-balance lookup time.
func (e *Engine) SyncBatch(ctx context.Context, requester string, txs []models.Transaction) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		BatchID: uuid.New().String(),
		Results: make([]Result, 0, len(txs)),
	}

	for i := range txs {
		result := e.applyOne(ctx, summary.BatchID, &txs[i])
		summary.Results = append(summary.Results, result)
		if result.Status == StatusApplied {
			summary.Processed++
		}
		if e.collector != nil {
			e.collector.RecordTransaction(string(result.Status))
		}
		if result.Status == StatusFailed {
			e.logger.ErrorContext(ctx, "transaction apply failed",
				slog.String("batch_id", summary.BatchID),
				slog.String("tx_id", result.TxID),
				slog.String("error", result.Err.Error()))
		}
	}

	balance, err := e.store.GetAccount(ctx, requester)
	if err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRequester, requester)
		}
		return nil, fmt.Errorf("final balance for %s: %w", requester, err)
	}
	summary.NewBalance = balance.Balance

	if e.collector != nil {
		e.collector.ObserveBatch(time.Since(start))
		e.collector.UpdateAccountBalance(requester, balance.Balance.InexactFloat64())
	}
	e.logger.InfoContext(ctx, "batch reconciled",
		slog.String("batch_id", summary.BatchID),
		slog.String("requester", requester),
		slog.Int("submitted", len(txs)),
		slog.Int("processed", summary.Processed))
	return summary, nil
}

// applyOne runs the per-transaction algorithm: duplicate check, sender
// lookup, signature check, debit, ghost-creating credit, log append. The
// debit, credit and append are one atomic storage unit.
func (e *Engine) applyOne(ctx context.Context, batchID string, tx *models.Transaction) Result {
	if err := validate(tx); err != nil {
		return Result{TxID: tx.ID, Status: StatusSkippedInvalid, Err: err}
	}

	unlock := e.lockAccounts(tx.Sender, tx.Receiver)
	defer unlock()

	exists, err := e.store.TransactionExists(ctx, tx.ID)
	if err != nil {
		return Result{TxID: tx.ID, Status: StatusFailed, Err: err}
	}
	if exists {
		return Result{TxID: tx.ID, Status: StatusSkippedDuplicate, Err: interfaces.ErrDuplicateTransaction}
	}

	sender, err := e.store.GetAccount(ctx, tx.Sender)
	if errors.Is(err, interfaces.ErrAccountNotFound) {
		// No sender account means nothing to debit; historical behavior is
		// a silent no-op, not an error.
		return Result{TxID: tx.ID, Status: StatusSkippedUnknownSender, Err: err}
	}
	if err != nil {
		return Result{TxID: tx.ID, Status: StatusFailed, Err: err}
	}

	if err := e.verifier.Verify(tx, sender.PublicKey); err != nil {
		return Result{TxID: tx.ID, Status: StatusSkippedUnauthorized, Err: err}
	}

	// Debit is unchecked: the balance may go negative. Authorization, not a
	// funds floor, is the gate on spending.
	debit := interfaces.AccountUpsert{
		ID:         tx.Sender,
		NewBalance: sender.Balance.Sub(tx.Amount),
	}

	var credit interfaces.AccountUpsert
	switch receiver, err := e.store.GetAccount(ctx, tx.Receiver); {
	case err == nil:
		base := receiver.Balance
		if tx.Receiver == tx.Sender {
			base = debit.NewBalance
		}
		credit = interfaces.AccountUpsert{
			ID:         tx.Receiver,
			NewBalance: base.Add(tx.Amount),
		}
	case errors.Is(err, interfaces.ErrAccountNotFound):
		// Ghost account: the receiver has never logged in. Create it with
		// the standard grant plus the incoming funds.
		credit = interfaces.AccountUpsert{
			ID:         tx.Receiver,
			NewBalance: e.startingBalance.Add(tx.Amount),
			Create:     true,
			PublicKey:  models.PendingKey,
		}
	default:
		return Result{TxID: tx.ID, Status: StatusFailed, Err: err}
	}

	if err := e.store.ApplyTransfer(ctx, tx, debit, credit); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateTransaction) {
			// Lost a race with a concurrent batch carrying the same tx id.
			return Result{TxID: tx.ID, Status: StatusSkippedDuplicate, Err: err}
		}
		return Result{TxID: tx.ID, Status: StatusFailed, Err: err}
	}

	e.publish(ctx, batchID, tx)
	return Result{TxID: tx.ID, Status: StatusApplied}
}

func (e *Engine) publish(ctx context.Context, batchID string, tx *models.Transaction) {
	if e.publisher == nil {
		return
	}
	event := events.TransactionApplied{
		TransactionID: tx.ID,
		BatchID:       batchID,
		Sender:        tx.Sender,
		Receiver:      tx.Receiver,
		Amount:        tx.Amount,
		AppliedAt:     time.Now(),
	}
	if err := e.publisher.Publish(AppliedTopic, event); err != nil {
		// Events are advisory; the ledger write already committed.
		e.logger.WarnContext(ctx, "event publish failed",
			slog.String("tx_id", tx.ID),
			slog.String("error", err.Error()))
	}
}

func validate(tx *models.Transaction) error {
	if tx.ID == "" {
		return errors.New("missing transaction id")
	}
	if tx.Sender == "" {
		return errors.New("missing sender")
	}
	if tx.Receiver == "" {
		return errors.New("missing receiver")
	}
	if tx.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive, got %s", tx.Amount)
	}
	return nil
}
