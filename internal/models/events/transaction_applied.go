package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionApplied is emitted once per transaction the reconciliation
// engine accepts and applies. BatchID groups all events from one sync call.
type TransactionApplied struct {
	TransactionID string          `json:"transaction_id"`
	BatchID       string          `json:"batch_id"`
	Sender        string          `json:"sender"`
	Receiver      string          `json:"receiver"`
	Amount        decimal.Decimal `json:"amount"`
	AppliedAt     time.Time       `json:"applied_at"`
}
