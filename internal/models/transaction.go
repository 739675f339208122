package models

import "github.com/shopspring/decimal"

// Transaction is an offline-generated transfer submitted by a client during
// sync. ID is client-generated and acts as the idempotency key: a given ID is
// applied to balances at most once for the lifetime of the ledger.
type Transaction struct {
	ID       string          `json:"id"`
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver"`
	Amount   decimal.Decimal `json:"amount"`
	// Timestamp is the client-supplied creation time, stored verbatim.
	// Advisory only; never used for ordering.
	Timestamp string `json:"timestamp"`
	// Signature is an optional client signature over the transaction,
	// checked by the configured Verifier. Empty unless signing is enabled.
	Signature string `json:"signature,omitempty"`
}
