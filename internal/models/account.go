package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingKey is the placeholder credential stored for accounts that were
// auto-created as transaction receivers before their owner ever logged in.
const PendingKey = "pending"

// Account holds the authoritative balance for one account id.
type Account struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	PublicKey string          `json:"public_key"`
	CreatedAt time.Time       `json:"created_at"`
}
