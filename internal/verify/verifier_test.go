package verify

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/GhanshyamSharma122/server-for-payment/internal/models"
)

func sampleTx() *models.Transaction {
	return &models.Transaction{
		ID:        "t1",
		Sender:    "alice",
		Receiver:  "bob",
		Amount:    decimal.NewFromInt(100),
		Timestamp: "2024-01-01T00:00:00Z",
	}
}

func TestAcceptAll_AllowsUnsigned(t *testing.T) {
	if err := (AcceptAll{}).Verify(sampleTx(), "any-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHMACVerifier_SignAndVerify(t *testing.T) {
	verifier := NewHMACVerifier("secret")
	tx := sampleTx()
	tx.Signature = verifier.Sign(tx)

	if err := verifier.Verify(tx, "alice-pk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHMACVerifier_RejectsTamperedAmount(t *testing.T) {
	verifier := NewHMACVerifier("secret")
	tx := sampleTx()
	tx.Signature = verifier.Sign(tx)
	tx.Amount = decimal.NewFromInt(9999)

	err := verifier.Verify(tx, "alice-pk")

	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestHMACVerifier_RejectsMissingSignature(t *testing.T) {
	verifier := NewHMACVerifier("secret")

	err := verifier.Verify(sampleTx(), "alice-pk")

	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestHMACVerifier_DifferentSecretsDisagree(t *testing.T) {
	signer := NewHMACVerifier("secret-a")
	verifier := NewHMACVerifier("secret-b")
	tx := sampleTx()
	tx.Signature = signer.Sign(tx)

	if err := verifier.Verify(tx, "alice-pk"); err == nil {
		t.Fatalf("expected verification failure across secrets")
	}
}
