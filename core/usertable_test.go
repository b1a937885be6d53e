package core

import (
	"testing"

	"github.com/shopspring/decimal"

	"smartxchain/pkg/errs"
)

// TestUserTableDuplicateRegistration is spec §8 S6: the second Register
// call for an already-registered address fails with AlreadyRegistered and
// leaves the first hash in place.
func TestUserTableDuplicateRegistration(t *testing.T) {
	users := NewUserTable()
	owner := addr('a')

	if err := users.Register(owner, "K"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	err := users.Register(owner, "other-key")
	if !errs.Is(err, errs.KindAlreadyRegistered) {
		t.Fatalf("expected AlreadyRegistered, got %v", err)
	}
	if !users.Authenticate(owner, "K") {
		t.Fatal("stored hash should still be the first one")
	}
	if users.Authenticate(owner, "other-key") {
		t.Fatal("second call's hash must not have overwritten the first")
	}
}

// TestAppendTransactionRejectsWrongKeyHash is spec §8 S3: a registered
// owner submitting a transfer with the wrong key hash is rejected with
// NotAuthenticated, and neither the pool nor balances change.
func TestAppendTransactionRejectsWrongKeyHash(t *testing.T) {
	miner := addr('1')
	owner := addr('2')
	recipient := addr('3')

	users := NewUserTable()
	if err := users.Register(owner, "K"); err != nil {
		t.Fatalf("register: %v", err)
	}

	c := NewChain(miner, users)
	grant := NewReward(TxMinerReward, owner, decimal.NewFromInt(100))
	if err := c.AppendTransaction(grant, ""); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	if _, err := c.MinePending(miner, nil); err != nil {
		t.Fatalf("seed mint: %v", err)
	}

	tx := NewTransfer(owner, recipient, decimal.NewFromInt(10), "")
	err := c.AppendTransaction(tx, "WRONG")
	if !errs.Is(err, errs.KindNotAuthenticated) {
		t.Fatalf("expected NotAuthenticated, got %v", err)
	}
	if len(c.Pool()) != 0 {
		t.Fatal("pool must be unchanged after a rejected transaction")
	}
	if !c.Balance(owner).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("owner balance = %s, want unchanged 100", c.Balance(owner))
	}
	if !c.Balance(recipient).IsZero() {
		t.Fatalf("recipient balance = %s, want unchanged 0", c.Balance(recipient))
	}

	if err := c.AppendTransaction(tx, "K"); err != nil {
		t.Fatalf("correct key hash should be admitted: %v", err)
	}
}
