package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func addr(suffix byte) Address {
	hex := "0000000000000000000000000000000000000000"
	b := []byte(hex)
	b[len(b)-1] = suffix
	a, err := NewAddress("smartX" + string(b))
	if err != nil {
		panic(err)
	}
	return a
}

func TestMinePendingEmptyPoolProducesOnlyReward(t *testing.T) {
	miner := addr('1')
	c := NewChain(miner, nil)

	blk, err := c.MinePending(miner, nil)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(blk.Transactions) != 1 {
		t.Fatalf("expected 1 tx (miner reward), got %d", len(blk.Transactions))
	}
	if blk.Transactions[0].Type != TxMinerReward {
		t.Fatalf("expected MinerReward, got %s", blk.Transactions[0].Type)
	}
	if len(c.Pool()) != 0 {
		t.Fatal("pool should be empty after mining")
	}
}

func TestMinePendingIncludesPoolPlusReward(t *testing.T) {
	miner := addr('1')
	alice := addr('2')
	bob := addr('3')
	c := NewChain(miner, nil)

	if _, err := c.MinePending(miner, nil); err != nil {
		t.Fatalf("seed mint: %v", err)
	}
	grant := NewReward(TxMinerReward, alice, decimal.NewFromInt(100))
	if err := c.AppendTransaction(grant, ""); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	if _, err := c.MinePending(miner, nil); err != nil {
		t.Fatalf("seed mint 2: %v", err)
	}

	tx := NewTransfer(alice, bob, decimal.NewFromInt(10), "")
	if err := c.AppendTransaction(tx, ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	blk, err := c.MinePending(miner, nil)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(blk.Transactions) != 2 {
		t.Fatalf("expected pool tx + reward, got %d", len(blk.Transactions))
	}
	if len(c.Pool()) != 0 {
		t.Fatal("pool must be empty after mining")
	}
}

func TestAddBlockRejectsIndexSkip(t *testing.T) {
	miner := addr('1')
	c := NewChain(miner, nil)

	bad := &Block{Index: 5, MinerAddress: miner}
	bad.Seal()
	err := c.AddBlock(bad, true)
	if err == nil {
		t.Fatal("expected IndexSkip error")
	}
}

func TestAddBlockRejectsHashMismatch(t *testing.T) {
	miner := addr('1')
	c := NewChain(miner, nil)

	blk := &Block{Index: 1, PreviousHash: c.Tip().BlockHash, MinerAddress: miner}
	blk.Seal()
	blk.BlockHash[0] ^= 0xFF // corrupt
	if err := c.AddBlock(blk, true); err == nil {
		t.Fatal("expected HashMismatch error")
	}
}

func TestBalanceReplay(t *testing.T) {
	miner := addr('1')
	alice := addr('2')
	bob := addr('3')
	c := NewChain(miner, nil)

	grant := NewReward(TxMinerReward, alice, decimal.NewFromInt(100))
	if err := c.AppendTransaction(grant, ""); err != nil {
		t.Fatalf("append grant: %v", err)
	}
	if _, err := c.MinePending(miner, nil); err != nil {
		t.Fatalf("mine: %v", err)
	}

	transfer := NewTransfer(alice, bob, decimal.NewFromInt(30), "")
	if err := c.AppendTransaction(transfer, ""); err != nil {
		t.Fatalf("append transfer: %v", err)
	}
	if _, err := c.MinePending(miner, nil); err != nil {
		t.Fatalf("mine 2: %v", err)
	}

	if !c.Balance(alice).Equal(decimal.NewFromInt(70)) {
		t.Fatalf("alice balance = %s, want 70", c.Balance(alice))
	}
	if !c.Balance(bob).Equal(decimal.NewFromInt(30)) {
		t.Fatalf("bob balance = %s, want 30", c.Balance(bob))
	}
}

func TestAppendTransactionRejectsSelfTransfer(t *testing.T) {
	miner := addr('1')
	c := NewChain(miner, nil)
	alice := addr('2')
	tx := NewTransfer(alice, alice, decimal.NewFromInt(1), "")
	if err := c.AppendTransaction(tx, ""); err == nil {
		t.Fatal("expected SelfTransfer error")
	}
}

func TestAppendTransactionRejectsInsufficientBalance(t *testing.T) {
	miner := addr('1')
	c := NewChain(miner, nil)
	alice := addr('2')
	bob := addr('3')
	tx := NewTransfer(alice, bob, decimal.NewFromInt(5), "")
	if err := c.AppendTransaction(tx, ""); err == nil {
		t.Fatal("expected InsufficientBalance error")
	}
}

func TestIsValidDetectsTamperedChain(t *testing.T) {
	miner := addr('1')
	c := NewChain(miner, nil)
	if _, err := c.MinePending(miner, nil); err != nil {
		t.Fatalf("mine: %v", err)
	}
	if !c.IsValid() {
		t.Fatal("freshly mined chain should be valid")
	}
	c.blocks[1].Nonce = 999 // tamper without resealing
	if c.IsValid() {
		t.Fatal("tampered chain should be invalid")
	}
}

func TestPreferOverTieBreaksOnLowestHash(t *testing.T) {
	miner := addr('1')
	a := NewGenesisBlock(miner)
	b := NewGenesisBlock(miner)
	b.Timestamp = a.Timestamp.Add(1)
	b.Seal()

	current := []*Block{a}
	candidate := []*Block{b}

	preferCandidate := PreferOver(current, candidate)
	preferCurrent := PreferOver(candidate, current)
	if preferCandidate == preferCurrent {
		t.Fatal("exactly one side of an equal-length tie should be preferred")
	}
}

func TestPreferOverLongerChainWins(t *testing.T) {
	miner := addr('1')
	c := NewChain(miner, nil)
	current := c.Blocks()
	if _, err := c.MinePending(miner, nil); err != nil {
		t.Fatalf("mine: %v", err)
	}
	candidate := c.Blocks()
	if !PreferOver(current, candidate) {
		t.Fatal("strictly longer candidate should be preferred")
	}
}
