package core

// Chain Engine (spec §4.3): ordered blocks, pending pool, mining, and
// balance replay. The locking discipline — one exclusive lock for all
// chain/pool mutation, shared locks for reads — mirrors the teacher's
// Ledger.mu (core/ledger.go); the "adopt strictly longer chain, tie-break
// on lowest tip hash" fork rule is this repository's simplification of the
// teacher's two-thirds PoS vote quorum in core/consensus.go, applied here
// to whole-chain comparison instead of per-sub-block votes.

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"smartxchain/pkg/errs"
)

// MinerReward is the fixed native-token reward credited to the miner of a
// newly minted block.
var MinerReward = decimal.NewFromInt(10)

// MaxPoolSize bounds the pending pool (spec §7 PoolFull).
const MaxPoolSize = 10_000

// AuthenticatedUser backs the sender-authentication check spec §4.3
// requires before pool admission: "sender key hash matches stored hash".
// Implementations are supplied by whatever owns the authenticated-user
// table (typically a deployed contract's registered-user table, spec §3).
type AuthenticatedUser interface {
	// Authenticate reports whether keyHash is the hash stored for addr.
	// A sender with no stored entry is never authenticated.
	Authenticate(addr Address, keyHash string) bool
}

// openUsers authenticates every address, used when no user table has been
// wired in (e.g. local development chains without a registration contract).
type openUsers struct{}

func (openUsers) Authenticate(Address, string) bool { return true }

// Chain is the append-only, hash-linked block sequence plus its pending
// transaction pool (spec §3, §4.3).
type Chain struct {
	mu     sync.RWMutex
	blocks []*Block
	pool   []*Transaction

	mineMu sync.Mutex // serializes MinePending per spec §4.3

	users  AuthenticatedUser
	signer func(hash []byte) []byte
}

// SetSigner installs the function used to produce a block's self-signature
// over its sealed hash (spec §3 "a self-signature over the canonical
// serialization"). A nil signer (the default) leaves newly mined blocks
// unsigned, which AddBlock/IsValid treat as acceptable since signature
// verification is a property of the external key material, not the chain
// invariants themselves.
func (c *Chain) SetSigner(signer func(hash []byte) []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signer = signer
}

// NewChain creates a chain seeded with a genesis block mined by genesisMiner.
func NewChain(genesisMiner Address, users AuthenticatedUser) *Chain {
	if users == nil {
		users = openUsers{}
	}
	return &Chain{
		blocks: []*Block{NewGenesisBlock(genesisMiner)},
		users:  users,
	}
}

// Len returns the number of blocks in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Tip returns the current last block.
func (c *Chain) Tip() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// Blocks returns a shallow copy of the block slice.
func (c *Chain) Blocks() []*Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// BlockAt returns the block at the given height.
func (c *Chain) BlockAt(index uint64) (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index >= uint64(len(c.blocks)) {
		return nil, errs.New(errs.KindMalformedMessage, fmt.Sprintf("block %d not found", index))
	}
	return c.blocks[index], nil
}

// Pool returns a snapshot of the pending transaction pool, in admission
// order.
func (c *Chain) Pool() []*Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Transaction, len(c.pool))
	copy(out, c.pool)
	return out
}

//-----------------------------------------------------------------------
// Balance replay (spec §4.3, invariant 3)
//-----------------------------------------------------------------------

// Balance computes addr's balance by replaying every transaction from
// genesis: credit recipient, debit non-reward sender. Contract-related
// transaction types never touch balances (spec §4.3), except Gas, which
// debits the executor to the system address.
func (c *Chain) Balance(addr Address) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balanceLocked(addr, len(c.blocks))
}

// balanceLocked replays blocks [0, upTo) under c.mu already held.
func (c *Chain) balanceLocked(addr Address, upTo int) decimal.Decimal {
	bal := decimal.Zero
	for _, blk := range c.blocks[:upTo] {
		for _, tx := range blk.Transactions {
			applyBalanceEffect(&bal, addr, &tx)
		}
	}
	return bal
}

func applyBalanceEffect(bal *decimal.Decimal, addr Address, tx *Transaction) {
	if tx.Type == TxContractCode || tx.Type == TxContractState {
		return // never touch balances
	}
	if tx.Recipient.Equal(addr) {
		*bal = bal.Add(tx.Amount)
	}
	switch tx.Type {
	case TxGas:
		if tx.Sender.Equal(addr) {
			*bal = bal.Sub(tx.Gas)
		}
	default:
		if !tx.Type.IsReward() && tx.Sender.Equal(addr) {
			*bal = bal.Sub(tx.Amount)
		}
	}
}

//-----------------------------------------------------------------------
// Pending pool admission (spec §4.3 appendTransaction)
//-----------------------------------------------------------------------

// AppendTransaction admits tx to the pending pool after validating it
// against the current replay-projected balance and caller authentication.
func (c *Chain) AppendTransaction(tx *Transaction, senderKeyHash string) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) >= MaxPoolSize {
		return errs.New(errs.KindPoolFull, "pending pool is full")
	}

	if !tx.Type.IsReward() {
		if !c.users.Authenticate(tx.Sender, senderKeyHash) {
			return errs.New(errs.KindNotAuthenticated, "sender key hash does not match registered key")
		}
	}

	switch tx.Type {
	case TxNativeTransfer, TxGas:
		bal := c.balanceLocked(tx.Sender, len(c.blocks))
		cost := tx.Amount
		if tx.Type == TxGas {
			cost = tx.Gas
		}
		if bal.LessThan(cost) {
			return errs.New(errs.KindInsufficientBalance, fmt.Sprintf("balance %s < required %s", bal, cost))
		}
	case TxMinerReward, TxValidatorReward:
		if !tx.Sender.IsSystem() {
			return errs.New(errs.KindNotAuthenticated, "only the system address may submit reward transactions")
		}
	}

	c.pool = append(c.pool, tx)
	logrus.WithFields(logrus.Fields{"type": tx.Type, "sender": tx.Sender, "recipient": tx.Recipient}).
		Info("transaction admitted to pending pool")
	return nil
}

//-----------------------------------------------------------------------
// Mining (spec §4.3 minePending)
//-----------------------------------------------------------------------

// MinePending atomically mints a new block from the current pool. If
// approvedValidators is non-empty, the block was produced via the
// voting-quorum path and each address receives a ValidatorReward
// transaction in addition to the miner's MinerReward (Open Question #3,
// SPEC_FULL.md §9: quorum-approved blocks pay validators, directly-mined
// blocks do not).
func (c *Chain) MinePending(miner Address, approvedValidators []Address) (*Block, error) {
	c.mineMu.Lock()
	defer c.mineMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	txs := make([]Transaction, len(c.pool))
	for i, tx := range c.pool {
		txs[i] = *tx
	}
	txs = append(txs, *NewReward(TxMinerReward, miner, MinerReward))
	for _, v := range approvedValidators {
		txs = append(txs, *NewReward(TxValidatorReward, v, MinerReward))
	}

	prev := c.blocks[len(c.blocks)-1]
	blk := &Block{
		Index:        uint64(len(c.blocks)),
		PreviousHash: prev.BlockHash,
		Timestamp:    time.Now().UTC(),
		Transactions: txs,
		MinerAddress: miner,
		Validators:   approvedValidators,
	}
	blk.Seal()
	if c.signer != nil {
		blk.Signature = c.signer(blk.BlockHash[:])
	}

	c.blocks = append(c.blocks, blk)
	c.pool = c.pool[:0]

	logrus.Infof("mined block %d with %d transactions", blk.Index, len(blk.Transactions))
	return blk, nil
}

//-----------------------------------------------------------------------
// Block acceptance from peers (spec §4.3 addBlock)
//-----------------------------------------------------------------------

// AddBlock validates and appends a block received from a peer. trusted
// skips the per-transaction balance-replay check; the index, link and hash
// checks always run. The sync engine passes trusted=false.
func (c *Chain) AddBlock(block *Block, trusted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addBlockLocked(block, trusted)
}

func (c *Chain) addBlockLocked(block *Block, trusted bool) error {
	expected := uint64(len(c.blocks))
	if block.Index != expected {
		return errs.New(errs.KindIndexSkip, fmt.Sprintf("expected index %d, got %d", expected, block.Index))
	}

	prev := c.blocks[len(c.blocks)-1]
	if block.PreviousHash != prev.BlockHash {
		return errs.New(errs.KindChainLinkBroken, "previousHash does not match chain tip")
	}

	if block.ComputeHash() != block.BlockHash {
		return errs.New(errs.KindHashMismatch, "recomputed hash does not match stored hash")
	}

	if !trusted {
		balances := make(map[Address]decimal.Decimal)
		get := func(a Address) decimal.Decimal {
			if b, ok := balances[a]; ok {
				return b
			}
			b := c.balanceLocked(a, int(expected))
			balances[a] = b
			return b
		}
		for i := range block.Transactions {
			tx := &block.Transactions[i]
			if err := tx.Validate(); err != nil {
				return errs.Wrap(errs.KindTxInvalid, "transaction invalid", err)
			}
			if tx.Type == TxNativeTransfer || tx.Type == TxGas {
				cost := tx.Amount
				if tx.Type == TxGas {
					cost = tx.Gas
				}
				bal := get(tx.Sender)
				if bal.LessThan(cost) {
					return errs.New(errs.KindTxInvalid, fmt.Sprintf("sender %s balance %s < %s", tx.Sender, bal, cost))
				}
				balances[tx.Sender] = bal.Sub(cost)
			}
			if tx.Recipient != "" {
				balances[tx.Recipient] = get(tx.Recipient).Add(tx.Amount)
			}
		}
	}

	c.blocks = append(c.blocks, block)
	survivors := make([]*Transaction, 0, len(c.pool))
	for _, tx := range c.pool {
		if !txInBlock(tx, block) {
			survivors = append(survivors, tx)
		}
	}
	c.pool = survivors
	return nil
}

func txInBlock(tx *Transaction, blk *Block) bool {
	for _, t := range blk.Transactions {
		if t.Sender == tx.Sender && t.Recipient == tx.Recipient && t.Amount.Equal(tx.Amount) && t.Timestamp.Equal(tx.Timestamp) {
			return true
		}
	}
	return false
}

//-----------------------------------------------------------------------
// Validity (spec §4.3 isValid)
//-----------------------------------------------------------------------

// IsValid reports whether every block satisfies the link and hash
// invariants and every transaction is individually valid under the
// projected balance at its block (spec §8, invariant 2).
func (c *Chain) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isValidLocked()
}

// isValidLocked assumes c.mu is already held (for read or write) by the
// calling goroutine.
func (c *Chain) isValidLocked() bool {
	for i, blk := range c.blocks {
		if i == 0 {
			if blk.PreviousHash != GenesisPreviousHash {
				return false
			}
		} else if blk.PreviousHash != c.blocks[i-1].BlockHash {
			return false
		}
		if blk.ComputeHash() != blk.BlockHash {
			return false
		}
		if blk.Index != uint64(i) {
			return false
		}

		balances := make(map[Address]decimal.Decimal)
		get := func(a Address) decimal.Decimal {
			if b, ok := balances[a]; ok {
				return b
			}
			return c.balanceLocked(a, i)
		}
		for j := range blk.Transactions {
			tx := &blk.Transactions[j]
			if err := tx.Validate(); err != nil {
				return false
			}
			if tx.Type == TxNativeTransfer || tx.Type == TxGas {
				cost := tx.Amount
				if tx.Type == TxGas {
					cost = tx.Gas
				}
				bal := get(tx.Sender)
				if bal.LessThan(cost) {
					return false
				}
				balances[tx.Sender] = bal.Sub(cost)
			}
			if tx.Recipient != "" {
				balances[tx.Recipient] = get(tx.Recipient).Add(tx.Amount)
			}
		}
	}
	return true
}

//-----------------------------------------------------------------------
// Fork choice (spec §4.3, §9 Open Question #2)
//-----------------------------------------------------------------------

// PreferOver reports whether candidate should replace current as the
// canonical chain: strictly longer wins; equal-length chains are broken by
// lowest tip hash.
func PreferOver(current, candidate []*Block) bool {
	if len(candidate) > len(current) {
		return true
	}
	if len(candidate) < len(current) {
		return false
	}
	if len(candidate) == 0 {
		return false
	}
	a := current[len(current)-1].BlockHash
	b := candidate[len(candidate)-1].BlockHash
	return bytes.Compare(b[:], a[:]) < 0
}

// RebuildFrom replaces the chain's blocks wholesale after validating the
// candidate sequence. It is used when the sync engine adopts a peer's
// equal-length chain that wins the tip-hash tie-break, and when a persisted
// archive is loaded.
func (c *Chain) RebuildFrom(blocks []*Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	saved := c.blocks
	c.blocks = blocks
	if !c.isValidLocked() {
		c.blocks = saved
		return errs.New(errs.KindChainLinkBroken, "candidate chain failed validation")
	}
	c.pool = c.pool[:0]
	return nil
}
