package core

// Block data model and hashing (spec §3). The hash/link invariants are
// grounded on the teacher's Ledger.applyBlock height-check idiom
// (core/ledger.go) but height/hash computation is reworked to match spec's
// exact hash formula instead of the teacher's RLP block encoding.

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"smartxchain/pkg/cryptoutil"
)

// Hash is a 32-byte content digest, hex-rendered by Hex().
type Hash [32]byte

// Hex renders h as lowercase hex.
func (h Hash) Hex() string { return cryptoutil.HexHash(h) }

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool { return h == Hash{} }

// GenesisPreviousHash is the fixed previousHash sentinel for block 0
// (spec §3).
var GenesisPreviousHash = Hash{}

// Block is an indexed, hash-linked container of transactions (spec §3).
type Block struct {
	Index        uint64        `json:"index"`
	PreviousHash Hash          `json:"previousHash"`
	BlockHash    Hash          `json:"hash"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	MinerAddress Address       `json:"minerAddress"`
	Validators   []Address     `json:"validators,omitempty"`
	Nonce        uint64        `json:"nonce"`
	Signature    []byte        `json:"signature,omitempty"`
}

// canonicalTransactions returns the deterministic byte encoding of the
// block's transaction list used by ComputeHash. JSON field order is fixed
// by the Transaction struct definition, so encoding/json already produces a
// stable byte sequence for a given transaction slice.
func canonicalTransactions(txs []Transaction) []byte {
	b, err := json.Marshal(txs)
	if err != nil {
		// Transaction contains no unmarshalable fields (no channels/funcs),
		// so this can only happen on an out-of-memory style failure; a
		// corrupt hash would be worse than a clear panic here.
		panic(fmt.Sprintf("core: marshal canonical transactions: %v", err))
	}
	return b
}

// ComputeHash computes H(index‖previousHash‖timestamp‖canonical(transactions)‖minerAddress‖nonce)
// per spec §3.
func (b *Block) ComputeHash() Hash {
	buf := make([]byte, 0, 128+len(b.Transactions)*64)

	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], b.Index)
	buf = append(buf, idx[:]...)

	buf = append(buf, b.PreviousHash[:]...)

	ts, _ := b.Timestamp.UTC().MarshalBinary()
	buf = append(buf, ts...)

	buf = append(buf, canonicalTransactions(b.Transactions)...)

	buf = append(buf, []byte(b.MinerAddress)...)

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], b.Nonce)
	buf = append(buf, nonce[:]...)

	return cryptoutil.Hash(buf)
}

// Seal recomputes and stores the block's hash.
func (b *Block) Seal() {
	b.BlockHash = b.ComputeHash()
}

// blockEnvelope is the RLP-friendly header view of a Block: the
// transaction list is excluded since Transaction carries
// decimal.Decimal/time.Time fields RLP cannot encode directly, and the
// header alone is what wire-compat explorer tooling needs to confirm
// index/link/miner/nonce without decoding the full JSON block.
type blockEnvelope struct {
	Index        uint64
	PreviousHash []byte
	Timestamp    int64
	MinerAddress []byte
	Nonce        uint64
}

// RLPEnvelope returns the RLP-encoded block header, a wire-compat
// alternative to the JSON view for external explorer tooling (spec §3's
// canonical serialization used by ComputeHash stays JSON; this is an
// additional encoding, not a replacement).
func (b *Block) RLPEnvelope() ([]byte, error) {
	env := blockEnvelope{
		Index:        b.Index,
		PreviousHash: b.PreviousHash[:],
		Timestamp:    b.Timestamp.UnixNano(),
		MinerAddress: []byte(b.MinerAddress),
		Nonce:        b.Nonce,
	}
	return rlp.EncodeToBytes(&env)
}

// NewGenesisBlock constructs block 0, sealed.
func NewGenesisBlock(miner Address) *Block {
	b := &Block{
		Index:        0,
		PreviousHash: GenesisPreviousHash,
		Timestamp:    time.Now().UTC(),
		Transactions: nil,
		MinerAddress: miner,
	}
	b.Seal()
	return b
}
