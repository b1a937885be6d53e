package core

// Transaction data model (spec §3). Amounts use shopspring/decimal for
// fixed-point arithmetic instead of the teacher's uint64 TokenBalances map
// (core/ledger.go), since spec mandates a non-integral "decimal
// (fixed-point, non-negative)" amount type and balances here are always a
// derived replay view, never stored ledger state.

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"smartxchain/pkg/errs"
)

// TxType enumerates the transaction kinds named in spec §3.
type TxType string

const (
	TxNativeTransfer  TxType = "NativeTransfer"
	TxMinerReward     TxType = "MinerReward"
	TxContractCode    TxType = "ContractCode"
	TxContractState   TxType = "ContractState"
	TxGas             TxType = "Gas"
	TxValidatorReward TxType = "ValidatorReward"
	TxData            TxType = "Data"
)

// IsReward reports whether t is one of the reward transaction types, which
// are always sent by the system address and never debit a balance.
func (t TxType) IsReward() bool {
	return t == TxMinerReward || t == TxValidatorReward
}

// Transaction is a single ledger entry (spec §3).
type Transaction struct {
	Type      TxType          `json:"type"`
	Sender    Address         `json:"sender"`
	Recipient Address         `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Data      []byte          `json:"data,omitempty"`
	Info      string          `json:"info,omitempty"`
	Gas       decimal.Decimal `json:"gas"`

	// ContractName associates a ContractCode/ContractState transaction
	// with a ContractRecord (spec §3 "updates to state are always by
	// appending a ContractState transaction that references name").
	ContractName string `json:"contractName,omitempty"`
}

// Validate checks the structural invariants spec §3 places on a
// transaction in isolation (not yet checked against a balance replay).
func (tx *Transaction) Validate() error {
	if !tx.Sender.Valid() {
		return errs.New(errs.KindInvalidAddress, fmt.Sprintf("sender %q", tx.Sender))
	}
	if !tx.Recipient.Valid() {
		return errs.New(errs.KindInvalidAddress, fmt.Sprintf("recipient %q", tx.Recipient))
	}
	if tx.Amount.IsNegative() {
		return errs.New(errs.KindInvalidAmount, "amount must be non-negative")
	}
	if tx.Gas.IsNegative() {
		return errs.New(errs.KindInvalidAmount, "gas must be non-negative")
	}
	if tx.Type.IsReward() {
		if !tx.Sender.IsSystem() {
			return errs.New(errs.KindInvalidAddress, "reward transaction sender must be the system address")
		}
		return nil
	}
	if tx.Sender.Equal(tx.Recipient) {
		return errs.New(errs.KindSelfTransfer, "sender and recipient must differ")
	}
	return nil
}

// NewTransfer builds a NativeTransfer transaction ready for pool admission.
func NewTransfer(sender, recipient Address, amount decimal.Decimal, info string) *Transaction {
	return &Transaction{
		Type:      TxNativeTransfer,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
		Info:      info,
	}
}

// NewReward builds a reward transaction (MinerReward or ValidatorReward)
// sent from the system address.
func NewReward(kind TxType, recipient Address, amount decimal.Decimal) *Transaction {
	return &Transaction{
		Type:      kind,
		Sender:    AddressSystem,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
}
