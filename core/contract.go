package core

// Contract Store (spec §3, §4.3): mapping from contract name to its
// deployed record. Grounded on the teacher's ContractRegistry
// (core/contracts.go) — singleton registry keyed by address, sync.RWMutex
// guarded Deploy/All — generalized here to spec's name-keyed record with a
// compare-and-swap state update instead of a package-level singleton (see
// DESIGN.md, Design Notes "global mutable state").

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"smartxchain/pkg/errs"
)

// ContractRecord is a deployed contract's durable metadata (spec §3).
type ContractRecord struct {
	Name           string          `json:"name"`
	Owner          Address         `json:"owner"`
	SerializedCode string          `json:"serializedCode"` // codec envelope
	Gas            decimal.Decimal `json:"gas"`

	state atomic.Pointer[string] // codec envelope of current state, CAS-updated
}

// State returns the contract's current serialized state.
func (r *ContractRecord) State() string {
	if p := r.state.Load(); p != nil {
		return *p
	}
	return ""
}

// contractRecordWire is the on-the-wire/on-disk shape of ContractRecord:
// the atomic.Pointer holding state is not itself marshalable, so it is
// flattened into a plain field here (spec §3 Lifecycle "contract store...
// persisted as a single serialized archive").
type contractRecordWire struct {
	Name           string          `json:"name"`
	Owner          Address         `json:"owner"`
	SerializedCode string          `json:"serializedCode"`
	Gas            decimal.Decimal `json:"gas"`
	State          string          `json:"state"`
}

// MarshalJSON flattens the record, including its current state, for
// persistence and the query surface.
func (r *ContractRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(contractRecordWire{
		Name:           r.Name,
		Owner:          r.Owner,
		SerializedCode: r.SerializedCode,
		Gas:            r.Gas,
		State:          r.State(),
	})
}

// UnmarshalJSON restores a record previously flattened by MarshalJSON.
func (r *ContractRecord) UnmarshalJSON(data []byte) error {
	var w contractRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Name, r.Owner, r.SerializedCode, r.Gas = w.Name, w.Owner, w.SerializedCode, w.Gas
	r.state.Store(&w.State)
	return nil
}

// ContractStore holds all deployed contracts for a chain, keyed by the
// unique contract name (spec §3 invariant).
type ContractStore struct {
	mu   sync.RWMutex
	byID map[string]*ContractRecord
}

// NewContractStore returns an empty store.
func NewContractStore() *ContractStore {
	return &ContractStore{byID: make(map[string]*ContractRecord)}
}

// Deploy registers a new contract. Fails if name is already taken (spec §3
// "name is unique within a chain").
func (s *ContractStore) Deploy(name string, owner Address, serializedCode string, gas decimal.Decimal, initialState string) (*ContractRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[name]; exists {
		return nil, errs.New(errs.KindAlreadyRegistered, "contract name already deployed")
	}

	rec := &ContractRecord{Name: name, Owner: owner, SerializedCode: serializedCode, Gas: gas}
	rec.state.Store(&initialState)
	s.byID[name] = rec
	return rec, nil
}

// Get returns the record for name.
func (s *ContractStore) Get(name string) (*ContractRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[name]
	if !ok {
		return nil, errs.New(errs.KindUnknownContract, name)
	}
	return rec, nil
}

// All returns a snapshot of every deployed contract.
func (s *ContractStore) All() map[string]*ContractRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*ContractRecord, len(s.byID))
	for k, v := range s.byID {
		out[k] = v
	}
	return out
}

// Records returns every deployed contract as a flat slice, suitable for
// archival alongside the chain (spec §3 Lifecycle).
func (s *ContractStore) Records() []*ContractRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ContractRecord, 0, len(s.byID))
	for _, v := range s.byID {
		out = append(out, v)
	}
	return out
}

// LoadRecords repopulates the store from previously archived records,
// bypassing Deploy's uniqueness check since the records are trusted to
// already be unique (they were written by this same store).
func (s *ContractStore) LoadRecords(records []*ContractRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.byID[rec.Name] = rec
	}
}

// CompareAndSwapState atomically replaces a contract's serialized state,
// provided the stored state still matches expectedOld. Each execution
// receives its own copy of the state (spec §5 "contract state is not
// globally shared") and the store commits the replacement this way so
// concurrent executions against the same contract never interleave a
// partial update.
func (s *ContractStore) CompareAndSwapState(name, expectedOld, newState string) error {
	rec, err := s.Get(name)
	if err != nil {
		return err
	}
	cur := rec.state.Load()
	if cur == nil || *cur != expectedOld {
		return errs.New(errs.KindTxInvalid, "contract state changed concurrently, retry")
	}
	if !rec.state.CompareAndSwap(cur, &newState) {
		return errs.New(errs.KindTxInvalid, "contract state changed concurrently, retry")
	}
	return nil
}
