package core

// Registered-user table (spec §3, §8 scenarios S3/S6): the concrete
// AuthenticatedUser implementation a registration contract's owner wires
// into NewChain. Grounded on ContractStore's mutex-guarded map idiom
// (core/contract.go) rather than the teacher's wallet keystore, since
// here the table only ever needs to answer "does this key hash match".

import (
	"sync"

	"smartxchain/pkg/errs"
)

// UserTable is a mutex-guarded address -> key-hash map. The first
// Register call for an address wins; later calls fail with
// AlreadyRegistered and leave the stored hash untouched (spec §8 S6).
type UserTable struct {
	mu     sync.RWMutex
	hashes map[Address]string
}

// NewUserTable returns an empty registered-user table.
func NewUserTable() *UserTable {
	return &UserTable{hashes: make(map[Address]string)}
}

// Register stores keyHash for addr, or fails if addr already has one.
func (t *UserTable) Register(addr Address, keyHash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.hashes[addr]; exists {
		return errs.New(errs.KindAlreadyRegistered, "address already registered")
	}
	t.hashes[addr] = keyHash
	return nil
}

// Authenticate implements AuthenticatedUser: addr is authenticated only
// if keyHash matches the hash stored at registration (spec §8 S3).
func (t *UserTable) Authenticate(addr Address, keyHash string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stored, exists := t.hashes[addr]
	return exists && stored == keyHash
}
