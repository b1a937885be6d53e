// Package node implements the Node Supervisor (spec §4.8): boot sequence,
// shutdown, and the external key-derivation collaborator boundary.
package node

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"smartxchain/core"
	"smartxchain/pkg/cryptoutil"
)

// KeyDeriver abstracts HD-wallet key generation/loading (spec §1
// "Deliberately excluded: HD-wallet generation over BIP-39/44... the core
// consumes only an abstract interface"). Production deployments supply
// their own implementation; Ed25519KeyDeriver below is a local/dev
// fallback.
type KeyDeriver interface {
	// LoadOrCreate returns the node's operating address and signing key,
	// creating and persisting new key material at path if none exists.
	LoadOrCreate(path string) (core.Address, ed25519.PrivateKey, error)
}

// Ed25519KeyDeriver is a minimal single-key implementation, grounded on
// the key-material shape of the teacher's core/wallet.go HDWallet but
// deliberately without its BIP-39 mnemonic / SLIP-10 hierarchical
// derivation machinery — that scope is the excluded external collaborator
// (spec §1 Non-goals).
type Ed25519KeyDeriver struct{}

// LoadOrCreate reads a raw Ed25519 private key from path, or generates
// and persists one if the file does not exist. The address is derived as
// smartX + hex(SHA-256(pubkey))[:40], matching spec §3's address shape.
func (Ed25519KeyDeriver) LoadOrCreate(path string) (core.Address, ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		if len(raw) != ed25519.PrivateKeySize {
			return "", nil, fmt.Errorf("key file %s has wrong size %d", path, len(raw))
		}
		priv := ed25519.PrivateKey(raw)
		return addressFromPublicKey(priv.Public().(ed25519.PublicKey)), priv, nil
	}
	if !os.IsNotExist(err) {
		return "", nil, fmt.Errorf("read key file: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(crand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", nil, fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return "", nil, fmt.Errorf("persist key file: %w", err)
	}
	return addressFromPublicKey(priv.Public().(ed25519.PublicKey)), priv, nil
}

func addressFromPublicKey(pub ed25519.PublicKey) core.Address {
	digest := cryptoutil.Hash(pub)
	hexDigest := hex.EncodeToString(digest[:])[:40]
	addr, err := core.NewAddress(cryptoutil.AddressPrefix + hexDigest)
	if err != nil {
		// hexDigest is always 40 lowercase-hex chars; NewAddress cannot
		// reject it.
		panic(err)
	}
	return addr
}
