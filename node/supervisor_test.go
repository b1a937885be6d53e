package node

import (
	"path/filepath"
	"testing"

	"smartxchain/core"
	"smartxchain/p2p"
	"smartxchain/pkg/config"
)

func testSupervisor(t *testing.T) (*Supervisor, core.Address) {
	t.Helper()
	dir := t.TempDir()
	miner := Ed25519KeyDeriver{}
	addr, _, err := miner.LoadOrCreate(filepath.Join(dir, "node.key"))
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}

	cfg := &config.Config{
		ChainID:        "test-chain",
		BlockchainPath: filepath.Join(dir, "chain.snapshot"),
		IP:             "127.0.0.1",
		Port:           0,
	}

	s := &Supervisor{
		cfg:          cfg,
		Contracts:    core.NewContractStore(),
		Registry:     p2p.NewRegistry(DefaultRegistryCapacity),
		MinerAddress: addr,
		selfURL:      "self",
	}
	return s, addr
}

func TestLoadOrCreateChainFreshStartsWithGenesis(t *testing.T) {
	s, _ := testSupervisor(t)
	if err := s.loadOrCreateChain(); err != nil {
		t.Fatalf("loadOrCreateChain: %v", err)
	}
	if s.Chain.Len() != 1 {
		t.Fatalf("len = %d, want 1 (genesis only)", s.Chain.Len())
	}
}

func TestPersistThenReloadRoundTrips(t *testing.T) {
	s, miner := testSupervisor(t)
	if err := s.loadOrCreateChain(); err != nil {
		t.Fatalf("loadOrCreateChain: %v", err)
	}
	if _, err := s.Chain.MinePending(miner, nil); err != nil {
		t.Fatalf("mine: %v", err)
	}
	if err := s.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	reloaded, _ := testSupervisorWithPath(t, s.cfg.BlockchainPath, miner)
	if err := reloaded.loadOrCreateChain(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Chain.Len() != 2 {
		t.Fatalf("reloaded len = %d, want 2", reloaded.Chain.Len())
	}
}

func testSupervisorWithPath(t *testing.T, path string, miner core.Address) (*Supervisor, core.Address) {
	t.Helper()
	cfg := &config.Config{ChainID: "test-chain", BlockchainPath: path, IP: "127.0.0.1"}
	s := &Supervisor{
		cfg:          cfg,
		Contracts:    core.NewContractStore(),
		Registry:     p2p.NewRegistry(DefaultRegistryCapacity),
		MinerAddress: miner,
		selfURL:      "self",
	}
	return s, miner
}
