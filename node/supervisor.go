package node

// Node Supervisor (spec §4.8): boots every component, wires them
// together, and schedules the periodic heartbeat/sync/prune loops. The
// boot/shutdown shape is ported from the teacher's NewNode
// (core/network.go) + NewLedger (core/ledger.go) composed together; the
// three independent ticker loops are grounded on core/consensus.go's
// subBlockLoop/blockLoop idiom (core/replication.go's ticker+context loop
// is the direct ancestor for the prune loop specifically).

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	golibp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"smartxchain/core"
	"smartxchain/p2p"
	"smartxchain/pkg/codec"
	"smartxchain/pkg/config"
	"smartxchain/pkg/errs"
	"smartxchain/queryserver"
)

const (
	keyFileName = "node.key"

	// DefaultHeartbeatInterval and DefaultPruneInterval are Node Supervisor
	// timers distinct from the Sync Engine's own tick (spec §4.8, §5).
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultPruneInterval     = 60 * time.Second
	DefaultPeerMaxAge        = 5 * time.Minute
	DefaultRegistryCapacity  = 256
)

// snapshot is the single-file archive persisted at cfg.BlockchainPath
// (spec §3 "Lifecycle... persisted as a single serialized archive").
type snapshot struct {
	Blocks    []*core.Block          `json:"blocks"`
	Peers     []p2p.PeerRecord       `json:"peers"`
	Contracts []*core.ContractRecord `json:"contracts"`
}

// Supervisor owns every shared mutable component and threads them
// explicitly to callers instead of exposing package-level singletons
// (SPEC_FULL.md Design Notes "global mutable state -> threaded context").
type Supervisor struct {
	cfg *config.Config

	Chain     *core.Chain
	Contracts *core.ContractStore
	Registry  *p2p.Registry
	Host      host.Host
	Syncer    *p2p.Syncer

	MinerAddress core.Address
	selfURL      string

	queryServer *http.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Boot loads configuration-derived state, wires every component, and
// starts the background loops (spec §4.8). The returned Supervisor is
// ready to serve; call Shutdown to stop it cleanly.
func Boot(cfg *config.Config, kd KeyDeriver) (*Supervisor, error) {
	if kd == nil {
		kd = Ed25519KeyDeriver{}
	}

	minerAddr, signKey, err := kd.LoadOrCreate(keyFileName)
	if err != nil {
		return nil, errs.Wrap(errs.KindIOFailed, "load or create node key", err)
	}
	if cfg.MinerAddress != "" && !minerAddr.Equal(core.Address(cfg.MinerAddress)) {
		logrus.Warnf("configured MinerAddress %s does not match derived key address %s; the derived key is authoritative", cfg.MinerAddress, minerAddr)
	}

	s := &Supervisor{
		cfg:          cfg,
		Contracts:    core.NewContractStore(),
		Registry:     p2p.NewRegistry(DefaultRegistryCapacity),
		MinerAddress: minerAddr,
		selfURL:      fmt.Sprintf("%s:%d", cfg.IP, cfg.Port),
	}

	if err := s.loadOrCreateChain(); err != nil {
		return nil, err
	}
	s.Chain.SetSigner(func(hash []byte) []byte { return ed25519.Sign(signKey, hash) })

	h, err := golibp2p.New(golibp2p.ListenAddrStrings(fmt.Sprintf("/ip4/%s/tcp/%d", cfg.IP, cfg.Port)))
	if err != nil {
		return nil, errs.Wrap(errs.KindIOFailed, "start libp2p host", err)
	}
	s.Host = h
	p2p.ServeWire(h, p2p.Deps{Chain: s.Chain, Registry: s.Registry, ChainID: cfg.ChainID})

	for _, addr := range cfg.Peers {
		if err := s.Registry.AddPeer(addr, cfg.ChainID); err != nil {
			logrus.Warnf("bootstrap peer %s rejected: %v", addr, err)
		}
	}

	s.Syncer = p2p.NewSyncer(h, s.Registry, s.Chain, s.selfURL, s.persistSnapshot)
	s.startQueryServer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.startLoops(ctx)

	return s, nil
}

// startQueryServer serves the read-only explorer surface (spec §4.8, §6)
// one port above the node's wire-protocol port.
func (s *Supervisor) startQueryServer(cfg *config.Config) {
	router := queryserver.NewRouter(s.Chain, s.Contracts)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.IP, cfg.Port+1),
		Handler: router,
	}
	s.queryServer = srv

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("query server: %v", err)
		}
	}()
}

func (s *Supervisor) loadOrCreateChain() error {
	chain, snap, err := loadArchive(s.cfg.BlockchainPath, s.MinerAddress)
	if err != nil {
		return err
	}
	s.Chain = chain
	for _, p := range snap.Peers {
		if err := s.Registry.AddPeer(p.URL, p.ChainID); err != nil {
			logrus.Warnf("persisted peer %s rejected on reload: %v", p.URL, err)
		}
	}
	s.Contracts.LoadRecords(snap.Contracts)
	return nil
}

// loadArchive reads and validates the archive at path, or returns a fresh
// genesis-only chain if no archive exists yet.
func loadArchive(path string, minerAddr core.Address) (*core.Chain, snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, snapshot{}, errs.Wrap(errs.KindIOFailed, "read chain snapshot", err)
		}
		return core.NewChain(minerAddr, nil), snapshot{}, nil
	}

	var snap snapshot
	if err := codec.Decode(string(raw), &snap); err != nil {
		return nil, snapshot{}, errs.Wrap(errs.KindCodecFailed, "decode chain snapshot", err)
	}

	chain := core.NewChain(minerAddr, nil)
	if len(snap.Blocks) > 0 {
		if err := chain.RebuildFrom(snap.Blocks); err != nil {
			return nil, snapshot{}, errs.Wrap(errs.KindChainLinkBroken, "loaded chain failed validation", err)
		}
	}
	return chain, snap, nil
}

// OpenArchive loads the persisted chain/contract archive at cfg.BlockchainPath
// for one-shot CLI operations that don't need a full Supervisor (no libp2p
// host, no background loops). It returns the same state loadOrCreateChain
// would install on a booted Supervisor.
func OpenArchive(cfg *config.Config, minerAddr core.Address) (*core.Chain, *core.ContractStore, error) {
	chain, snap, err := loadArchive(cfg.BlockchainPath, minerAddr)
	if err != nil {
		return nil, nil, err
	}
	contracts := core.NewContractStore()
	contracts.LoadRecords(snap.Contracts)
	return chain, contracts, nil
}

// ArchivedPeers returns the peer list last persisted to cfg.BlockchainPath,
// for one-shot CLI inspection without booting a Supervisor.
func ArchivedPeers(cfg *config.Config) ([]p2p.PeerRecord, error) {
	_, snap, err := loadArchive(cfg.BlockchainPath, "")
	if err != nil {
		return nil, err
	}
	return snap.Peers, nil
}

// SaveArchive persists chain, contracts, and peers to cfg.BlockchainPath in
// the same single-archive format Supervisor.Persist writes (spec §3
// Lifecycle). One-shot CLI commands call this after mutating the chain or
// contract store directly.
func SaveArchive(cfg *config.Config, chain *core.Chain, contracts *core.ContractStore, peers []p2p.PeerRecord) error {
	snap := snapshot{Blocks: chain.Blocks(), Peers: peers, Contracts: contracts.Records()}
	enc, err := codec.Encode(snap)
	if err != nil {
		return errs.Wrap(errs.KindCodecFailed, "encode chain snapshot", err)
	}
	if err := os.WriteFile(cfg.BlockchainPath, []byte(enc), 0o600); err != nil {
		return errs.Wrap(errs.KindIOFailed, "write chain snapshot", err)
	}
	return nil
}

func (s *Supervisor) startLoops(ctx context.Context) {
	s.wg.Add(3)
	go func() { defer s.wg.Done(); s.Syncer.Run(ctx) }()
	go func() { defer s.wg.Done(); s.heartbeatLoop(ctx) }()
	go func() { defer s.wg.Done(); s.pruneLoop(ctx) }()
}

func (s *Supervisor) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(DefaultHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.heartbeatOnce(ctx)
		}
	}
}

func (s *Supervisor) heartbeatOnce(ctx context.Context) {
	for _, rec := range s.Registry.List() {
		pi, err := peer.AddrInfoFromString(rec.URL)
		if err != nil {
			continue
		}
		reqCtx, cancel := context.WithTimeout(ctx, p2p.DefaultRequestTimeout)
		_, err = p2p.SendRequest(reqCtx, s.Host, *pi, "Heartbeat:"+s.selfURL)
		cancel()
		if err != nil {
			logrus.Warnf("heartbeat to %s failed: %v", rec.URL, err)
		}
	}
}

func (s *Supervisor) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(DefaultPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Registry.Prune(DefaultPeerMaxAge); n > 0 {
				logrus.Infof("pruned %d stale peers", n)
			}
		}
	}
}

func (s *Supervisor) persistSnapshot() {
	if err := s.Persist(); err != nil {
		logrus.Warnf("persist chain snapshot: %v", err)
	}
}

// Persist writes the chain and peer list to cfg.BlockchainPath via the
// Codec envelope (spec §6 "Chain snapshot on disk").
func (s *Supervisor) Persist() error {
	snap := snapshot{Blocks: s.Chain.Blocks(), Peers: s.Registry.List(), Contracts: s.Contracts.Records()}
	enc, err := codec.Encode(snap)
	if err != nil {
		return errs.Wrap(errs.KindCodecFailed, "encode chain snapshot", err)
	}
	if err := os.WriteFile(s.cfg.BlockchainPath, []byte(enc), 0o600); err != nil {
		return errs.Wrap(errs.KindIOFailed, "write chain snapshot", err)
	}
	return nil
}

// Shutdown persists state, stops all periodic loops, and closes the host
// (spec §4.8 "On shutdown: persist chain and peer list; stop all periodic
// tasks; return").
func (s *Supervisor) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.queryServer != nil {
		_ = s.queryServer.Close()
	}

	persistErr := s.Persist()

	var hostErr error
	if s.Host != nil {
		hostErr = s.Host.Close()
	}

	if persistErr != nil {
		return persistErr
	}
	return hostErr
}
