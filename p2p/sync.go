package p2p

// Sync Engine (spec §4.7): periodic loop comparing local chain length
// against each known peer and fetching missing blocks. Grounded on the
// teacher's three-timer idiom in core/consensus.go (subBlockLoop/
// blockLoop: time.NewTicker + select{case <-ctx.Done(); case <-ticker.C}),
// generalized from block-sealing ticks to a peer-comparison tick.

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"smartxchain/core"
	"smartxchain/pkg/codec"
)

// DefaultSyncInterval is spec §4.7's default tick period.
const DefaultSyncInterval = 20 * time.Second

// DefaultRequestTimeout is spec §5's default per-request timeout.
const DefaultRequestTimeout = 5 * time.Second

// MutableChain is the chain surface the syncer needs beyond ChainAccess:
// it also applies fetched blocks, and can be rebuilt wholesale when the
// equal-length fork-choice path (spec §4.3, §9 Open Question #2) adopts a
// peer's chain in place of the local one.
type MutableChain interface {
	ChainAccess
	RebuildFrom(blocks []*core.Block) error
}

// Syncer runs the periodic sync loop against every peer in a Registry.
type Syncer struct {
	host       host.Host
	registry   *Registry
	chain      MutableChain
	selfURL    string
	interval   time.Duration
	reqTimeout time.Duration
	onExtended func()
}

// NewSyncer builds a Syncer with spec-default timings. onExtended, if
// non-nil, is called after any peer successfully extends the local chain
// (spec §4.7 step 5: "persist the chain snapshot to disk").
func NewSyncer(h host.Host, registry *Registry, chain MutableChain, selfURL string, onExtended func()) *Syncer {
	return &Syncer{
		host:       h,
		registry:   registry,
		chain:      chain,
		selfURL:    selfURL,
		interval:   DefaultSyncInterval,
		reqTimeout: DefaultRequestTimeout,
		onExtended: onExtended,
	}
}

// Run executes the sync loop until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sync pass over every known peer (spec §4.7 steps 1-5).
// Each pass is tagged with a correlation ID so its log lines can be
// followed across the request/reply round trips to a single peer.
func (s *Syncer) RunOnce(ctx context.Context) {
	for _, p := range s.registry.List() {
		reqID := uuid.New().String()
		if err := s.syncWithPeer(ctx, p, reqID); err != nil {
			logrus.WithField("sync_id", reqID).Warnf("sync with %s: %v", p.URL, err)
		}
	}
}

func (s *Syncer) syncWithPeer(ctx context.Context, p PeerRecord, reqID string) error {
	pi, err := peer.AddrInfoFromString(p.URL)
	if err != nil {
		return err
	}
	log := logrus.WithField("sync_id", reqID).WithField("peer", p.URL)

	localLen := s.chain.Len()
	reply, err := s.request(ctx, *pi, fmt.Sprintf("BlockCount:%s:%d", s.selfURL, localLen))
	if err != nil {
		return err
	}
	remoteLen, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return fmt.Errorf("malformed BlockCount reply %q", reply)
	}
	if remoteLen < localLen {
		return nil
	}

	validReply, err := s.request(ctx, *pi, "ValidateChain")
	if err != nil {
		return err
	}
	if strings.TrimSpace(validReply) != "ok" {
		return fmt.Errorf("peer %s reports an invalid chain", p.URL)
	}

	if remoteLen == localLen {
		return s.maybeAdoptEqualLength(ctx, *pi, p.URL, log)
	}

	extended := false
	for i := localLen; i < remoteLen; i++ {
		blkReply, err := s.request(ctx, *pi, fmt.Sprintf("GetBlock/%d", i))
		if err != nil {
			return err
		}
		if strings.HasPrefix(blkReply, "error") {
			break // abort this peer on first failure, move to the next (spec step 4)
		}
		var blk core.Block
		if err := codec.Decode(blkReply, &blk); err != nil {
			break
		}
		if err := s.chain.AddBlock(&blk, false); err != nil {
			break
		}
		extended = true
	}

	if extended {
		log.Infof("extended local chain from %d to %d blocks", localLen, s.chain.Len())
		if s.onExtended != nil {
			s.onExtended()
		}
	}
	return nil
}

// maybeAdoptEqualLength resolves an equal-length divergence via the
// secondary GetChain request and the fork-choice tie-break (spec §4.7 "A
// secondary request GetChain obtains the full encoded chain in one
// message... adopts it only if it is strictly longer and validates"; spec
// §4.3/§9 Open Question #2 "equal-length chains are broken by lowest tip
// hash"). Most ticks reach here with identical tips and PreferOver
// correctly declines to replace the local chain.
func (s *Syncer) maybeAdoptEqualLength(ctx context.Context, pi peer.AddrInfo, peerURL string, log *logrus.Entry) error {
	candidate, err := FetchChain(ctx, s.host, pi, s.selfURL, s.reqTimeout)
	if err != nil {
		return err
	}
	current := s.chain.Blocks()
	if !core.PreferOver(current, candidate) {
		return nil
	}
	if err := s.chain.RebuildFrom(candidate); err != nil {
		return fmt.Errorf("adopt equal-length candidate from %s: %w", peerURL, err)
	}
	log.Infof("adopted equal-length candidate chain from %s (tie-break on lowest tip hash)", peerURL)
	if s.onExtended != nil {
		s.onExtended()
	}
	return nil
}

func (s *Syncer) request(ctx context.Context, pi peer.AddrInfo, req string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.reqTimeout)
	defer cancel()
	return SendRequest(reqCtx, s.host, pi, req)
}

// FetchChain issues the GetChain request (spec §4.7 "A secondary request
// GetChain obtains the full encoded chain in one message"). The caller
// decides whether to adopt it (spec §4.7 "adopts it only if it is
// strictly longer... and validates").
func FetchChain(ctx context.Context, h host.Host, pi peer.AddrInfo, selfURL string, timeout time.Duration) ([]*core.Block, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reply, err := SendRequest(reqCtx, h, pi, "GetChain#"+selfURL)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(reply, "error") {
		return nil, fmt.Errorf("peer replied %s", reply)
	}
	var blocks []*core.Block
	if err := codec.Decode(reply, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}
