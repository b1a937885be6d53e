// Package p2p implements the Peer Registry and Sync Engine (spec §4.6,
// §4.7) over a libp2p host, generalized from the teacher's
// core/network.go Node: Node.peers map[NodeID]*Peer guarded by
// peerLock sync.RWMutex becomes Registry.peers keyed by the peer's
// multiaddr, the teacher's ad-hoc map replaced with the spec's
// normalize/touch/prune/list contract.
//
// The wire protocol's "peer URL" (spec §3 Peer Record, §6) is realized
// here as a libp2p multiaddr carrying a /p2p/<peerID> component, since
// the transport actually wired in is libp2p streams (teacher's
// network.go already depends on go-libp2p/go-libp2p-pubsub/mdns) rather
// than bare HTTP; host/port shape is still enforced by requiring an
// /ip4/.../tcp/... prefix, matching the data model's intent that a peer
// address names a reachable host and port.
package p2p

import (
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"smartxchain/pkg/errs"
)

// PeerRecord is spec §3's Peer Record: a reachable peer address, the
// chain it claims to belong to, and the last time it was seen alive.
type PeerRecord struct {
	URL      string    `json:"url"`
	ChainID  string    `json:"chainId"`
	LastSeen time.Time `json:"lastSeen"`
}

// Registry holds the set of known peers, insertion-ordered for list()
// (spec §4.6).
type Registry struct {
	mu      sync.RWMutex
	order   []string
	peers   map[string]*PeerRecord
	maxSize int
}

// NewRegistry returns an empty registry capped at maxSize peers.
func NewRegistry(maxSize int) *Registry {
	return &Registry{peers: make(map[string]*PeerRecord), maxSize: maxSize}
}

// NormalizeURL validates and canonicalizes a peer address (spec §4.6
// "normalize URL to scheme/IP/port"). The libp2p realization of "scheme"
// is the multiaddr transport prefix; this rejects anything that does not
// parse as a multiaddr with /ip4/ and /tcp/ components naming a peer ID.
func NormalizeURL(raw string) (string, error) {
	addr, err := ma.NewMultiaddr(raw)
	if err != nil {
		return "", errs.Wrap(errs.KindMalformedMessage, "invalid peer address", err)
	}
	if _, err := addr.ValueForProtocol(ma.P_IP4); err != nil {
		return "", errs.Wrap(errs.KindMalformedMessage, "peer address missing /ip4/<host>", err)
	}
	if _, err := addr.ValueForProtocol(ma.P_TCP); err != nil {
		return "", errs.Wrap(errs.KindMalformedMessage, "peer address missing /tcp/<port>", err)
	}
	if _, err := peer.AddrInfoFromP2pAddr(addr); err != nil {
		return "", errs.Wrap(errs.KindMalformedMessage, "peer address missing /p2p/<id>", err)
	}
	return addr.String(), nil
}

// AddPeer normalizes url and registers it under chainID, rejecting once
// the registry is at capacity (spec §4.6 "up to a configured maximum").
func (r *Registry) AddPeer(rawURL, chainID string) error {
	norm, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[norm]; exists {
		r.peers[norm].LastSeen = time.Now().UTC()
		r.peers[norm].ChainID = chainID
		return nil
	}
	if r.maxSize > 0 && len(r.peers) >= r.maxSize {
		return errs.New(errs.KindPeerRejected, "peer registry at capacity")
	}
	r.peers[norm] = &PeerRecord{URL: norm, ChainID: chainID, LastSeen: time.Now().UTC()}
	r.order = append(r.order, norm)
	return nil
}

// Touch refreshes a known peer's lastSeen to now (spec §4.6 "touch(url)").
func (r *Registry) Touch(rawURL string) error {
	norm, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.peers[norm]
	if !ok {
		return errs.New(errs.KindPeerRejected, "unknown peer")
	}
	rec.LastSeen = time.Now().UTC()
	return nil
}

// Prune removes peers not seen within maxAge, returning the count removed
// (spec §4.6 "prune(maxAge)").
func (r *Registry) Prune(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	kept := r.order[:0]
	removed := 0
	for _, url := range r.order {
		if r.peers[url].LastSeen.Before(cutoff) {
			delete(r.peers, url)
			removed++
			continue
		}
		kept = append(kept, url)
	}
	r.order = kept
	return removed
}

// List returns peers in insertion order (spec §4.6 "list()").
func (r *Registry) List() []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerRecord, 0, len(r.order))
	for _, url := range r.order {
		out = append(out, *r.peers[url])
	}
	return out
}

// Len reports the current peer count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// URLs returns the comma-joinable list of known peer URLs sorted for
// determinism, used by the wire protocol's "Nodes" reply.
func (r *Registry) URLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, url := range r.order {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}
