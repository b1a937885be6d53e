package p2p

// Wire protocol (spec §6): a simple request-reply framing over a
// reliable stream, each message a UTF-8 string. HandleRequest is the pure
// request-dispatch function; ServeWire/SendRequest carry it over libp2p
// streams (teacher's network.go already depends on go-libp2p).

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/sirupsen/logrus"

	"smartxchain/core"
	"smartxchain/pkg/codec"
	"smartxchain/pkg/cryptoutil"
	"smartxchain/pkg/errs"
)

// ProtocolID identifies the wire protocol's libp2p stream protocol.
const ProtocolID = protocol.ID("/smartxchain/wire/1.0.0")

// ChainAccess is the subset of *core.Chain the wire protocol needs,
// narrowed to an interface so p2p can be tested without a live chain.
type ChainAccess interface {
	Len() int
	IsValid() bool
	BlockAt(index uint64) (*core.Block, error)
	Blocks() []*core.Block
	AddBlock(block *core.Block, trusted bool) error
}

// Deps bundles the state the wire handler needs to answer requests.
type Deps struct {
	Chain    ChainAccess
	Registry *Registry
	ChainID  string
}

// HandleRequest dispatches one UTF-8 request line to a reply line,
// per spec §6's request table.
func HandleRequest(deps Deps, req string) string {
	switch {
	case strings.HasPrefix(req, "Register:"):
		return handleRegister(deps, strings.TrimPrefix(req, "Register:"))
	case strings.HasPrefix(req, "Heartbeat:"):
		return handleHeartbeat(deps, strings.TrimPrefix(req, "Heartbeat:"))
	case req == "Nodes":
		return handleNodes(deps)
	case strings.HasPrefix(req, "BlockCount:"):
		return handleBlockCount(deps, strings.TrimPrefix(req, "BlockCount:"))
	case req == "ValidateChain":
		return handleValidateChain(deps)
	case strings.HasPrefix(req, "GetBlock/"):
		return handleGetBlock(deps, strings.TrimPrefix(req, "GetBlock/"))
	case strings.HasPrefix(req, "GetChain#"):
		return handleGetChain(deps)
	default:
		return "error:unrecognized request"
	}
}

func handleRegister(deps Deps, payload string) string {
	parts := strings.SplitN(payload, "|", 2)
	if len(parts) != 2 {
		return "error:malformed register request"
	}
	url, hmac := parts[0], parts[1]
	expected := cryptoutil.HMACString(deps.ChainID, url)
	if hmac != expected {
		return "error:hmac mismatch"
	}
	if err := deps.Registry.AddPeer(url, deps.ChainID); err != nil {
		return "error:" + err.Error()
	}
	return "ok"
}

func handleHeartbeat(deps Deps, url string) string {
	if err := deps.Registry.Touch(url); err != nil {
		return "error:" + err.Error()
	}
	return "ok"
}

func handleNodes(deps Deps) string {
	return strings.Join(deps.Registry.URLs(), ",")
}

func handleBlockCount(deps Deps, payload string) string {
	// Payload form is <requesterUrl>:<remoteLen>; the requester's own
	// length is advisory only, the reply is always this node's length.
	if !strings.Contains(payload, ":") {
		return "error:malformed blockcount request"
	}
	return strconv.Itoa(deps.Chain.Len())
}

func handleValidateChain(deps Deps) string {
	if deps.Chain.IsValid() {
		return "ok"
	}
	return "invalid"
}

func handleGetBlock(deps Deps, idxStr string) string {
	idx, err := strconv.ParseUint(idxStr, 10, 64)
	if err != nil {
		return "error:malformed index"
	}
	blk, err := deps.Chain.BlockAt(idx)
	if err != nil {
		return "error:" + err.Error()
	}
	enc, err := codec.Encode(blk)
	if err != nil {
		return "error:" + err.Error()
	}
	return enc
}

func handleGetChain(deps Deps) string {
	enc, err := codec.Encode(deps.Chain.Blocks())
	if err != nil {
		return "error:" + err.Error()
	}
	return enc
}

// ServeWire registers the wire protocol's stream handler on h. Each
// inbound stream carries exactly one newline-terminated request and
// receives exactly one newline-terminated reply.
func ServeWire(h host.Host, deps Deps) {
	h.SetStreamHandler(ProtocolID, func(s network.Stream) {
		defer s.Close()
		reader := bufio.NewReader(s)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		reply := HandleRequest(deps, strings.TrimRight(line, "\n"))
		if _, err := s.Write([]byte(reply + "\n")); err != nil {
			logrus.Warnf("wire: write reply: %v", err)
		}
	})
}

// SendRequest opens a wire stream to pi and returns its reply, honoring
// ctx's deadline as the per-request timeout (spec §5 "default 5s").
func SendRequest(ctx context.Context, h host.Host, pi peer.AddrInfo, request string) (string, error) {
	if err := h.Connect(ctx, pi); err != nil {
		return "", errs.Wrap(errs.KindPeerUnreachable, "connect to peer", err)
	}
	s, err := h.NewStream(ctx, pi.ID, ProtocolID)
	if err != nil {
		return "", errs.Wrap(errs.KindPeerUnreachable, "open wire stream", err)
	}
	defer s.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(s, "%s\n", request); err != nil {
		return "", errs.Wrap(errs.KindPeerTimeout, "write wire request", err)
	}
	reader := bufio.NewReader(s)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", errs.Wrap(errs.KindPeerTimeout, "read wire reply", err)
	}
	return strings.TrimRight(line, "\n"), nil
}
