// Package gossip implements the peer client: fan-out of commands to a
// random sample of known peers, with best-effort, per-peer error
// handling.
package gossip

import (
	"net"
	"strconv"
	"sync"
	"time"

	"quantcoin/internal/chain"
	"quantcoin/internal/chainlog"
	"quantcoin/internal/protocol"
	"quantcoin/internal/store"
)

var log = chainlog.For("gossip")

// defaultDialTimeout bounds how long a single peer connection attempt
// may block the fan-out.
const defaultDialTimeout = 5 * time.Second

// ResponseFunc is invoked once per peer that returned a response frame.
type ResponseFunc func(peer store.Peer, payload []byte)

// Client fans commands out to peers known to a Store.
type Client struct {
	store   store.Store
	timeout time.Duration
}

// New returns a Client that samples peers from s.
func New(s store.Store) *Client {
	return &Client{store: s, timeout: defaultDialTimeout}
}

// Forward fans cmd out to a random sample of up to 100 known peers. For
// each peer it dials, writes the frame, and, if onResponse is non-nil,
// reads one response frame and invokes onResponse. Per-peer errors are
// logged at debug and otherwise swallowed; forward never returns an
// error of its own. When no peers are known, it logs and is a no-op.
func (c *Client) Forward(cmd *protocol.Command, onResponse ResponseFunc) {
	peers := sample(c.store.AllNodes(), maxFanOut)
	if len(peers) == 0 {
		log.WithField("cmd", cmd.Cmd).Debug("forward: no known peers, no-op")
		return
	}
	data, err := cmd.Encode()
	if err != nil {
		log.WithError(err).Warn("forward: failed to encode command")
		return
	}

	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p store.Peer) {
			defer wg.Done()
			c.sendOne(p, data, onResponse)
		}(p)
	}
	wg.Wait()
}

func (c *Client) sendOne(p store.Peer, data []byte, onResponse ResponseFunc) {
	addr := net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		log.WithField("peer", addr).WithError(err).Debug("forward: dial failed")
		return
	}
	defer conn.Close()

	if err := protocol.WriteFrame(conn, data); err != nil {
		log.WithField("peer", addr).WithError(err).Debug("forward: write failed")
		return
	}
	if onResponse == nil {
		return
	}
	conn.SetReadDeadline(time.Now().Add(c.timeout))
	resp, err := protocol.ReadFrame(conn)
	if err != nil {
		log.WithField("peer", addr).WithError(err).Debug("forward: read response failed")
		return
	}
	onResponse(p, resp)
}

// Register announces (address, port) to the network.
func (c *Client) Register(address string, port int) {
	c.Forward(protocol.NewRegisterCommand(address, port), nil)
}

// NewBlock announces a newly mined or accepted block to the network.
func (c *Client) NewBlock(b *chain.Block) error {
	cmd, err := protocol.NewNewBlockCommand(b)
	if err != nil {
		return err
	}
	c.Forward(cmd, nil)
	return nil
}

// Send broadcasts a transaction to the network's mempools.
func (c *Client) Send(tx *chain.Transaction) error {
	cmd, err := protocol.NewSendCommand(tx)
	if err != nil {
		return err
	}
	c.Forward(cmd, nil)
	return nil
}

// GetNodes asks known peers for their peer sets, invoking onResponse
// once per peer that answered.
func (c *Client) GetNodes(onResponse func(store.Peer, []protocol.NodeAddr)) {
	c.Forward(protocol.NewGetNodesCommand(), func(peer store.Peer, payload []byte) {
		nodes, err := protocol.DecodeNodesResponse(payload)
		if err != nil {
			log.WithError(err).Debug("get_nodes: malformed response")
			return
		}
		onResponse(peer, nodes)
	})
}

// GetBlocks asks known peers for their chain, optionally scoped to the
// half-open range [lo, hi), invoking onResponse once per peer that
// answered.
func (c *Client) GetBlocks(rng *[2]int, onResponse func(store.Peer, []*chain.Block)) {
	c.Forward(protocol.NewGetBlocksCommand(rng), func(peer store.Peer, payload []byte) {
		blocks, err := protocol.DecodeBlocksResponse(payload)
		if err != nil {
			log.WithError(err).Debug("get_blocks: malformed response")
			return
		}
		onResponse(peer, blocks)
	})
}

// GetRangeBlocks is a convenience wrapper over GetBlocks for the
// common case of an explicit [lo, hi) range.
func (c *Client) GetRangeBlocks(lo, hi int, onResponse func(store.Peer, []*chain.Block)) {
	rng := [2]int{lo, hi}
	c.GetBlocks(&rng, onResponse)
}
