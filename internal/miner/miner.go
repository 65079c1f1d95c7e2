// Package miner implements the mining state machine: a mempool fed by
// verified incoming transactions, and a cancellable proof-of-work loop
// that snapshots the mempool, builds a candidate block, searches for a
// valid nonce, and publishes on success.
//
// Two deliberate design choices depart from the most literal reading
// of the original protocol: the miner asks the Validator for the
// current difficulty instead of computing its own independent
// estimate, and after a tip change it abandons the current attempt by
// diffing the snapshot against the newly published block and
// retaining whatever wasn't included, instead of unconditionally
// dropping the whole mempool.
package miner

import (
	"context"
	"math"
	"sync"
	"time"

	"quantcoin/internal/chain"
	"quantcoin/internal/chainlog"
	"quantcoin/internal/gossip"
	"quantcoin/internal/validator"
)

var log = chainlog.For("miner")

// gatherPollInterval is how often Gather rechecks the mempool while
// waiting for enough transactions to accumulate.
const gatherPollInterval = 200 * time.Millisecond

// ownEchoTimeout bounds how long Publish waits to observe its own
// block come back through the Validator's tip-change notification
// before broadcasting anyway.
const ownEchoTimeout = 2 * time.Second

// Miner runs the Gather/Build/Search/Publish loop for one wallet address.
type Miner struct {
	address       string
	minTxCount    int
	minCommission float64 // negative disables the commission floor

	validator *validator.Validator
	network   *gossip.Client

	mempoolMu sync.Mutex
	mempool   []*chain.Transaction

	stateMu sync.Mutex
	mining  bool
	stopCh  chan struct{}

	tipCh <-chan *chain.Block
}

// New returns a Miner that will author blocks to address, waiting for
// at least minTxCount mempool entries with at least minCommission
// total commission (a negative minCommission disables the commission
// floor) before attempting a block.
func New(address string, minTxCount int, minCommission float64, v *validator.Validator, network *gossip.Client) *Miner {
	return &Miner{
		address:       address,
		minTxCount:    minTxCount,
		minCommission: minCommission,
		validator:     v,
		network:       network,
		tipCh:         v.Subscribe(),
	}
}

// Send verifies tx and, if valid, appends it to the mempool. Invalid
// transactions are rejected and never enter the mempool. Appends are
// serialized by mempoolMu, which is never held across I/O.
func (m *Miner) Send(tx *chain.Transaction) (bool, error) {
	ok, err := tx.Verify()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	m.mempoolMu.Lock()
	m.mempool = append(m.mempool, tx)
	m.mempoolMu.Unlock()
	return true, nil
}

// MempoolLen reports the number of queued, unmined transactions.
func (m *Miner) MempoolLen() int {
	m.mempoolMu.Lock()
	defer m.mempoolMu.Unlock()
	return len(m.mempool)
}

// Start transitions Idle -> Gather and runs the mining loop on its own
// goroutine. Calling Start while already mining is a no-op.
func (m *Miner) Start() {
	m.stateMu.Lock()
	if m.mining {
		m.stateMu.Unlock()
		return
	}
	m.mining = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.stateMu.Unlock()

	go m.run(stopCh)
}

// Stop transitions any state -> Idle. The loop exits at its next poll
// point, bounded by the proof-of-work cancellation interval. Calling
// Stop while not mining is a no-op.
func (m *Miner) Stop() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if !m.mining {
		return
	}
	close(m.stopCh)
	m.mining = false
}

func (m *Miner) run(stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		snapshot, stopped := m.gather(stopCh)
		if stopped {
			return
		}

		block := m.build(snapshot)
		published, outcome := m.search(stopCh, block)

		switch {
		case published:
			m.publish(block)
		case outcome.stopped:
			m.restore(snapshot, nil)
			return
		case outcome.newTip != nil:
			m.restore(snapshot, outcome.newTip)
		default:
			// Exhausted the entire nonce space without a cancellation
			// signal. Practically unreachable at any real difficulty;
			// fall back to Gather rather than spin on a dead block.
			m.restore(snapshot, nil)
		}
	}
}

// gather blocks until the mempool holds enough transactions at enough
// total commission, or stopCh closes.
func (m *Miner) gather(stopCh chan struct{}) (snapshot []*chain.Transaction, stopped bool) {
	for {
		select {
		case <-stopCh:
			return nil, true
		default:
		}

		m.mempoolMu.Lock()
		if len(m.mempool) >= m.minTxCount && m.commissionSatisfied(m.mempool) {
			snapshot = m.mempool
			m.mempool = nil
			m.mempoolMu.Unlock()
			return snapshot, false
		}
		m.mempoolMu.Unlock()

		select {
		case <-stopCh:
			return nil, true
		case <-time.After(gatherPollInterval):
		}
	}
}

func (m *Miner) commissionSatisfied(txs []*chain.Transaction) bool {
	if m.minCommission < 0 {
		return true
	}
	var total float64
	for _, tx := range txs {
		total += tx.Commission()
	}
	return total >= m.minCommission
}

// build constructs a candidate block authored by m.address atop the
// current tip, with a coinbase transaction sized to the current reward
// schedule plus the gathered snapshot, in canonical order.
func (m *Miner) build(snapshot []*chain.Transaction) *chain.Block {
	previous := chain.GenesisSentinel
	if tip := m.validator.Tip(); tip != nil {
		previous = tip.Digest[:]
	}
	coinbase := &chain.Transaction{
		Outputs: []chain.Output{{To: m.address, Amount: m.validator.Reward()}},
	}
	txs := make([]*chain.Transaction, 0, len(snapshot)+1)
	txs = append(txs, coinbase)
	txs = append(txs, snapshot...)
	chain.SortTransactions(txs)

	return &chain.Block{Author: m.address, Transactions: txs, Previous: previous}
}

type searchOutcome struct {
	stopped bool
	newTip  *chain.Block
}

// search runs the proof-of-work loop over the full nonce space,
// cooperatively cancelled by stopCh or a tip-change notification. It
// relies on Block.ProofOfWorkContext's internal cancellation polling
// (every 2^14 nonces) to observe either signal promptly.
func (m *Miner) search(stopCh chan struct{}, block *chain.Block) (published bool, outcome searchOutcome) {
	difficulty := m.validator.Difficulty()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	causeCh := make(chan searchOutcome, 1)
	go func() {
		select {
		case <-stopCh:
			causeCh <- searchOutcome{stopped: true}
			cancel()
		case tip := <-m.tipCh:
			causeCh <- searchOutcome{newTip: tip}
			cancel()
		case <-ctx.Done():
		}
	}()

	ok, err := block.ProofOfWorkContext(ctx, difficulty, 0, math.MaxUint64)
	if err != nil {
		select {
		case c := <-causeCh:
			return false, c
		default:
			return false, searchOutcome{}
		}
	}
	return ok, searchOutcome{}
}

// publish admits the freshly mined block through the Validator (this
// node's own admission, standing in for "its own validator echo"),
// waits briefly to observe that acceptance on the tip-change channel,
// and then broadcasts the block to the network.
func (m *Miner) publish(block *chain.Block) {
	accepted, reason, err := m.validator.AdmitBlock(block)
	if err != nil {
		log.WithError(err).Error("failed to admit own mined block")
		return
	}
	if !accepted {
		log.WithField("reason", reason).Warn("own mined block rejected by validator")
		return
	}

	select {
	case <-m.tipCh:
	case <-time.After(ownEchoTimeout):
	}

	if err := m.network.NewBlock(block); err != nil {
		log.WithError(err).Warn("failed to broadcast mined block")
	}
}

// restore is invoked after abandoning a search attempt. If newTip is
// non-nil, the snapshot is diffed against it: transactions it already
// included, or that no longer verify, are dropped; everything else is
// retained and merged back ahead of whatever arrived in the mempool
// meanwhile. If newTip is nil (a plain stop or exhaustion), the whole
// snapshot is restored untouched.
func (m *Miner) restore(snapshot []*chain.Transaction, newTip *chain.Block) {
	var retained []*chain.Transaction
	if newTip == nil {
		retained = snapshot
	} else {
		included := make(map[string]struct{}, len(newTip.Transactions))
		for _, tx := range newTip.Transactions {
			included[string(tx.Signature)] = struct{}{}
		}
		for _, tx := range snapshot {
			if _, already := included[string(tx.Signature)]; already {
				continue
			}
			if ok, err := tx.Verify(); err != nil || !ok {
				continue
			}
			retained = append(retained, tx)
		}
	}
	if len(retained) == 0 {
		return
	}
	m.mempoolMu.Lock()
	m.mempool = append(retained, m.mempool...)
	m.mempoolMu.Unlock()
}
