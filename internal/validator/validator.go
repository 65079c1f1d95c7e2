// Package validator implements block admission: the cryptographic and
// economic rules a block must satisfy before it is appended to Store
// and announced to the rest of the node.
package validator

import (
	"bytes"
	"sync"

	"quantcoin/internal/chain"
	"quantcoin/internal/chainlog"
	"quantcoin/internal/store"
)

var log = chainlog.For("validator")

// Validator holds the single reference to Store the core consumes.
// Admission is serialized by mu: at most one AdmitBlock call runs at a
// time, so the tip advances atomically relative to observers. mu is
// held for the whole of AdmitBlock: its Store reads, the append, and
// subscriber notification, which never blocks.
type Validator struct {
	store store.Store

	mu sync.Mutex

	subsMu sync.RWMutex
	subs   []chan *chain.Block
}

// New returns a Validator backed by s.
func New(s store.Store) *Validator {
	return &Validator{store: s}
}

// ChainLength returns the current number of stored blocks.
func (v *Validator) ChainLength() int {
	return len(v.store.Blocks())
}

// Difficulty returns the number of required leading zero digest bytes
// for the next block. The Miner calls this rather than computing its
// own estimate, so the two can never disagree (see NetworkDifficulty).
func (v *Validator) Difficulty() int {
	return chain.NetworkDifficulty(v.ChainLength())
}

// Reward returns the coinbase amount available to the next block's author.
func (v *Validator) Reward() float64 {
	return chain.Reward(v.ChainLength())
}

// Tip returns the current chain tip, or nil if the chain is empty.
func (v *Validator) Tip() *chain.Block {
	blocks := v.store.Blocks()
	if len(blocks) == 0 {
		return nil
	}
	return blocks[len(blocks)-1]
}

// Subscribe registers for tip-change notifications. The returned
// channel receives the newly accepted block after every successful
// AdmitBlock call; it is buffered by one slot and notification is
// non-blocking, so a slow subscriber observes only the latest tip, not
// every intermediate one.
func (v *Validator) Subscribe() <-chan *chain.Block {
	ch := make(chan *chain.Block, 1)
	v.subsMu.Lock()
	v.subs = append(v.subs, ch)
	v.subsMu.Unlock()
	return ch
}

func (v *Validator) notify(tip *chain.Block) {
	v.subsMu.RLock()
	defer v.subsMu.RUnlock()
	for _, ch := range v.subs {
		select {
		case ch <- tip:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- tip:
			default:
			}
		}
	}
}

// AdmitBlock runs the admission pipeline against block. It returns
// (true, "", nil) on acceptance, (false, reason, nil) on a normal
// rejection, or a non-nil error only when Store fails to append an
// accepted block, never for a merely invalid block (a transaction that
// cannot be hashed or verified is a rejection). Rejection never mutates Store.
func (v *Validator) AdmitBlock(block *chain.Block) (bool, string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	blocks := v.store.Blocks()
	chainLength := len(blocks)

	// Rule 1: parent link.
	var expectedPrevious []byte
	if chainLength == 0 {
		expectedPrevious = chain.GenesisSentinel
	} else {
		tip := blocks[chainLength-1]
		expectedPrevious = tip.Digest[:]
	}
	if !bytes.Equal(block.Previous, expectedPrevious) {
		return v.reject(block, "parent link: previous does not match current tip")
	}

	// Rule 2: proof of work.
	difficulty := chain.NetworkDifficulty(chainLength)
	if !block.Valid(difficulty) {
		return v.reject(block, "proof of work: digest invalid for required difficulty")
	}

	// Rule 3: transaction order and signature uniqueness.
	ordered := make([]*chain.Transaction, len(block.Transactions))
	copy(ordered, block.Transactions)
	chain.SortTransactions(ordered)
	for i := range ordered {
		if ordered[i] != block.Transactions[i] {
			return v.reject(block, "transactions: not in canonical order")
		}
	}
	seenSignatures := make(map[string]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		key := string(tx.Signature)
		if _, dup := seenSignatures[key]; dup {
			return v.reject(block, "transactions: duplicate signature")
		}
		seenSignatures[key] = struct{}{}
	}

	// Rule 4: coinbase uniqueness.
	var coinbase *chain.Transaction
	for _, tx := range block.Transactions {
		if tx.IsCoinbase() {
			if coinbase != nil {
				return v.reject(block, "coinbase: more than one coinbase transaction")
			}
			coinbase = tx
		}
	}

	// Rule 5: coinbase cap.
	if coinbase != nil {
		reward := chain.Reward(chainLength)
		if coinbase.AmountSpent() > reward {
			return v.reject(block, "coinbase: amount exceeds block reward")
		}
	}

	// Rule 6: per-transaction validity for every non-coinbase transaction.
	for _, tx := range block.Transactions {
		if tx.IsCoinbase() {
			continue
		}
		ok, err := tx.Verify()
		if err != nil {
			return v.reject(block, "transaction: signature verification error")
		}
		if !ok {
			return v.reject(block, "transaction: signature does not verify")
		}
		for _, out := range tx.Outputs {
			if out.To == *tx.From {
				return v.reject(block, "transaction: self-payment")
			}
		}
		if tx.AmountSpent() > v.store.AmountOwned(*tx.From) {
			return v.reject(block, "transaction: amount spent exceeds owned balance")
		}
	}

	if err := v.store.StoreBlock(block); err != nil {
		return false, "", err
	}
	v.notify(block)
	return true, "", nil
}

func (v *Validator) reject(block *chain.Block, reason string) (bool, string, error) {
	log.WithField("reason", reason).Debug("rejected block")
	return false, reason, nil
}
