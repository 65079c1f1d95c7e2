package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"quantcoin/internal/cryptoprim"
)

// GenesisSentinel is the fixed previous-block reference for the first
// block in a chain: the ASCII string "genesis_block" (13 bytes).
var GenesisSentinel = []byte("genesis_block")

// cancelPollInterval is how many nonces proof-of-work evaluates between
// checks of the cancellation context.
const cancelPollInterval = 1 << 14

// Block is an authored batch of transactions.
type Block struct {
	Author       string
	Transactions []*Transaction
	Previous     []byte // 32-byte parent digest, or GenesisSentinel
	Nonce        *uint64
	Digest       *[32]byte
}

// IsGenesisParent reports whether Previous is the genesis sentinel.
func (b *Block) IsGenesisParent() bool {
	return bytes.Equal(b.Previous, GenesisSentinel)
}

// TransactionsRoot computes the Merkle-like aggregate digest of a
// block's transactions txs. Transactions must already be in their canonical sorted
// order (see SortTransactions); this function does not sort.
func TransactionsRoot(txs []*Transaction) ([32]byte, error) {
	if len(txs) == 0 {
		return cryptoprim.SHA256(nil), nil
	}
	queue := make([][]byte, len(txs))
	for i, t := range txs {
		j, err := t.CanonicalJSON()
		if err != nil {
			return [32]byte{}, fmt.Errorf("hash transaction %d: %w", i, err)
		}
		h := cryptoprim.SHA256(j)
		queue[i] = h[:]
	}
	for len(queue) > 1 {
		if len(queue)%2 == 1 {
			queue = append(queue, []byte{})
		}
		next := make([][]byte, 0, len(queue)/2)
		for i := 0; i < len(queue); i += 2 {
			combined := make([]byte, 0, len(queue[i])+len(queue[i+1]))
			combined = append(combined, queue[i]...)
			combined = append(combined, queue[i+1]...)
			h := cryptoprim.SHA256(combined)
			next = append(next, h[:])
		}
		queue = next
	}
	var root [32]byte
	copy(root[:], queue[0])
	return root, nil
}

func (b *Block) header(transactionsRoot [32]byte, nonce uint64) ([32]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(b.Author)
	buf.Write(b.Previous)
	buf.Write(transactionsRoot[:])
	buf.WriteString(strconv.FormatUint(nonce, 10))
	return cryptoprim.SHA256(buf.Bytes()), nil
}

// hasLeadingZeroBytes reports whether digest begins with n zero bytes.
func hasLeadingZeroBytes(digest [32]byte, n int) bool {
	if n > len(digest) {
		n = len(digest)
	}
	for i := 0; i < n; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	return true
}

// ProofOfWork searches nonce in [start, end] for a digest with
// `difficulty` leading zero bytes. On success it sets b.Nonce and
// b.Digest and returns true; on exhaustion it returns false without
// mutating b. If b.Nonce is already set, it returns true immediately
// (idempotent).
func (b *Block) ProofOfWork(difficulty int, start, end uint64) (bool, error) {
	return b.ProofOfWorkContext(context.Background(), difficulty, start, end)
}

// ProofOfWorkContext is ProofOfWork with cooperative cancellation: every
// cancelPollInterval nonces it checks ctx and returns (false,
// ctx.Err()) if cancelled.
func (b *Block) ProofOfWorkContext(ctx context.Context, difficulty int, start, end uint64) (bool, error) {
	if b.Nonce != nil {
		return true, nil
	}
	root, err := TransactionsRoot(b.Transactions)
	if err != nil {
		return false, err
	}
	for nonce := start; ; nonce++ {
		if (nonce-start)%cancelPollInterval == 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			default:
			}
		}
		digest, err := b.header(root, nonce)
		if err != nil {
			return false, err
		}
		if hasLeadingZeroBytes(digest, difficulty) {
			n := nonce
			b.Nonce = &n
			b.Digest = &digest
			return true, nil
		}
		if nonce == end {
			return false, nil
		}
	}
}

// Valid recomputes the digest from b's current fields and checks both
// equality with the stored digest and the leading-zero-byte prefix.
func (b *Block) Valid(difficulty int) bool {
	if b.Nonce == nil || b.Digest == nil {
		return false
	}
	root, err := TransactionsRoot(b.Transactions)
	if err != nil {
		return false
	}
	calculated, err := b.header(root, *b.Nonce)
	if err != nil {
		return false
	}
	return calculated == *b.Digest && hasLeadingZeroBytes(calculated, difficulty)
}

// --- wire encoding -----------------------------------------------------

type blockWire struct {
	Author       string    `json:"author"`
	Nonce        *uint64   `json:"nonce"`
	Digest       *string   `json:"digest"`
	Previous     string    `json:"previous"`
	Transactions []txWire  `json:"transactions"`
}

// CanonicalJSON returns the wire-format JSON encoding of b.
func (b *Block) CanonicalJSON() ([]byte, error) {
	wire := blockWire{
		Author: b.Author,
		Nonce:  b.Nonce,
	}
	if b.Digest != nil {
		enc := base64.StdEncoding.EncodeToString(b.Digest[:])
		wire.Digest = &enc
	}
	if b.IsGenesisParent() {
		wire.Previous = string(GenesisSentinel)
	} else {
		wire.Previous = base64.StdEncoding.EncodeToString(b.Previous)
	}
	wire.Transactions = make([]txWire, len(b.Transactions))
	for i, t := range b.Transactions {
		wire.Transactions[i] = t.toWire()
	}
	return json.Marshal(wire)
}

// BlockFromJSON decodes a block from its wire JSON representation, the
// inverse of CanonicalJSON.
func BlockFromJSON(data []byte) (*Block, error) {
	var wire struct {
		Author       string            `json:"author"`
		Nonce        *uint64           `json:"nonce"`
		Digest       *string           `json:"digest"`
		Previous     string            `json:"previous"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}

	b := &Block{Author: wire.Author, Nonce: wire.Nonce}

	if wire.Previous == string(GenesisSentinel) {
		b.Previous = append([]byte{}, GenesisSentinel...)
	} else {
		prev, err := base64.StdEncoding.DecodeString(wire.Previous)
		if err != nil {
			return nil, fmt.Errorf("decode block previous: %w", err)
		}
		b.Previous = prev
	}

	if wire.Digest != nil {
		raw, err := base64.StdEncoding.DecodeString(*wire.Digest)
		if err != nil {
			return nil, fmt.Errorf("decode block digest: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("decode block digest: expected 32 bytes, got %d", len(raw))
		}
		var d [32]byte
		copy(d[:], raw)
		b.Digest = &d
	}

	b.Transactions = make([]*Transaction, len(wire.Transactions))
	for i, raw := range wire.Transactions {
		tx, err := TransactionFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("decode block transaction %d: %w", i, err)
		}
		b.Transactions[i] = tx
	}
	return b, nil
}
