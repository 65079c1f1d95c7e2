// Package chain implements the cryptographic data model: Transaction,
// Block, the transactions-root Merkle aggregation, proof-of-work, and the
// difficulty/reward schedules shared by the validator and the miner.
package chain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"quantcoin/internal/cryptoprim"
)

// Output is one (address, amount, commission) triple inside a
// transaction's to_wallets list.
type Output struct {
	To         string
	Amount     float64
	Commission float64
}

// Transaction is a value-transfer record. From is nil for the coinbase
// (block-reward) transaction.
type Transaction struct {
	From      *string
	Outputs   []Output
	Signature []byte
	PublicKey []byte
}

// IsCoinbase reports whether this transaction is the block-reward entry.
func (t *Transaction) IsCoinbase() bool {
	return t.From == nil
}

// AmountSpent is the sum of outgoing amounts plus commissions.
func (t *Transaction) AmountSpent() float64 {
	var total float64
	for _, o := range t.Outputs {
		total += o.Amount + o.Commission
	}
	return total
}

// Commission is the sum of the commission fields.
func (t *Transaction) Commission() float64 {
	var total float64
	for _, o := range t.Outputs {
		total += o.Commission
	}
	return total
}

// decimalForm formats a float in a fixed decimal representation so the
// canonical signing body never varies with Go's default float formatting
// (which can switch to exponent notation). Eight fractional digits is
// comfortably below the coin's smallest unit for any value this node
// deals with.
func decimalForm(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

// PrepareForSignature returns the canonical signing body: a deterministic
// serialization of {from_wallet, to_wallets} with fields in a fixed order
// and numbers in a fixed decimal form. Two transactions with the same
// logical content always produce byte-identical output.
func (t *Transaction) PrepareForSignature() []byte {
	var buf bytes.Buffer
	buf.WriteString("from=")
	if t.From != nil {
		buf.WriteString(*t.From)
	}
	buf.WriteString(";to=")
	for i, o := range t.Outputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(o.To)
		buf.WriteByte(':')
		buf.WriteString(decimalForm(o.Amount))
		buf.WriteByte(':')
		buf.WriteString(decimalForm(o.Commission))
	}
	return buf.Bytes()
}

// CanonicalJSON returns the wire-format JSON encoding of t.
func (t *Transaction) CanonicalJSON() ([]byte, error) {
	return json.Marshal(t.toWire())
}

// Verify reconstructs the declared public key, verifies the signature over
// PrepareForSignature() under SHA-256, and checks that the public key
// derives the declared From address. A coinbase transaction (From == nil)
// always verifies; its economic limits are enforced by the validator, not
// by signature checking.
func (t *Transaction) Verify() (bool, error) {
	if t.IsCoinbase() {
		return true, nil
	}
	ok, err := cryptoprim.Verify(t.PublicKey, t.Signature, t.PrepareForSignature())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return cryptoprim.AddressOf(t.PublicKey) == *t.From, nil
}

// --- wire encoding -----------------------------------------------------

type txBody struct {
	From *string  `json:"from"`
	To   [][3]any `json:"to"`
}

type txWire struct {
	Body      txBody `json:"body"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

func (t *Transaction) toWire() txWire {
	to := make([][3]any, len(t.Outputs))
	for i, o := range t.Outputs {
		to[i] = [3]any{o.To, o.Amount, o.Commission}
	}
	return txWire{
		Body:      txBody{From: t.From, To: to},
		Signature: base64.StdEncoding.EncodeToString(t.Signature),
		PublicKey: base64.StdEncoding.EncodeToString(t.PublicKey),
	}
}

// TransactionFromJSON decodes a transaction from its wire JSON
// representation, the inverse of CanonicalJSON.
func TransactionFromJSON(data []byte) (*Transaction, error) {
	var raw struct {
		Body struct {
			From *string         `json:"from"`
			To   [][]interface{} `json:"to"`
		} `json:"body"`
		Signature string `json:"signature"`
		PublicKey string `json:"public_key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(raw.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode transaction signature: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(raw.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode transaction public key: %w", err)
	}
	outputs := make([]Output, len(raw.Body.To))
	for i, triple := range raw.Body.To {
		if len(triple) != 3 {
			return nil, fmt.Errorf("decode transaction output %d: expected 3-tuple", i)
		}
		addr, ok := triple[0].(string)
		if !ok {
			return nil, fmt.Errorf("decode transaction output %d: address not a string", i)
		}
		amount, ok := triple[1].(float64)
		if !ok {
			return nil, fmt.Errorf("decode transaction output %d: amount not a number", i)
		}
		commission, ok := triple[2].(float64)
		if !ok {
			return nil, fmt.Errorf("decode transaction output %d: commission not a number", i)
		}
		outputs[i] = Output{To: addr, Amount: amount, Commission: commission}
	}
	return &Transaction{
		From:      raw.Body.From,
		Outputs:   outputs,
		Signature: sig,
		PublicKey: pub,
	}, nil
}

// sortKey returns the ordering key used by SortTransactions:
// (coinbase_first, from_wallet_bytes, signature_bytes).
func (t *Transaction) sortKey() (bool, string, []byte) {
	return !t.IsCoinbase(), t.fromOrEmpty(), t.Signature
}

func (t *Transaction) fromOrEmpty() string {
	if t.From == nil {
		return ""
	}
	return *t.From
}

// SortTransactions orders transactions canonically: the coinbase entry
// first (if present), then non-coinbase transactions ordered by
// from_wallet bytes, with signature bytes breaking ties. The slice is
// sorted in place and also returned for convenience.
func SortTransactions(txs []*Transaction) []*Transaction {
	sort.SliceStable(txs, func(i, j int) bool {
		iCoinbase, iFrom, iSig := txs[i].sortKey()
		jCoinbase, jFrom, jSig := txs[j].sortKey()
		if iCoinbase != jCoinbase {
			return !iCoinbase // coinbase (false) sorts first
		}
		if iFrom != jFrom {
			return iFrom < jFrom
		}
		return bytes.Compare(iSig, jSig) < 0
	})
	return txs
}
