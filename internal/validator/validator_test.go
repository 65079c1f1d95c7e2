package validator

import (
	"testing"
	"time"

	"quantcoin/internal/chain"
	"quantcoin/internal/store"
	"quantcoin/internal/wallet"
)

func mineOnto(t *testing.T, author string, previous []byte, txs []*chain.Transaction, difficulty int) *chain.Block {
	t.Helper()
	b := &chain.Block{Author: author, Transactions: chain.SortTransactions(txs), Previous: previous}
	ok, err := b.ProofOfWork(difficulty, 0, 1<<22)
	if err != nil {
		t.Fatalf("ProofOfWork: %v", err)
	}
	if !ok {
		t.Fatal("expected proof of work to succeed")
	}
	return b
}

func TestAdmitBlockAcceptsValidGenesis(t *testing.T) {
	s := store.NewMemory()
	v := New(s)
	coinbase := &chain.Transaction{Outputs: []chain.Output{{To: "QCauthor", Amount: v.Reward()}}}
	b := mineOnto(t, "QCauthor", chain.GenesisSentinel, []*chain.Transaction{coinbase}, v.Difficulty())

	ok, reason, err := v.AdmitBlock(b)
	if err != nil {
		t.Fatalf("AdmitBlock: %v", err)
	}
	if !ok {
		t.Fatalf("expected acceptance, got rejection: %s", reason)
	}
	if got := v.ChainLength(); got != 1 {
		t.Fatalf("ChainLength() = %d, want 1", got)
	}
}

func TestAdmitBlockRejectsWrongParent(t *testing.T) {
	s := store.NewMemory()
	v := New(s)
	coinbase := &chain.Transaction{Outputs: []chain.Output{{To: "QCauthor", Amount: v.Reward()}}}
	wrongParent := make([]byte, 32)
	wrongParent[0] = 7
	b := mineOnto(t, "QCauthor", wrongParent, []*chain.Transaction{coinbase}, v.Difficulty())

	ok, reason, err := v.AdmitBlock(b)
	if err != nil {
		t.Fatalf("AdmitBlock: %v", err)
	}
	if ok {
		t.Fatal("expected rejection for wrong parent link")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
	if got := v.ChainLength(); got != 0 {
		t.Fatalf("expected admission purity: store changed on rejection, length=%d", got)
	}
}

func TestAdmitBlockRejectsExcessiveCoinbase(t *testing.T) {
	s := store.NewMemory()
	v := New(s)
	coinbase := &chain.Transaction{Outputs: []chain.Output{{To: "QCauthor", Amount: v.Reward() + 1}}}
	b := mineOnto(t, "QCauthor", chain.GenesisSentinel, []*chain.Transaction{coinbase}, v.Difficulty())

	ok, reason, err := v.AdmitBlock(b)
	if err != nil {
		t.Fatalf("AdmitBlock: %v", err)
	}
	if ok {
		t.Fatal("expected rejection for coinbase exceeding reward")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestAdmitBlockRejectsOverspend(t *testing.T) {
	s := store.NewMemory()
	v := New(s)

	w, err := wallet.NewFromRandomKey()
	if err != nil {
		t.Fatalf("NewFromRandomKey: %v", err)
	}
	coinbase := &chain.Transaction{Outputs: []chain.Output{{To: w.Address(), Amount: v.Reward()}}}
	genesis := mineOnto(t, "QCauthor", chain.GenesisSentinel, []*chain.Transaction{coinbase}, v.Difficulty())
	if ok, reason, err := v.AdmitBlock(genesis); err != nil || !ok {
		t.Fatalf("AdmitBlock(genesis): ok=%v reason=%s err=%v", ok, reason, err)
	}

	from := w.Address()
	overspend := &chain.Transaction{From: &from, PublicKey: w.PublicKey(), Outputs: []chain.Output{{To: "QCother", Amount: v.Reward() * 2}}}
	sig, err := w.Sign(overspend.PrepareForSignature())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	overspend.Signature = sig

	reward2 := &chain.Transaction{Outputs: []chain.Output{{To: "QCauthor", Amount: v.Reward()}}}
	next := mineOnto(t, "QCauthor", genesis.Digest[:], []*chain.Transaction{reward2, overspend}, v.Difficulty())

	ok, reason, err := v.AdmitBlock(next)
	if err != nil {
		t.Fatalf("AdmitBlock: %v", err)
	}
	if ok {
		t.Fatal("expected rejection for overspend")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
	if got := v.ChainLength(); got != 1 {
		t.Fatalf("expected admission purity after rejection, length=%d", got)
	}
}

func TestAdmitBlockRejectsSelfPay(t *testing.T) {
	s := store.NewMemory()
	v := New(s)

	w, err := wallet.NewFromRandomKey()
	if err != nil {
		t.Fatalf("NewFromRandomKey: %v", err)
	}
	coinbase := &chain.Transaction{Outputs: []chain.Output{{To: w.Address(), Amount: v.Reward()}}}
	genesis := mineOnto(t, "QCauthor", chain.GenesisSentinel, []*chain.Transaction{coinbase}, v.Difficulty())
	if ok, _, err := v.AdmitBlock(genesis); err != nil || !ok {
		t.Fatalf("AdmitBlock(genesis) failed: %v", err)
	}

	from := w.Address()
	selfPay := &chain.Transaction{From: &from, PublicKey: w.PublicKey(), Outputs: []chain.Output{{To: from, Amount: 1}}}
	sig, err := w.Sign(selfPay.PrepareForSignature())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	selfPay.Signature = sig

	reward2 := &chain.Transaction{Outputs: []chain.Output{{To: "QCauthor", Amount: v.Reward()}}}
	next := mineOnto(t, "QCauthor", genesis.Digest[:], []*chain.Transaction{reward2, selfPay}, v.Difficulty())

	ok, reason, err := v.AdmitBlock(next)
	if err != nil {
		t.Fatalf("AdmitBlock: %v", err)
	}
	if ok {
		t.Fatal("expected rejection for self-payment")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestAdmitBlockRejectsOutOfOrderTransactions(t *testing.T) {
	s := store.NewMemory()
	v := New(s)
	coinbase := &chain.Transaction{Outputs: []chain.Output{{To: "QCauthor", Amount: v.Reward()}}}
	fromA := "QCaaa"
	fromB := "QCbbb"
	txA := &chain.Transaction{From: &fromA, Signature: []byte{1}}
	txB := &chain.Transaction{From: &fromB, Signature: []byte{2}}

	// Deliberately out of canonical order: non-coinbase before coinbase.
	b := &chain.Block{
		Author:       "QCauthor",
		Transactions: []*chain.Transaction{txB, txA, coinbase},
		Previous:     chain.GenesisSentinel,
	}
	ok, err := b.ProofOfWork(v.Difficulty(), 0, 1<<22)
	if err != nil || !ok {
		t.Fatalf("ProofOfWork: ok=%v err=%v", ok, err)
	}

	accepted, reason, err := v.AdmitBlock(b)
	if err != nil {
		t.Fatalf("AdmitBlock: %v", err)
	}
	if accepted {
		t.Fatal("expected rejection for out-of-order transactions")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestAdmitBlockNotifiesSubscribers(t *testing.T) {
	s := store.NewMemory()
	v := New(s)
	tipCh := v.Subscribe()

	coinbase := &chain.Transaction{Outputs: []chain.Output{{To: "QCauthor", Amount: v.Reward()}}}
	b := mineOnto(t, "QCauthor", chain.GenesisSentinel, []*chain.Transaction{coinbase}, v.Difficulty())

	if ok, reason, err := v.AdmitBlock(b); err != nil || !ok {
		t.Fatalf("AdmitBlock: ok=%v reason=%s err=%v", ok, reason, err)
	}

	select {
	case got := <-tipCh:
		if got != b {
			t.Fatal("expected notified tip to be the admitted block")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tip-change notification")
	}
}
