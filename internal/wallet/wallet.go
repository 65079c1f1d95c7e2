// Package wallet provides a minimal implementation of a wallet: sign,
// public_key, address. Key management is treated as an external
// concern from the node's core; this package exists so the CLI and
// tests have a concrete wallet to drive the rest of the system with
// (BIP-39 recovery phrases, logrus progress messages), adapted from
// ed25519/SLIP-10 derivation to the SECP256k1 keys the validation
// pipeline actually verifies.
package wallet

import (
	"crypto/ecdsa"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"

	"quantcoin/internal/chainlog"
	"quantcoin/internal/cryptoprim"
)

var log = chainlog.For("wallet")

const seedHMACKey = "quantcoin seed"

// Wallet holds a single SECP256k1 key pair in memory.
type Wallet struct {
	priv *ecdsa.PrivateKey
}

// New generates a fresh random wallet and its BIP-39 recovery mnemonic.
// The caller is responsible for storing the mnemonic securely.
func New() (*Wallet, string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, "", fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("mnemonic: %w", err)
	}
	w, err := FromMnemonic(mnemonic, "")
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// FromMnemonic deterministically derives a wallet from a BIP-39 phrase.
// Derivation is a single HMAC-SHA512 stretch of the BIP-39 seed reduced
// into the SECP256k1 scalar field, simpler than full SLIP-10/BIP-32
// hardened-child derivation, which is not meaningful for a
// single-address wallet.
func FromMnemonic(mnemonic, passphrase string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return fromSeed(seed)
}

func fromSeed(seed []byte) (*Wallet, error) {
	mac := hmac.New(sha512.New, []byte(seedHMACKey))
	mac.Write(seed)
	stretched := mac.Sum(nil)

	curve := crypto.S256()
	order := curve.Params().N
	scalar := new(big.Int).SetBytes(stretched[:32])
	scalar.Mod(scalar, new(big.Int).Sub(order, big.NewInt(1)))
	scalar.Add(scalar, big.NewInt(1))

	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = curve
	priv.D = scalar
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(scalar.Bytes())

	w := &Wallet{priv: priv}
	log.Infof("wallet initialised, address=%s", w.Address())
	return w, nil
}

// NewFromRandomKey generates a wallet from fresh random key material
// without going through a mnemonic, for tests that don't need a
// recoverable phrase.
func NewFromRandomKey() (*Wallet, error) {
	priv, err := ecdsa.GenerateKey(crypto.S256(), crand.Reader)
	if err != nil {
		return nil, err
	}
	return &Wallet{priv: priv}, nil
}

// PublicKey returns the raw 64-byte X||Y public key.
func (w *Wallet) PublicKey() []byte {
	return cryptoprim.SerializePublicKey(&w.priv.PublicKey)
}

// Address derives this wallet's QuantCoin address.
func (w *Wallet) Address() string {
	return cryptoprim.AddressOf(w.PublicKey())
}

// Sign produces a raw 64-byte r||s SECP256k1 signature over
// SHA-256(message).
func (w *Wallet) Sign(message []byte) ([]byte, error) {
	digest := cryptoprim.SHA256(message)
	r, s, err := ecdsa.Sign(crand.Reader, w.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return cryptoprim.SerializeSignature(r, s), nil
}

// keyFile is the on-disk representation written by Save/loaded by Load.
// It stores the raw scalar; anyone who can read this file can spend
// from the wallet. Key-at-rest protection is the CLI frontend's
// concern, not this package's.
type keyFile struct {
	D []byte `json:"d"`
}

// Save writes the wallet's private scalar to path as JSON.
func (w *Wallet) Save(path string) error {
	data, err := json.Marshal(keyFile{D: w.priv.D.Bytes()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load reads a wallet previously written by Save.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("decode wallet file: %w", err)
	}
	curve := crypto.S256()
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = curve
	priv.D = new(big.Int).SetBytes(kf.D)
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(priv.D.Bytes())
	return &Wallet{priv: priv}, nil
}
