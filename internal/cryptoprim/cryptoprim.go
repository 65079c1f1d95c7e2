// Package cryptoprim implements CryptoPrimitives: hashing, SECP256k1
// signature verification and address derivation. It has no knowledge of
// transactions or blocks and causes no side effects.
//
// Wire format notes (grounded in original_source/quantcoin, which built
// on Python's `ecdsa` library): a public key is the raw 64-byte X||Y
// uncompressed curve point (no 0x04 prefix, no compression); a signature
// is the raw 64-byte r||s pair, each a fixed-width 32-byte big-endian
// integer. Both are carried base64-encoded on the wire (the transaction
// wire encoding in internal/chain) exactly as the source did.
package cryptoprim

import (
	"crypto/ecdsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"quantcoin/internal/errs"
)

// AddressPrefix is prepended to every derived address string.
const AddressPrefix = "QC"

// PublicKeySize is the length in bytes of a raw (uncompressed, unprefixed)
// SECP256k1 public key point.
const PublicKeySize = 64

// SignatureSize is the length in bytes of a raw r||s SECP256k1 signature.
const SignatureSize = 64

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SHA1 returns the SHA-1 digest of data.
func SHA1(data []byte) [20]byte {
	return sha1.Sum(data)
}

// AddressOf derives the QuantCoin address string for a raw public key:
// "QC" followed by the lowercase hex encoding of SHA-1(publicKey).
func AddressOf(publicKey []byte) string {
	digest := SHA1(publicKey)
	return AddressPrefix + hex.EncodeToString(digest[:])
}

// ParsePublicKey validates and decodes a raw 64-byte public key into a
// standard library ECDSA public key. It returns ErrCrypto for malformed
// input.
func ParsePublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != PublicKeySize {
		return nil, errs.Wrap(fmt.Errorf("%w: want %d bytes, got %d", errs.ErrCrypto, PublicKeySize, len(raw)), "public key")
	}
	// Re-attach the uncompressed SEC1 point-type prefix the raw wire
	// format strips.
	uncompressed := make([]byte, 0, PublicKeySize+1)
	uncompressed = append(uncompressed, 0x04)
	uncompressed = append(uncompressed, raw...)
	pub, err := secp256k1.ParsePubKey(uncompressed)
	if err != nil {
		return nil, errs.Wrap(fmt.Errorf("%w: %v", errs.ErrCrypto, err), "public key")
	}
	return pub.ToECDSA(), nil
}

// Verify checks that signature is a valid SECP256k1/ECDSA signature over
// SHA-256(message) under publicKey. It returns (false, nil) for a
// well-formed but non-matching signature, and (false, ErrCrypto) for
// malformed input.
func Verify(publicKey, signature, message []byte) (bool, error) {
	if len(signature) != SignatureSize {
		return false, errs.Wrap(fmt.Errorf("%w: want %d bytes, got %d", errs.ErrCrypto, SignatureSize, len(signature)), "signature")
	}
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}

	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])

	digest := SHA256(message)
	return ecdsa.Verify(pub, digest[:], r, s), nil
}

// SerializePublicKey returns the raw 64-byte X||Y encoding of pub used on
// the wire and for address derivation.
func SerializePublicKey(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, PublicKeySize)
	xb := pub.X.Bytes()
	yb := pub.Y.Bytes()
	copy(out[32-len(xb):32], xb)
	copy(out[64-len(yb):64], yb)
	return out
}

// SerializeSignature returns the raw 64-byte r||s encoding of (r, s) used
// on the wire.
func SerializeSignature(r, s *big.Int) []byte {
	out := make([]byte, SignatureSize)
	rb := r.Bytes()
	sb := s.Bytes()
	copy(out[32-len(rb):32], rb)
	copy(out[64-len(sb):64], sb)
	return out
}
