// Package protocol implements the wire framing and command envelopes
// shared by the peer server and the gossip client: a 4-byte
// little-endian length prefix followed by a JSON payload.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"quantcoin/internal/errs"
)

// DefaultPort is the node's default listen port, overridable by config.
const DefaultPort = 65345

// MaxFrameLength bounds how much memory a single inbound frame can
// claim before the connection is dropped as malformed. No single
// legitimate command approaches this size.
const MaxFrameLength = 64 << 20

// WriteFrame writes payload as a single length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errs.Wrap(err, "write frame length")
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(err, "write frame payload")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and returns its payload. A
// short read at any point, or a length exceeding MaxFrameLength, is
// reported as ErrMalformedFrame; the connection is not recoverable
// past that point and the caller should close it.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w: %v", errs.ErrMalformedFrame, err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > MaxFrameLength {
		return nil, fmt.Errorf("frame length %d exceeds maximum: %w", length, errs.ErrMalformedFrame)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w: %v", errs.ErrMalformedFrame, err)
	}
	return payload, nil
}
