// Package errs defines the small error taxonomy shared by the chain,
// protocol and networking packages. Every sentinel here corresponds to a
// "Kind" in the node's error handling design: callers compare against
// these with errors.Is rather than inspecting strings.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned by the protocol codec when a frame's
	// length prefix or payload cannot be decoded.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrUnknownCommand is returned by server dispatch for a cmd value
	// outside the fixed command set.
	ErrUnknownCommand = errors.New("protocol: unknown command")
	// ErrCrypto marks a cryptographic operation that could not be
	// completed (malformed key or signature), as distinct from an
	// operation that completed and returned "not verified".
	ErrCrypto = errors.New("crypto: malformed input")
	// ErrInvariant is returned by the validator when a block fails an
	// admission rule.
	ErrInvariant = errors.New("validator: invariant violation")
	// ErrTransport marks a per-peer network failure during gossip
	// fan-out. Callers swallow it and continue with the next peer.
	ErrTransport = errors.New("gossip: transport error")
	// ErrFatalConfig marks a startup configuration error that should
	// halt the process before any subsystem starts.
	ErrFatalConfig = errors.New("config: fatal configuration error")
)

// Wrap adds context to err while preserving errors.Is/As matching against
// the wrapped sentinel. It returns nil if err is nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Invariant wraps a rejection reason as an ErrInvariant.
func Invariant(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvariant)
}

// FatalConfig wraps a startup configuration failure as ErrFatalConfig,
// preserving err for inspection via errors.Is and errors.As.
func FatalConfig(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", context, ErrFatalConfig, err)
}
