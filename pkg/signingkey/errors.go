// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-signingkey.
//
// go-signingkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package signingkey

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a caller supplies a missing, malformed,
	// wrong-type or wrong-length argument. It is always detected before any
	// keystore interaction.
	ErrInvalidArgument = errors.New("signingkey: invalid argument")

	// ErrInvalidState is returned when an operation is attempted in a state
	// that forbids it, such as signing before a key has been generated.
	ErrInvalidState = errors.New("signingkey: invalid state")

	// ErrAlreadyGenerated is returned when Generate is called on a key that
	// already owns a key pair. It matches ErrInvalidState.
	ErrAlreadyGenerated = fmt.Errorf("%w: key already generated", ErrInvalidState)

	// ErrKeystore is matched by every *KeystoreError.
	ErrKeystore = errors.New("signingkey: keystore error")

	// ErrInvalidHandle is returned by the core when a keystore reports success
	// but hands back an empty handle.
	ErrInvalidHandle = errors.New("signingkey: keystore returned an empty handle")

	// ErrInvalidPublicKey is returned when a keystore returns public key bytes
	// that are not an uncompressed P-256 point.
	ErrInvalidPublicKey = errors.New("signingkey: keystore returned a malformed public key")

	// ErrEmptySignature is returned when a keystore reports success but
	// produces no signature bytes.
	ErrEmptySignature = errors.New("signingkey: keystore returned an empty signature")
)

// KeystoreError reports a failure of the underlying secure storage or enclave
// subsystem. Err carries the platform reason.
type KeystoreError struct {
	// Op is the core operation that failed: "generate", "public_key" or "sign".
	Op string

	// Enclave reports whether the enclave path was in use.
	Enclave bool

	// Err is the underlying keystore error.
	Err error
}

// Error implements the error interface.
func (e *KeystoreError) Error() string {
	path := "standard"
	if e.Enclave {
		path = "enclave"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (%s)", ErrKeystore, e.Op, path)
	}
	return fmt.Sprintf("%s: %s (%s): %v", ErrKeystore, e.Op, path, e.Err)
}

// Unwrap returns the underlying keystore error.
func (e *KeystoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrKeystore.
func (e *KeystoreError) Is(target error) bool {
	return target == ErrKeystore
}

func newKeystoreError(op string, enclave bool, err error) error {
	return &KeystoreError{Op: op, Enclave: enclave, Err: err}
}
