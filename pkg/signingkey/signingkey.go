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
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

// State is the lifecycle state of a SigningKey.
type State int

const (
	// StateUninitialized is the state of a newly constructed key.
	StateUninitialized State = iota

	// StateGenerated is entered once, after a successful Generate.
	StateGenerated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateGenerated:
		return "generated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SigningKey is an opaque handle to a keystore-resident ECDSA P-256 key pair.
//
// Thread-safe: Yes. Generate is serialized by a write lock held across the
// keystore call; PublicKey and Sign snapshot the handle under a read lock.
type SigningKey struct {
	keystore         Keystore
	logger           *logging.Logger
	useSecureEnclave bool

	mu     sync.RWMutex
	state  State
	handle Handle
}

// UseSecureEnclave reports whether this key routes through the enclave path.
func (k *SigningKey) UseSecureEnclave() bool {
	return k.useSecureEnclave
}

// State returns the current lifecycle state.
func (k *SigningKey) State() State {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// Generated reports whether the key pair has been generated.
func (k *SigningKey) Generated() bool {
	return k.State() == StateGenerated
}

// Handle returns the keystore handle of the generated key, or the zero
// Handle before Generate. Callers use it to find or delete the key in a
// persistent keystore; it cannot be used to rebind a SigningKey.
func (k *SigningKey) Handle() Handle {
	handle, _ := k.snapshot()
	return handle
}

// Generate creates the key pair inside the keystore. It succeeds at most once
// per SigningKey; later calls return ErrAlreadyGenerated without contacting
// the keystore. On keystore failure the key stays uninitialized and Generate
// may be retried.
func (k *SigningKey) Generate(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state == StateGenerated {
		return ErrAlreadyGenerated
	}

	handle, err := k.keystore.GenerateKeyPair(ctx, k.useSecureEnclave)
	if err != nil {
		k.logger.Errorf("signingkey: generate failed (enclave=%t): %v", k.useSecureEnclave, err)
		return newKeystoreError("generate", k.useSecureEnclave, err)
	}
	if handle.IsZero() {
		return newKeystoreError("generate", k.useSecureEnclave, ErrInvalidHandle)
	}

	k.handle = handle
	k.state = StateGenerated
	k.logger.Debugf("signingkey: key generated (enclave=%t)", k.useSecureEnclave)
	return nil
}

// PublicKey returns the public key as an uncompressed P-256 point
// (0x04 || X || Y, PublicKeySize bytes). Before Generate it returns nil and
// no error.
func (k *SigningKey) PublicKey(ctx context.Context) ([]byte, error) {
	handle, ok := k.snapshot()
	if !ok {
		return nil, nil
	}

	pub, err := k.keystore.GetPublicKey(ctx, handle)
	if err != nil {
		return nil, newKeystoreError("public_key", k.useSecureEnclave, err)
	}
	if _, err := encoding.ParsePublicPoint(pub); err != nil {
		return nil, newKeystoreError("public_key", k.useSecureEnclave,
			fmt.Errorf("%w: %v", ErrInvalidPublicKey, err))
	}
	return pub, nil
}

// ECDSAPublicKey returns the public key parsed as *ecdsa.PublicKey. Before
// Generate it returns nil and no error.
func (k *SigningKey) ECDSAPublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	pub, err := k.PublicKey(ctx)
	if err != nil || pub == nil {
		return nil, err
	}
	return encoding.ParsePublicPoint(pub)
}

// Sign signs a SHA-256 digest and returns an ASN.1 DER encoded ECDSA
// signature. The digest must be exactly DigestSize bytes; this is checked
// before the key state so malformed input is always ErrInvalidArgument.
func (k *SigningKey) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if digest == nil {
		return nil, fmt.Errorf("%w: digest is required", ErrInvalidArgument)
	}
	if len(digest) != DigestSize {
		return nil, fmt.Errorf("%w: digest must be %d bytes, got %d",
			ErrInvalidArgument, DigestSize, len(digest))
	}

	handle, ok := k.snapshot()
	if !ok {
		return nil, fmt.Errorf("%w: key has not been generated", ErrInvalidState)
	}

	sig, err := k.keystore.SignDigest(ctx, handle, digest, k.useSecureEnclave)
	if err != nil {
		k.logger.Errorf("signingkey: sign failed (enclave=%t): %v", k.useSecureEnclave, err)
		return nil, newKeystoreError("sign", k.useSecureEnclave, err)
	}
	if len(sig) == 0 {
		return nil, newKeystoreError("sign", k.useSecureEnclave, ErrEmptySignature)
	}
	return sig, nil
}

// SignValue is Sign for dynamically typed callers. v must be a []byte or a
// [32]byte; anything else, including nil, fails with ErrInvalidArgument.
func (k *SigningKey) SignValue(ctx context.Context, v any) ([]byte, error) {
	switch d := v.(type) {
	case []byte:
		return k.Sign(ctx, d)
	case [DigestSize]byte:
		return k.Sign(ctx, d[:])
	case *[DigestSize]byte:
		if d == nil {
			return nil, fmt.Errorf("%w: digest is required", ErrInvalidArgument)
		}
		return k.Sign(ctx, d[:])
	case nil:
		return nil, fmt.Errorf("%w: digest is required", ErrInvalidArgument)
	default:
		return nil, fmt.Errorf("%w: digest must be a byte slice, got %T", ErrInvalidArgument, v)
	}
}

// snapshot returns the handle if the key has been generated.
func (k *SigningKey) snapshot() (Handle, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.state != StateGenerated {
		return "", false
	}
	return k.handle, true
}
