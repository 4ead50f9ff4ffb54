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
	"crypto/elliptic"
)

const (
	// DigestSize is the only digest length accepted by Sign (SHA-256).
	DigestSize = 32

	// PublicKeySize is the length of an uncompressed P-256 point (0x04 || X || Y).
	PublicKeySize = 65
)

// Curve returns the curve used by every key managed by this package.
func Curve() elliptic.Curve {
	return elliptic.P256()
}

// Handle is an opaque reference to a key pair that lives inside a Keystore.
// Only the keystore that minted a Handle can interpret it.
type Handle string

// String returns the handle identifier.
func (h Handle) String() string {
	return string(h)
}

// IsZero reports whether the handle is empty.
func (h Handle) IsZero() bool {
	return h == ""
}

// Keystore is the secure storage / enclave collaborator that generates key
// pairs and performs signing on behalf of a SigningKey. Implementations must
// never expose private key material and must be safe for concurrent use.
//
// Calls may block for as long as the platform requires (including user
// presence prompts); implementations should honour ctx where their transport
// allows it.
type Keystore interface {
	// GenerateKeyPair creates a new P-256 key pair, routed through the enclave
	// when useEnclave is true, and returns a handle to it.
	GenerateKeyPair(ctx context.Context, useEnclave bool) (Handle, error)

	// GetPublicKey returns the uncompressed public point of the key pair.
	GetPublicKey(ctx context.Context, h Handle) ([]byte, error)

	// SignDigest signs a 32-byte digest and returns an ASN.1 DER ECDSA signature.
	SignDigest(ctx context.Context, h Handle, digest []byte, useEnclave bool) ([]byte, error)
}
