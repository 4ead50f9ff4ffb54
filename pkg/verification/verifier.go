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

// Package verification checks signatures produced by a SigningKey using the
// standard hash-then-ECDSA-verify procedure. Nothing here touches a keystore;
// only the public point and the signature are needed.
package verification

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// Verifier validates ASN.1 DER ECDSA signatures against a single P-256
// public key.
type Verifier interface {
	// Verify hashes message with SHA-256 and checks the signature.
	Verify(message, signature []byte) error

	// VerifyDigest checks the signature over a precomputed 32-byte digest.
	VerifyDigest(digest, signature []byte) error

	// PublicKey returns the key signatures are checked against.
	PublicKey() *ecdsa.PublicKey
}

// verify implements Verifier.
type verify struct {
	pub *ecdsa.PublicKey
}

// NewVerifier creates a Verifier from an uncompressed public point as
// returned by SigningKey.PublicKey.
func NewVerifier(point []byte) (Verifier, error) {
	pub, err := encoding.ParsePublicPoint(point)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return &verify{pub: pub}, nil
}

// NewVerifierFromKey creates a Verifier from a parsed public key, e.g. one
// decoded from PEM.
func NewVerifierFromKey(pub *ecdsa.PublicKey) (Verifier, error) {
	if pub == nil || pub.Curve != signingkey.Curve() {
		return nil, ErrInvalidPublicKey
	}
	return &verify{pub: pub}, nil
}

// PublicKey returns the key signatures are checked against.
func (v *verify) PublicKey() *ecdsa.PublicKey {
	return v.pub
}

// Verify hashes message with SHA-256 and checks the signature.
func (v *verify) Verify(message, signature []byte) error {
	digest := sha256.Sum256(message)
	return v.VerifyDigest(digest[:], signature)
}

// VerifyDigest checks the signature over a precomputed 32-byte digest.
func (v *verify) VerifyDigest(digest, signature []byte) error {
	if len(digest) != signingkey.DigestSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidDigest, signingkey.DigestSize, len(digest))
	}
	if !ecdsa.VerifyASN1(v.pub, digest, signature) {
		return ErrSignatureVerification
	}
	return nil
}

// Verify checks signature over SHA-256(message) against point.
func Verify(point, message, signature []byte) error {
	v, err := NewVerifier(point)
	if err != nil {
		return err
	}
	return v.Verify(message, signature)
}

// VerifyDigest checks signature over digest against point.
func VerifyDigest(point, digest, signature []byte) error {
	v, err := NewVerifier(point)
	if err != nil {
		return err
	}
	return v.VerifyDigest(digest, signature)
}
