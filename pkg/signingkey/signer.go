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
	"crypto"
	"crypto/ecdsa"
	"fmt"
	"io"
)

// keySigner adapts a generated SigningKey to crypto.Signer so it can be used
// with crypto/x509, crypto/tls and similar consumers.
type keySigner struct {
	ctx    context.Context
	key    *SigningKey
	public *ecdsa.PublicKey
}

// Signer returns a crypto.Signer bound to ctx. The key must already be
// generated. The rand argument of the returned signer's Sign method is
// ignored; the keystore supplies its own entropy.
func (k *SigningKey) Signer(ctx context.Context) (crypto.Signer, error) {
	pub, err := k.ECDSAPublicKey(ctx)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, fmt.Errorf("%w: key has not been generated", ErrInvalidState)
	}
	return &keySigner{ctx: ctx, key: k, public: pub}, nil
}

// Public implements crypto.Signer.
func (s *keySigner) Public() crypto.PublicKey {
	return s.public
}

// Sign implements crypto.Signer. Only SHA-256 digests are accepted.
func (s *keySigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts == nil || opts.HashFunc() != crypto.SHA256 {
		return nil, fmt.Errorf("%w: only SHA-256 digests are supported", ErrInvalidArgument)
	}
	return s.key.Sign(s.ctx, digest)
}
