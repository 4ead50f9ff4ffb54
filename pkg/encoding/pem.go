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

package encoding

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEMTypePublicKey is the PEM block type for SubjectPublicKeyInfo.
const PEMTypePublicKey = "PUBLIC KEY"

// PublicPointToPKIX wraps an uncompressed P-256 point in an ASN.1 DER
// SubjectPublicKeyInfo structure.
//
// Example:
//
//	der, err := encoding.PublicPointToPKIX(point)
func PublicPointToPKIX(point []byte) ([]byte, error) {
	pub, err := ParsePublicPoint(point)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKIX public key: %w", err)
	}
	return der, nil
}

// PKIXToPublicPoint extracts the uncompressed point from a DER encoded
// SubjectPublicKeyInfo. Only P-256 ECDSA keys are accepted.
func PKIXToPublicPoint(der []byte) ([]byte, error) {
	if len(der) == 0 {
		return nil, ErrInvalidData
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKIX public key: %w", err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an ECDSA key", ErrInvalidPublicKey, pub)
	}
	return MarshalPublicPoint(ecPub)
}

// EncodePublicPointPEM wraps an uncompressed point in a "PUBLIC KEY" PEM block,
// the form accepted by OpenSSL and most verification libraries.
//
// Example:
//
//	pemData, err := encoding.EncodePublicPointPEM(point)
func EncodePublicPointPEM(point []byte) ([]byte, error) {
	der, err := PublicPointToPKIX(point)
	if err != nil {
		return nil, err
	}

	block := &pem.Block{
		Type:  PEMTypePublicKey,
		Bytes: der,
	}

	var buf bytes.Buffer
	if err := pem.Encode(&buf, block); err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePublicKeyPEM decodes a "PUBLIC KEY" PEM block holding a P-256 key.
func DecodePublicKeyPEM(data []byte) (*ecdsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != PEMTypePublicKey {
		return nil, ErrInvalidPEMEncoding
	}

	point, err := PKIXToPublicPoint(block.Bytes)
	if err != nil {
		return nil, err
	}
	return ParsePublicPoint(point)
}
