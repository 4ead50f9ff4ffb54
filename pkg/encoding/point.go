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

// Package encoding converts P-256 public keys and ECDSA signatures between the
// raw forms produced by keystores and the standard envelopes (SPKI DER, PEM,
// ASN.1 DER signatures) expected by verification libraries.
package encoding

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
)

// PublicPointSize is the length of an uncompressed P-256 point.
const PublicPointSize = 65

// coordinateSize is the byte length of a P-256 field element.
const coordinateSize = 32

// ParsePublicPoint parses an uncompressed P-256 point (0x04 || X || Y) and
// checks that it lies on the curve.
func ParsePublicPoint(point []byte) (*ecdsa.PublicKey, error) {
	if len(point) != PublicPointSize || point[0] != 0x04 {
		return nil, fmt.Errorf("%w: expected %d byte uncompressed point, got %d bytes",
			ErrInvalidPublicKey, PublicPointSize, len(point))
	}
	pub, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), point)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// MarshalPublicPoint encodes a P-256 public key as an uncompressed point.
func MarshalPublicPoint(pub *ecdsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, ErrInvalidPublicKey
	}
	if pub.Curve != elliptic.P256() {
		return nil, ErrUnsupportedCurve
	}
	point, err := pub.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return point, nil
}

// PublicPointFromCoordinates builds an uncompressed point from big-endian X and
// Y coordinates, left-padding each to 32 bytes. TPMs return coordinates with
// leading zeros stripped.
func PublicPointFromCoordinates(x, y []byte) ([]byte, error) {
	if len(x) == 0 || len(y) == 0 || len(x) > coordinateSize || len(y) > coordinateSize {
		return nil, fmt.Errorf("%w: invalid coordinate length", ErrInvalidPublicKey)
	}
	point := make([]byte, PublicPointSize)
	point[0] = 0x04
	copy(point[1+coordinateSize-len(x):1+coordinateSize], x)
	copy(point[PublicPointSize-len(y):], y)

	// Validate the result is on the curve.
	if _, err := ParsePublicPoint(point); err != nil {
		return nil, err
	}
	return point, nil
}
