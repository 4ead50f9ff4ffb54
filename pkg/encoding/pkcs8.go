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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// EncodePKCS8 encodes a P-256 private key to ASN.1 DER PKCS#8.
// If a password is provided, the key is encrypted (PBES2, AES-256-CBC).
// If password is nil or empty, the key is encoded without encryption.
//
// Example:
//
//	der, err := encoding.EncodePKCS8(privateKey, []byte("mypassword"))
func EncodePKCS8(privateKey *ecdsa.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, ErrUnsupportedCurve
	}

	if len(password) == 0 {
		der, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
		}
		return der, nil
	}

	der, err := pkcs8.MarshalPrivateKey(privateKey, password, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
	}
	return der, nil
}

// DecodePKCS8 decodes ASN.1 DER PKCS#8 data holding a P-256 private key.
// Encrypted data requires the password used by EncodePKCS8.
func DecodePKCS8(data []byte, password []byte) (*ecdsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	var key any
	var err error
	if len(password) == 0 {
		key, err = x509.ParsePKCS8PrivateKey(data)
	} else {
		key, err = pkcs8.ParsePKCS8PrivateKey(data, password)
	}
	if err != nil {
		if len(password) > 0 && isPasswordError(err) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to parse PKCS#8: %w", err)
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an ECDSA key", ErrInvalidPrivateKey, key)
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, ErrUnsupportedCurve
	}
	return ecKey, nil
}

// isPasswordError checks if an error is related to an incorrect password.
// The pkcs8 package reports bad passwords as decryption or ASN.1 errors.
func isPasswordError(err error) bool {
	msg := err.Error()
	for _, s := range []string{
		"incorrect password",
		"asn1: structure error",
		"tags don't match",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
