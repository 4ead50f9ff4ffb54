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
	"encoding/asn1"
	"fmt"
	"math/big"
)

// ecdsaSignature is the ASN.1 structure of an ECDSA signature.
type ecdsaSignature struct {
	R, S *big.Int
}

// EncodeSignature encodes big-endian R and S values as an ASN.1 DER
// ECDSA-Sig-Value. Hardware modules (TPM, PKCS#11) return R and S separately.
func EncodeSignature(r, s []byte) ([]byte, error) {
	if len(r) == 0 || len(s) == 0 {
		return nil, fmt.Errorf("%w: empty R or S", ErrInvalidSignature)
	}
	sig := ecdsaSignature{
		R: new(big.Int).SetBytes(r),
		S: new(big.Int).SetBytes(s),
	}
	if sig.R.Sign() == 0 || sig.S.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero R or S", ErrInvalidSignature)
	}
	return asn1.Marshal(sig)
}

// EncodeRawSignature encodes a fixed-width R || S signature (64 bytes for
// P-256) as ASN.1 DER.
func EncodeRawSignature(raw []byte) ([]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: raw signature must be R || S", ErrInvalidSignature)
	}
	half := len(raw) / 2
	return EncodeSignature(raw[:half], raw[half:])
}

// DecodeSignature parses an ASN.1 DER ECDSA signature into R and S.
func DecodeSignature(der []byte) (*big.Int, *big.Int, error) {
	var sig ecdsaSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%w: trailing data", ErrInvalidSignature)
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: R and S must be positive", ErrInvalidSignature)
	}
	return sig.R, sig.S, nil
}
