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

package verification

import "errors"

var (
	// ErrInvalidPublicKey indicates the public key is not a P-256 point.
	ErrInvalidPublicKey = errors.New("verification: invalid public key")

	// ErrInvalidDigest indicates the digest is not a SHA-256 digest.
	ErrInvalidDigest = errors.New("verification: invalid digest")

	// ErrSignatureVerification indicates the signature verification failed.
	ErrSignatureVerification = errors.New("verification: signature verification failed")
)
