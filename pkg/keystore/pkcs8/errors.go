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

package pkcs8

import "errors"

var (
	// ErrStorageClosed is returned when attempting to use a closed keystore.
	ErrStorageClosed = errors.New("pkcs8: storage is closed")

	// ErrKeyEncodingFailed is returned when PKCS#8 encoding fails.
	ErrKeyEncodingFailed = errors.New("pkcs8: key encoding failed")

	// ErrKeyDecodingFailed is returned when a stored key cannot be decoded,
	// including when the configured password is wrong.
	ErrKeyDecodingFailed = errors.New("pkcs8: key decoding failed")
)
