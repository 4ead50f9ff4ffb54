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

package gcpkms

import "errors"

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("gcpkms: invalid configuration")

	// ErrInvalidCredentials is returned when the credentials file cannot be found.
	ErrInvalidCredentials = errors.New("gcpkms: invalid credentials")

	// ErrUnexpectedResponse is returned when Cloud KMS answers without the
	// fields a P-256 signing key requires.
	ErrUnexpectedResponse = errors.New("gcpkms: unexpected response")

	// ErrChecksumMismatch is returned when a CRC32C checksum in a response
	// does not match its payload.
	ErrChecksumMismatch = errors.New("gcpkms: checksum mismatch")

	// ErrKeyNotReady is returned when a new key version never reaches the
	// ENABLED state.
	ErrKeyNotReady = errors.New("gcpkms: key version not enabled")
)
