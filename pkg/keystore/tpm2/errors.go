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

package tpm2

import "errors"

var (
	// ErrNoTransport is returned when neither a device, a simulator nor a
	// custom transport is configured.
	ErrNoTransport = errors.New("tpm2: no TPM device or simulator configured")

	// ErrOpeningDevice is returned when the TPM device cannot be opened.
	ErrOpeningDevice = errors.New("tpm2: failed to open TPM device")

	// ErrInvalidSimulatorType is returned for simulator types other than
	// "embedded" and "swtpm".
	ErrInvalidSimulatorType = errors.New("tpm2: invalid simulator type")

	// ErrKeyMismatch is returned when a key re-derived from the owner
	// hierarchy no longer matches the public key recorded at generation,
	// typically because the TPM was cleared.
	ErrKeyMismatch = errors.New("tpm2: re-derived key does not match recorded public key")

	// ErrCloseTransport wraps failures closing the TPM transport.
	ErrCloseTransport = errors.New("tpm2: failed to close transport")
)
