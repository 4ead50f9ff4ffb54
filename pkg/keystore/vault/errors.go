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

package vault

import "errors"

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("vault: invalid configuration")

	// ErrVaultConnection is returned when the Vault client cannot be created.
	ErrVaultConnection = errors.New("vault: connection failed")

	// ErrKeyNotFound is returned when a transit key does not exist.
	ErrKeyNotFound = errors.New("vault: key not found")

	// ErrInvalidResponse is returned when Vault returns an unexpected response.
	ErrInvalidResponse = errors.New("vault: invalid response")
)
