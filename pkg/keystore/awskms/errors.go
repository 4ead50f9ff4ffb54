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

package awskms

import "errors"

var (
	// ErrInvalidConfig is returned for incomplete AWS configuration.
	ErrInvalidConfig = errors.New("awskms: invalid configuration")

	// ErrUnexpectedResponse is returned when KMS answers without the fields
	// a P-256 signing key requires.
	ErrUnexpectedResponse = errors.New("awskms: unexpected response")
)
