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

package pkcs11

import (
	"fmt"

	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

// Config contains configuration for the PKCS#11 keystore.
type Config struct {
	// Library is the path to the PKCS#11 module, e.g. libsofthsm2.so.
	Library string

	// TokenLabel selects the token. Exactly one of TokenLabel and Slot is required.
	TokenLabel string

	// Slot selects the token by slot number.
	Slot *int

	// PIN is the user PIN.
	PIN string

	// LabelPrefix is prepended to the CKA_LABEL of generated keys.
	LabelPrefix string

	// Logger receives generation and failure events. Defaults to discard.
	Logger *logging.Logger
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.Library == "" {
		return fmt.Errorf("%w: library path is required", ErrInvalidConfig)
	}
	if c.TokenLabel == "" && c.Slot == nil {
		return fmt.Errorf("%w: token label or slot is required", ErrInvalidConfig)
	}
	if c.TokenLabel != "" && c.Slot != nil {
		return fmt.Errorf("%w: token label and slot are mutually exclusive", ErrInvalidConfig)
	}
	if c.PIN == "" {
		return fmt.Errorf("%w: PIN is required", ErrInvalidConfig)
	}
	if c.LabelPrefix == "" {
		c.LabelPrefix = "signingkey"
	}
	return nil
}
