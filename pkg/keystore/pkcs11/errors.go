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
	"errors"
	"fmt"

	"github.com/miekg/pkcs11"
)

var (
	// ErrInvalidConfig is returned for incomplete token configuration.
	ErrInvalidConfig = errors.New("pkcs11: invalid configuration")

	// ErrPINIncorrect is returned when the token rejects the user PIN.
	ErrPINIncorrect = errors.New("pkcs11: incorrect PIN")

	// ErrPINLocked is returned when the user PIN is locked.
	ErrPINLocked = errors.New("pkcs11: PIN locked")

	// ErrTokenNotPresent is returned when the configured token is missing.
	ErrTokenNotPresent = errors.New("pkcs11: token not present")

	// ErrDeviceRemoved is returned when the token is removed mid-operation.
	ErrDeviceRemoved = errors.New("pkcs11: device removed")
)

// classify maps well known PKCS#11 return codes onto package sentinels while
// keeping the original error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rv pkcs11.Error
	if errors.As(err, &rv) {
		switch rv {
		case pkcs11.CKR_PIN_INCORRECT, pkcs11.CKR_PIN_INVALID:
			return fmt.Errorf("%w: %s: %w", ErrPINIncorrect, op, err)
		case pkcs11.CKR_PIN_LOCKED:
			return fmt.Errorf("%w: %s: %w", ErrPINLocked, op, err)
		case pkcs11.CKR_TOKEN_NOT_PRESENT, pkcs11.CKR_TOKEN_NOT_RECOGNIZED:
			return fmt.Errorf("%w: %s: %w", ErrTokenNotPresent, op, err)
		case pkcs11.CKR_DEVICE_REMOVED:
			return fmt.Errorf("%w: %s: %w", ErrDeviceRemoved, op, err)
		}
	}
	return fmt.Errorf("pkcs11: %s: %w", op, err)
}
