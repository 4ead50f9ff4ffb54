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

package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

var (
	// ErrEnclaveUnavailable is returned by the Router when the enclave path is
	// requested but no enclave provider is configured.
	ErrEnclaveUnavailable = errors.New("keystore: secure enclave is not available")

	// ErrEnclaveNotSupported is returned by software providers asked to
	// generate or sign on the enclave path.
	ErrEnclaveNotSupported = errors.New("keystore: provider does not support the secure enclave")

	// ErrEnclaveRequired is returned by hardware providers asked to act on
	// the standard path.
	ErrEnclaveRequired = errors.New("keystore: provider only supports the secure enclave")

	// ErrRouteMismatch is returned when a handle minted on one path is
	// presented for signing on the other.
	ErrRouteMismatch = errors.New("keystore: handle does not belong to the requested path")

	// ErrUnknownHandle is returned when a handle was not minted by the provider.
	ErrUnknownHandle = errors.New("keystore: unknown key handle")

	// ErrInvalidDigest is returned when a digest is not exactly 32 bytes.
	ErrInvalidDigest = errors.New("keystore: digest must be 32 bytes")

	// ErrClosed is returned when a provider is used after Close.
	ErrClosed = errors.New("keystore: closed")
)

// ValidateDigest checks that digest is a SHA-256 sized digest.
func ValidateDigest(digest []byte) error {
	if len(digest) != signingkey.DigestSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidDigest, len(digest))
	}
	return nil
}

// CheckRoute returns ErrEnclaveNotSupported or ErrEnclaveRequired when a
// provider of the given kind is asked to act on the other path.
func CheckRoute(providerIsEnclave, useEnclave bool) error {
	switch {
	case useEnclave && !providerIsEnclave:
		return ErrEnclaveNotSupported
	case !useEnclave && providerIsEnclave:
		return ErrEnclaveRequired
	}
	return nil
}

// ErrorType classifies err for the errors_total metric.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEnclaveUnavailable):
		return "enclave_unavailable"
	case errors.Is(err, ErrEnclaveNotSupported), errors.Is(err, ErrEnclaveRequired),
		errors.Is(err, ErrRouteMismatch):
		return "route_mismatch"
	case errors.Is(err, ErrUnknownHandle):
		return "unknown_handle"
	case errors.Is(err, ErrInvalidDigest):
		return "invalid_digest"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "provider"
	}
}
