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

package signingkey

import (
	"fmt"

	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

// Option configures a SigningKey at construction.
type Option func(*SigningKey)

// WithSecureEnclave selects the enclave path for generation and signing.
func WithSecureEnclave(useSecureEnclave bool) Option {
	return func(k *SigningKey) {
		k.useSecureEnclave = useSecureEnclave
	}
}

// WithLogger sets the logger used for state transitions and keystore failures.
func WithLogger(logger *logging.Logger) Option {
	return func(k *SigningKey) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// New creates an uninitialized SigningKey backed by ks. No keystore call is
// made until Generate.
//
// Example usage:
//
//	key, err := signingkey.New(ks, signingkey.WithSecureEnclave(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
func New(ks Keystore, opts ...Option) (*SigningKey, error) {
	if ks == nil {
		return nil, fmt.Errorf("%w: keystore is required", ErrInvalidArgument)
	}

	k := &SigningKey{
		keystore: ks,
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = logging.DefaultLogger()
	}
	return k, nil
}

// NewFromValue creates a SigningKey from a dynamically typed enclave flag, as
// read from configuration or another untyped boundary. v may be nil (the
// default, standard storage), a bool or a *bool. Any other type fails with
// ErrInvalidArgument instead of being coerced.
func NewFromValue(ks Keystore, v any, opts ...Option) (*SigningKey, error) {
	var useSecureEnclave bool
	switch b := v.(type) {
	case nil:
	case bool:
		useSecureEnclave = b
	case *bool:
		if b != nil {
			useSecureEnclave = *b
		}
	default:
		return nil, fmt.Errorf("%w: secure enclave flag must be a boolean, got %T", ErrInvalidArgument, v)
	}
	return New(ks, append(opts, WithSecureEnclave(useSecureEnclave))...)
}
