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
	"strings"

	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

const (
	standardPrefix = "std:"
	enclavePrefix  = "enc:"
)

// Router implements signingkey.Keystore over one standard provider and an
// optional enclave provider. Handles it returns carry the route they were
// minted on, so a standard handle is never presented to the enclave provider
// and vice versa.
//
// Thread-safe: Yes, providers are required to be safe for concurrent use.
type Router struct {
	standard Provider
	enclave  Provider
}

// NewRouter creates a Router. standard is required; enclave may be nil, in
// which case enclave requests fail with ErrEnclaveUnavailable.
func NewRouter(standard, enclave Provider) (*Router, error) {
	if standard == nil {
		return nil, fmt.Errorf("keystore: standard provider is required")
	}
	if standard.Enclave() {
		return nil, fmt.Errorf("keystore: provider %q cannot serve the standard path", standard.Name())
	}
	if enclave != nil && !enclave.Enclave() {
		return nil, fmt.Errorf("keystore: provider %q cannot serve the enclave path", enclave.Name())
	}
	return &Router{standard: standard, enclave: enclave}, nil
}

// HasEnclave reports whether an enclave provider is configured.
func (r *Router) HasEnclave() bool {
	return r.enclave != nil
}

// GenerateKeyPair generates a key pair on the route selected by useEnclave.
func (r *Router) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	p, prefix, err := r.route(useEnclave)
	if err != nil {
		return "", err
	}
	h, err := p.GenerateKeyPair(ctx, useEnclave)
	if err != nil {
		return "", err
	}
	return signingkey.Handle(prefix + string(h)), nil
}

// GetPublicKey returns the public point for a handle minted by this Router.
func (r *Router) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	p, inner, _, err := r.resolve(h)
	if err != nil {
		return nil, err
	}
	return p.GetPublicKey(ctx, inner)
}

// SignDigest signs digest with the key behind h. useEnclave must match the
// route the handle was minted on.
func (r *Router) SignDigest(ctx context.Context, h signingkey.Handle, digest []byte, useEnclave bool) ([]byte, error) {
	p, inner, enclave, err := r.resolve(h)
	if err != nil {
		return nil, err
	}
	if enclave != useEnclave {
		return nil, ErrRouteMismatch
	}
	return p.SignDigest(ctx, inner, digest, useEnclave)
}

// Close closes both providers and returns their combined error.
func (r *Router) Close() error {
	var errs []error
	if err := r.standard.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", r.standard.Name(), err))
	}
	if r.enclave != nil {
		if err := r.enclave.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.enclave.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) route(useEnclave bool) (Provider, string, error) {
	if !useEnclave {
		return r.standard, standardPrefix, nil
	}
	if r.enclave == nil {
		return nil, "", ErrEnclaveUnavailable
	}
	return r.enclave, enclavePrefix, nil
}

func (r *Router) resolve(h signingkey.Handle) (Provider, signingkey.Handle, bool, error) {
	s := string(h)
	switch {
	case strings.HasPrefix(s, standardPrefix) && len(s) > len(standardPrefix):
		return r.standard, signingkey.Handle(s[len(standardPrefix):]), false, nil
	case strings.HasPrefix(s, enclavePrefix) && len(s) > len(enclavePrefix):
		if r.enclave == nil {
			return nil, "", true, ErrEnclaveUnavailable
		}
		return r.enclave, signingkey.Handle(s[len(enclavePrefix):]), true, nil
	default:
		return nil, "", false, fmt.Errorf("%w: %q", ErrUnknownHandle, s)
	}
}

// Verify interface compliance at compile time.
var _ signingkey.Keystore = (*Router)(nil)
