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
	"time"

	"github.com/jeremyhahn/go-signingkey/pkg/correlation"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/metrics"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// Instrumented decorates a Provider with structured logging and Prometheus
// metrics. Handles, digests and signatures are logged at debug level only;
// key material never passes through this layer.
type Instrumented struct {
	next   Provider
	logger *logging.Logger
}

// NewInstrumented wraps next. A nil logger discards log output.
func NewInstrumented(next Provider, logger *logging.Logger) *Instrumented {
	if logger == nil {
		logger = logging.Discard()
	}
	metrics.SetBackendHealth(next.Name(), true)
	return &Instrumented{
		next:   next,
		logger: logger.With("provider", next.Name()),
	}
}

// Name returns the wrapped provider's name.
func (i *Instrumented) Name() string { return i.next.Name() }

// Enclave returns the wrapped provider's enclave flag.
func (i *Instrumented) Enclave() bool { return i.next.Enclave() }

// GenerateKeyPair implements signingkey.Keystore.
func (i *Instrumented) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	start := time.Now()
	h, err := i.next.GenerateKeyPair(ctx, useEnclave)
	i.record(ctx, metrics.OpGenerate, start, err)
	if err == nil {
		logger := i.logFor(ctx)
		logger.Info("key pair generated", "enclave", useEnclave)
		logger.Debug("key handle", "handle", string(h))
	}
	return h, err
}

// GetPublicKey implements signingkey.Keystore.
func (i *Instrumented) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	start := time.Now()
	pub, err := i.next.GetPublicKey(ctx, h)
	i.record(ctx, metrics.OpPublicKey, start, err)
	return pub, err
}

// SignDigest implements signingkey.Keystore.
func (i *Instrumented) SignDigest(ctx context.Context, h signingkey.Handle, digest []byte, useEnclave bool) ([]byte, error) {
	start := time.Now()
	sig, err := i.next.SignDigest(ctx, h, digest, useEnclave)
	i.record(ctx, metrics.OpSign, start, err)
	if err == nil {
		i.logFor(ctx).Debug("digest signed", "handle", string(h), "enclave", useEnclave, "signature_len", len(sig))
	}
	return sig, err
}

// Close closes the wrapped provider and marks it unhealthy.
func (i *Instrumented) Close() error {
	metrics.SetBackendHealth(i.next.Name(), false)
	return i.next.Close()
}

func (i *Instrumented) record(ctx context.Context, op string, start time.Time, err error) {
	metrics.RecordOperation(op, i.next.Name(), metrics.Status(err), time.Since(start))
	if err != nil {
		metrics.RecordError(op, i.next.Name(), ErrorType(err))
		i.logFor(ctx).Errorf("keystore: %s failed: %v", op, err)
	}
}

// logFor tags records with the correlation ID carried by ctx, if any.
func (i *Instrumented) logFor(ctx context.Context) *logging.Logger {
	if args := correlation.LogArgs(ctx); args != nil {
		return i.logger.With(args...)
	}
	return i.logger
}

// Verify interface compliance at compile time.
var _ Provider = (*Instrumented)(nil)
