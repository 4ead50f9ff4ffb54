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

package mocks

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// ErrHandleNotFound is returned by the default behavior for unknown handles.
var ErrHandleNotFound = errors.New("mocks: handle not found")

// MockKeystore is an in-memory signingkey.Keystore for tests that do not
// need secure hardware. By default it generates real P-256 keys so that
// signatures verify; every operation can be overridden through the Func
// fields.
type MockKeystore struct {
	mu sync.Mutex

	keys map[signingkey.Handle]*ecdsa.PrivateKey
	next int

	// Configurable behavior
	GenerateKeyPairFunc func(ctx context.Context, useEnclave bool) (signingkey.Handle, error)
	GetPublicKeyFunc    func(ctx context.Context, h signingkey.Handle) ([]byte, error)
	SignDigestFunc      func(ctx context.Context, h signingkey.Handle, digest []byte, useEnclave bool) ([]byte, error)

	// Call tracking
	GenerateKeyPairCalls []bool
	GetPublicKeyCalls    []signingkey.Handle
	SignDigestCalls      []signingkey.Handle
	SignDigestEnclave    []bool
}

// NewMockKeystore creates a MockKeystore with default behavior.
func NewMockKeystore() *MockKeystore {
	return &MockKeystore{
		keys: make(map[signingkey.Handle]*ecdsa.PrivateKey),
	}
}

// GenerateKeyPair records the call and creates a new P-256 key.
func (m *MockKeystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	m.mu.Lock()
	m.GenerateKeyPairCalls = append(m.GenerateKeyPairCalls, useEnclave)
	fn := m.GenerateKeyPairFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, useEnclave)
	}

	key, err := ecdsa.GenerateKey(signingkey.Curve(), rand.Reader)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	h := signingkey.Handle(fmt.Sprintf("mock-%d", m.next))
	m.keys[h] = key
	return h, nil
}

// GetPublicKey records the call and returns the uncompressed public point.
func (m *MockKeystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	m.mu.Lock()
	m.GetPublicKeyCalls = append(m.GetPublicKeyCalls, h)
	fn := m.GetPublicKeyFunc
	key, ok := m.keys[h]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, h)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandleNotFound, h)
	}
	return key.PublicKey.Bytes()
}

// SignDigest records the call and signs with the in-memory key.
func (m *MockKeystore) SignDigest(ctx context.Context, h signingkey.Handle, digest []byte, useEnclave bool) ([]byte, error) {
	m.mu.Lock()
	m.SignDigestCalls = append(m.SignDigestCalls, h)
	m.SignDigestEnclave = append(m.SignDigestEnclave, useEnclave)
	fn := m.SignDigestFunc
	key, ok := m.keys[h]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, h, digest, useEnclave)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandleNotFound, h)
	}
	return ecdsa.SignASN1(rand.Reader, key, digest)
}

// Calls returns the number of keystore calls made so far.
func (m *MockKeystore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateKeyPairCalls) + len(m.GetPublicKeyCalls) + len(m.SignDigestCalls)
}

// Verify interface compliance at compile time.
var _ signingkey.Keystore = (*MockKeystore)(nil)
