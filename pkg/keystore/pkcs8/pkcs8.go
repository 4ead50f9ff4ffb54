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

// Package pkcs8 implements the standard-path keystore provider. P-256 keys
// are generated in software, PKCS#8 encoded (optionally password encrypted)
// and persisted in a storage.Backend under a random UUID handle.
package pkcs8

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/jeremyhahn/go-signingkey/pkg/storage"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "pkcs8"

// Keystore stores software P-256 keys as PKCS#8 documents.
//
// Thread-safe: Yes, uses a read-write mutex for concurrent access.
type Keystore struct {
	storage  storage.Backend
	password []byte
	logger   *logging.Logger
	closed   bool
	mu       sync.RWMutex
}

// Name implements keystore.Provider.
func (k *Keystore) Name() string {
	return ProviderName
}

// Enclave implements keystore.Provider. Software keys are never hardware isolated.
func (k *Keystore) Enclave() bool {
	return false
}

// GenerateKeyPair generates a P-256 key, stores it and returns its handle.
// useEnclave must be false.
func (k *Keystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	if err := keystore.CheckRoute(false, useEnclave); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return "", ErrStorageClosed
	}

	privateKey, err := ecdsa.GenerateKey(signingkey.Curve(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("pkcs8: key generation failed: %w", err)
	}

	der, err := encoding.EncodePKCS8(privateKey, k.password)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyEncodingFailed, err)
	}

	id := uuid.NewString()
	if err := storage.CreateKey(k.storage, id, der); err != nil {
		return "", fmt.Errorf("pkcs8: failed to store key: %w", err)
	}

	k.logger.Debugf("pkcs8: generated key %s (encrypted=%t)", id, k.password != nil)
	return signingkey.Handle(id), nil
}

// GetPublicKey returns the uncompressed public point of the key behind h.
func (k *Keystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	privateKey, err := k.load(h)
	if err != nil {
		return nil, err
	}
	return encoding.MarshalPublicPoint(&privateKey.PublicKey)
}

// SignDigest signs a 32-byte digest and returns an ASN.1 DER signature.
// useEnclave must be false.
func (k *Keystore) SignDigest(ctx context.Context, h signingkey.Handle, digest []byte, useEnclave bool) ([]byte, error) {
	if err := keystore.CheckRoute(false, useEnclave); err != nil {
		return nil, err
	}
	if err := keystore.ValidateDigest(digest); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	privateKey, err := k.load(h)
	if err != nil {
		return nil, err
	}
	sig, err := ecdsa.SignASN1(rand.Reader, privateKey, digest)
	if err != nil {
		return nil, fmt.Errorf("pkcs8: signing failed: %w", err)
	}
	return sig, nil
}

// DeleteKey removes the key behind h from storage.
func (k *Keystore) DeleteKey(h signingkey.Handle) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrStorageClosed
	}
	id, err := parseHandle(h)
	if err != nil {
		return err
	}
	if err := storage.DeleteKey(k.storage, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", keystore.ErrUnknownHandle, id)
		}
		return err
	}
	return nil
}

// ListKeys returns the handles of all stored keys.
func (k *Keystore) ListKeys() ([]signingkey.Handle, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return nil, ErrStorageClosed
	}
	ids, err := storage.ListKeys(k.storage)
	if err != nil {
		return nil, err
	}
	handles := make([]signingkey.Handle, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			handles = append(handles, signingkey.Handle(id))
		}
	}
	return handles, nil
}

// Close closes the keystore and its storage backend.
func (k *Keystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	clear(k.password)
	return k.storage.Close()
}

// load reads and decodes the key behind h.
func (k *Keystore) load(h signingkey.Handle) (*ecdsa.PrivateKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return nil, ErrStorageClosed
	}
	id, err := parseHandle(h)
	if err != nil {
		return nil, err
	}

	der, err := storage.GetKey(k.storage, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", keystore.ErrUnknownHandle, id)
		}
		return nil, fmt.Errorf("pkcs8: failed to read key: %w", err)
	}

	privateKey, err := encoding.DecodePKCS8(der, k.password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyDecodingFailed, err)
	}
	return privateKey, nil
}

// parseHandle checks that h is a UUID minted by this provider.
func parseHandle(h signingkey.Handle) (string, error) {
	id, err := uuid.Parse(string(h))
	if err != nil {
		return "", fmt.Errorf("%w: %q", keystore.ErrUnknownHandle, string(h))
	}
	return id.String(), nil
}

// Verify interface compliance at compile time.
var _ keystore.Provider = (*Keystore)(nil)
