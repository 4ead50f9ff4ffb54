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

// Package pkcs11 implements an enclave-path keystore provider on a PKCS#11
// token or HSM. Key pairs are generated on the token with CKA_SENSITIVE set
// and CKA_EXTRACTABLE cleared, so the private key never leaves the device.
// Keys persist on the token; a handle is the hex CKA_ID of the pair.
package pkcs11

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ThalesGroup/crypto11"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "pkcs11"

// Keystore is a PKCS#11 backed keystore provider.
//
// Thread-safe: Yes. crypto11 pools sessions internally; the signer cache is
// guarded by a read-write mutex.
type Keystore struct {
	ctx         *crypto11.Context
	labelPrefix string
	logger      *logging.Logger

	mu      sync.RWMutex
	signers map[signingkey.Handle]crypto11.Signer
	closed  bool
}

// NewKeystore logs in to the configured token.
//
// Example usage:
//
//	ks, err := pkcs11.NewKeystore(&pkcs11.Config{
//	    Library:    "/usr/lib/softhsm/libsofthsm2.so",
//	    TokenLabel: "signing",
//	    PIN:        "1234",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
func NewKeystore(config *Config) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	ctx, err := crypto11.Configure(&crypto11.Config{
		Path:       config.Library,
		TokenLabel: config.TokenLabel,
		SlotNumber: config.Slot,
		Pin:        config.PIN,
	})
	if err != nil {
		err = classify("configure", err)
		logger.Error(err)
		return nil, err
	}
	logger.Info("opened PKCS#11 token", "library", config.Library, "token", config.TokenLabel)

	return &Keystore{
		ctx:         ctx,
		labelPrefix: config.LabelPrefix,
		logger:      logger,
		signers:     make(map[signingkey.Handle]crypto11.Signer),
	}, nil
}

// Name implements keystore.Provider.
func (k *Keystore) Name() string {
	return ProviderName
}

// Enclave implements keystore.Provider.
func (k *Keystore) Enclave() bool {
	return true
}

// GenerateKeyPair generates a non-extractable P-256 key pair on the token.
// useEnclave must be true.
func (k *Keystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	if err := keystore.CheckRoute(true, useEnclave); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return "", keystore.ErrClosed
	}

	id := uuid.New()
	label := []byte(k.labelPrefix + "-" + id.String())
	signer, err := k.ctx.GenerateECDSAKeyPairWithLabel(id[:], label, signingkey.Curve())
	if err != nil {
		err = classify("generate key pair", err)
		k.logger.Error(err)
		return "", err
	}

	h := signingkey.Handle(hex.EncodeToString(id[:]))
	k.signers[h] = signer
	k.logger.Debugf("pkcs11: generated key %s", label)
	return h, nil
}

// GetPublicKey returns the uncompressed public point of the key behind h.
func (k *Keystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	signer, err := k.signer(h)
	if err != nil {
		return nil, err
	}
	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("pkcs11: key %s is not an ECDSA key", h)
	}
	return encoding.MarshalPublicPoint(pub)
}

// SignDigest signs a 32-byte digest on the token and returns an ASN.1 DER
// signature. useEnclave must be true.
func (k *Keystore) SignDigest(ctx context.Context, h signingkey.Handle, digest []byte, useEnclave bool) ([]byte, error) {
	if err := keystore.CheckRoute(true, useEnclave); err != nil {
		return nil, err
	}
	if err := keystore.ValidateDigest(digest); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signer, err := k.signer(h)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(rand.Reader, digest, crypto.SHA256)
	if err != nil {
		err = classify("sign", err)
		k.logger.Error(err)
		return nil, err
	}
	return sig, nil
}

// DeleteKey destroys the key pair behind h on the token.
func (k *Keystore) DeleteKey(h signingkey.Handle) error {
	signer, err := k.signer(h)
	if err != nil {
		return err
	}
	if err := signer.Delete(); err != nil {
		return classify("delete", err)
	}

	k.mu.Lock()
	delete(k.signers, h)
	k.mu.Unlock()
	return nil
}

// Close logs out and releases the PKCS#11 context. Keys remain on the token.
func (k *Keystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	k.signers = nil
	if err := k.ctx.Close(); err != nil {
		return classify("close", err)
	}
	return nil
}

// signer returns the cached signer for h, looking it up on the token by
// CKA_ID when it was generated by an earlier process.
func (k *Keystore) signer(h signingkey.Handle) (crypto11.Signer, error) {
	k.mu.RLock()
	if k.closed {
		k.mu.RUnlock()
		return nil, keystore.ErrClosed
	}
	signer, ok := k.signers[h]
	k.mu.RUnlock()
	if ok {
		return signer, nil
	}

	id, err := hex.DecodeString(string(h))
	if err != nil || len(id) != len(uuid.UUID{}) {
		return nil, fmt.Errorf("%w: %q", keystore.ErrUnknownHandle, string(h))
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, keystore.ErrClosed
	}

	found, err := k.ctx.FindKeyPair(id, nil)
	if err != nil {
		return nil, classify("find key pair", err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", keystore.ErrUnknownHandle, h)
	}
	k.signers[h] = found
	return found, nil
}

// Verify interface compliance at compile time.
var _ keystore.Provider = (*Keystore)(nil)
