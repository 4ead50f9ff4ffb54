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

// Package tpm2 implements the enclave-path keystore provider on a TPM 2.0.
//
// Each key is an unrestricted ECC P-256 ECDSA/SHA-256 signing primary under
// the owner hierarchy with FixedTPM, FixedParent and SensitiveDataOrigin set,
// so the private key is generated inside the TPM and can never leave it.
// A random nonce in the template's unique field makes every key distinct.
// Only the nonce and the public point are kept outside the TPM; the key is
// re-derived for each operation and flushed afterwards, so no transient
// object slots are held between calls.
package tpm2

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "tpm2"

const nonceSize = 32

// keyEntry is the public state needed to re-derive a key.
type keyEntry struct {
	nonce []byte
	point []byte
}

// Keystore is a TPM 2.0 backed keystore provider.
//
// Thread-safe: Yes. TPM commands are serialized on the transport.
type Keystore struct {
	tpm       transport.TPMCloser
	ownerAuth []byte
	logger    *logging.Logger

	mu     sync.Mutex
	keys   map[signingkey.Handle]*keyEntry
	closed bool
}

// NewKeystore opens the configured TPM and returns a keystore bound to it.
//
// Example usage:
//
//	ks, err := tpm2.NewKeystore(&tpm2.Config{Device: tpm2.DefaultDevice})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
//
//	key, _ := signingkey.New(router, signingkey.WithSecureEnclave(true))
func NewKeystore(config *Config) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	tpm, err := openTPM(config)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	if config.UseSimulator {
		logger.Info("opened TPM simulator", "type", config.SimulatorType)
	} else if config.Transport == nil {
		logger.Info("opened TPM device", "device", config.Device)
	}

	return &Keystore{
		tpm:       tpm,
		ownerAuth: config.OwnerAuth,
		logger:    logger,
		keys:      make(map[signingkey.Handle]*keyEntry),
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

// GenerateKeyPair creates a new signing key inside the TPM. useEnclave must be true.
func (k *Keystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	if err := keystore.CheckRoute(true, useEnclave); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("tpm2: failed to read nonce: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return "", keystore.ErrClosed
	}

	primary, point, err := k.createPrimary(nonce)
	if err != nil {
		return "", err
	}
	k.flush(primary.ObjectHandle)

	h := signingkey.Handle(uuid.NewString())
	k.keys[h] = &keyEntry{nonce: nonce, point: point}
	k.logger.Debugf("tpm2: created signing key %s", h)
	return h, nil
}

// GetPublicKey returns the public point recorded when the key was created.
func (k *Keystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	entry, err := k.entry(h)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(entry.point), nil
}

// SignDigest signs a 32-byte digest inside the TPM and returns an ASN.1 DER
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

	k.mu.Lock()
	defer k.mu.Unlock()

	entry, err := k.entry(h)
	if err != nil {
		return nil, err
	}

	primary, point, err := k.createPrimary(entry.nonce)
	if err != nil {
		return nil, err
	}
	defer k.flush(primary.ObjectHandle)

	if !bytes.Equal(point, entry.point) {
		return nil, ErrKeyMismatch
	}

	signResponse, err := tpm2.Sign{
		KeyHandle: tpm2.AuthHandle{
			Handle: primary.ObjectHandle,
			Name:   primary.Name,
			Auth:   tpm2.PasswordAuth(nil),
		},
		Digest: tpm2.TPM2BDigest{
			Buffer: digest,
		},
		InScheme: tpm2.TPMTSigScheme{
			Scheme: tpm2.TPMAlgECDSA,
			Details: tpm2.NewTPMUSigScheme(
				tpm2.TPMAlgECDSA,
				&tpm2.TPMSSchemeHash{
					HashAlg: tpm2.TPMAlgSHA256,
				},
			),
		},
		Validation: tpm2.TPMTTKHashCheck{
			Tag: tpm2.TPMSTHashCheck,
		},
	}.Execute(k.tpm)
	if err != nil {
		k.logger.Error(err)
		return nil, fmt.Errorf("tpm2: sign failed: %w", err)
	}

	sig, err := signResponse.Signature.Signature.ECDSA()
	if err != nil {
		return nil, fmt.Errorf("tpm2: unexpected signature type: %w", err)
	}
	return encoding.EncodeSignature(sig.SignatureR.Buffer, sig.SignatureS.Buffer)
}

// DeleteKey forgets the key behind h. The key cannot be re-derived afterwards.
func (k *Keystore) DeleteKey(h signingkey.Handle) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, err := k.entry(h)
	if err != nil {
		return err
	}
	clear(entry.nonce)
	delete(k.keys, h)
	return nil
}

// Close closes the TPM transport. Every handle becomes unusable.
func (k *Keystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	for h, entry := range k.keys {
		clear(entry.nonce)
		delete(k.keys, h)
	}
	if err := k.tpm.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrCloseTransport, err)
	}
	return nil
}

// entry looks up h. Callers must hold k.mu.
func (k *Keystore) entry(h signingkey.Handle) (*keyEntry, error) {
	if k.closed {
		return nil, keystore.ErrClosed
	}
	entry, ok := k.keys[h]
	if !ok {
		return nil, fmt.Errorf("%w: %q", keystore.ErrUnknownHandle, string(h))
	}
	return entry, nil
}

// createPrimary derives the signing key for nonce and returns the loaded
// object with its uncompressed public point. Callers must flush the handle.
func (k *Keystore) createPrimary(nonce []byte) (*tpm2.CreatePrimaryResponse, []byte, error) {
	primary, err := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.AuthHandle{
			Handle: tpm2.TPMRHOwner,
			Auth:   tpm2.PasswordAuth(k.ownerAuth),
		},
		InPublic: tpm2.New2B(signingKeyTemplate(nonce)),
	}.Execute(k.tpm)
	if err != nil {
		k.logger.Error(err)
		return nil, nil, fmt.Errorf("tpm2: create primary failed: %w", err)
	}

	point, err := publicPoint(primary)
	if err != nil {
		k.flush(primary.ObjectHandle)
		return nil, nil, err
	}
	return primary, point, nil
}

// flush unloads a transient object, logging failures.
func (k *Keystore) flush(handle tpm2.TPMHandle) {
	k.logger.Debugf("tpm2: flushing handle: 0x%x", handle)
	_, err := tpm2.FlushContext{FlushHandle: handle}.Execute(k.tpm)
	if err != nil {
		k.logger.Error(err)
	}
}

// signingKeyTemplate returns an unrestricted P-256 ECDSA/SHA-256 signing
// key template whose unique field carries nonce.
func signingKeyTemplate(nonce []byte) tpm2.TPMTPublic {
	return tpm2.TPMTPublic{
		Type:    tpm2.TPMAlgECC,
		NameAlg: tpm2.TPMAlgSHA256,
		ObjectAttributes: tpm2.TPMAObject{
			FixedTPM:            true,
			FixedParent:         true,
			SensitiveDataOrigin: true,
			UserWithAuth:        true,
			SignEncrypt:         true,
		},
		Parameters: tpm2.NewTPMUPublicParms(
			tpm2.TPMAlgECC,
			&tpm2.TPMSECCParms{
				Symmetric: tpm2.TPMTSymDefObject{
					Algorithm: tpm2.TPMAlgNull,
				},
				Scheme: tpm2.TPMTECCScheme{
					Scheme: tpm2.TPMAlgECDSA,
					Details: tpm2.NewTPMUAsymScheme(
						tpm2.TPMAlgECDSA,
						&tpm2.TPMSSigSchemeECDSA{
							HashAlg: tpm2.TPMAlgSHA256,
						},
					),
				},
				CurveID: tpm2.TPMECCNistP256,
				KDF: tpm2.TPMTKDFScheme{
					Scheme: tpm2.TPMAlgNull,
				},
			},
		),
		Unique: tpm2.NewTPMUPublicID(
			tpm2.TPMAlgECC,
			&tpm2.TPMSECCPoint{
				X: tpm2.TPM2BECCParameter{Buffer: nonce},
				Y: tpm2.TPM2BECCParameter{Buffer: make([]byte, nonceSize)},
			},
		),
	}
}

// publicPoint extracts the uncompressed public point from a CreatePrimary response.
func publicPoint(primary *tpm2.CreatePrimaryResponse) ([]byte, error) {
	pub, err := primary.OutPublic.Contents()
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to read public area: %w", err)
	}
	if pub.Type != tpm2.TPMAlgECC {
		return nil, errors.New("tpm2: primary is not an ECC key")
	}
	eccUnique, err := pub.Unique.ECC()
	if err != nil {
		return nil, fmt.Errorf("tpm2: failed to read ECC point: %w", err)
	}
	return encoding.PublicPointFromCoordinates(eccUnique.X.Buffer, eccUnique.Y.Buffer)
}

// Verify interface compliance at compile time.
var _ keystore.Provider = (*Keystore)(nil)
