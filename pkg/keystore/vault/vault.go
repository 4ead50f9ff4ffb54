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

// Package vault implements a standard-path keystore provider backed by the
// HashiCorp Vault Transit secrets engine. Keys are ecdsa-p256 transit keys
// and the handle is the transit key name.
package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	vault "github.com/hashicorp/vault/api"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "vault"

const (
	keyNamePrefix  = "sigkey-"
	transitKeyType = "ecdsa-p256"
)

// LogicalClient defines the subset of the Vault logical API used by the
// keystore. *vault.Logical satisfies it.
type LogicalClient interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*vault.Secret, error)
	DeleteWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

var _ LogicalClient = (*vault.Logical)(nil)

// Keystore signs with P-256 keys held in Vault Transit.
//
// Thread-safe: Yes.
type Keystore struct {
	config  *Config
	logical LogicalClient
	logger  *logging.Logger
	closed  bool
	mu      sync.RWMutex
}

var _ keystore.Provider = (*Keystore)(nil)

// NewKeystore creates a keystore connected to the configured Vault server.
//
// Example usage:
//
//	ks, err := vault.NewKeystore(&vault.Config{
//	    Address: "https://vault.example.com:8200",
//	    Token:   os.Getenv("VAULT_TOKEN"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
func NewKeystore(config *Config) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	if config.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultConnection, err)
	}
	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}
	ks := newKeystore(config, client.Logical())
	if config.TLSSkipVerify {
		ks.logger.Warnf("vault: TLS certificate verification is disabled for %s", config.Address)
	}
	return ks, nil
}

// NewKeystoreWithClient creates a keystore with a caller supplied logical client.
func NewKeystoreWithClient(config *Config, logical LogicalClient) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if logical == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrInvalidConfig)
	}
	return newKeystore(config, logical), nil
}

func newKeystore(config *Config, logical LogicalClient) *Keystore {
	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Keystore{
		config:  config,
		logical: logical,
		logger:  logger,
	}
}

// Name implements keystore.Provider.
func (k *Keystore) Name() string {
	return ProviderName
}

// Enclave implements keystore.Provider.
func (k *Keystore) Enclave() bool {
	return false
}

// GenerateKeyPair creates an ecdsa-p256 transit key. useEnclave must be false.
func (k *Keystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	if err := keystore.CheckRoute(false, useEnclave); err != nil {
		return "", err
	}
	if err := k.checkOpen(); err != nil {
		return "", err
	}

	name := keyNamePrefix + uuid.New().String()
	if _, err := k.logical.WriteWithContext(ctx, k.path("keys", name), map[string]interface{}{
		"type":                   transitKeyType,
		"exportable":             false,
		"allow_plaintext_backup": false,
	}); err != nil {
		return "", fmt.Errorf("vault: create key failed: %w", err)
	}

	k.logger.Infof("vault: created transit key %s", name)
	return signingkey.Handle(name), nil
}

// GetPublicKey reads the latest version of the transit key and returns its
// uncompressed point.
func (k *Keystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	if err := k.checkOpen(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}

	secret, err := k.logical.ReadWithContext(ctx, k.path("keys", h.String()))
	if err != nil {
		return nil, fmt.Errorf("vault: read key failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, h)
	}
	if keyType, _ := secret.Data["type"].(string); keyType != transitKeyType {
		return nil, fmt.Errorf("%w: key %s has type %q", ErrInvalidResponse, h, keyType)
	}

	keysMap, ok := secret.Data["keys"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: invalid keys format", ErrInvalidResponse)
	}
	latestVersion, ok := secret.Data["latest_version"]
	if !ok {
		return nil, fmt.Errorf("%w: no latest_version", ErrInvalidResponse)
	}
	keyData, ok := keysMap[fmt.Sprintf("%v", latestVersion)].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: version %v not found", ErrInvalidResponse, latestVersion)
	}
	publicKeyPEM, ok := keyData["public_key"].(string)
	if !ok || publicKeyPEM == "" {
		return nil, fmt.Errorf("%w: no public key in response", ErrInvalidResponse)
	}

	pub, err := encoding.DecodePublicKeyPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return encoding.MarshalPublicPoint(pub)
}

// SignDigest signs a 32-byte SHA-256 digest with the prehashed transit sign
// endpoint. useEnclave must be false.
func (k *Keystore) SignDigest(ctx context.Context, h signingkey.Handle, digest []byte, useEnclave bool) ([]byte, error) {
	if err := keystore.CheckRoute(false, useEnclave); err != nil {
		return nil, err
	}
	if err := keystore.ValidateDigest(digest); err != nil {
		return nil, err
	}
	if err := k.checkOpen(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}

	secret, err := k.logical.WriteWithContext(ctx, k.path("sign", h.String(), "sha2-256"), map[string]interface{}{
		"input":                base64.StdEncoding.EncodeToString(digest),
		"prehashed":            true,
		"marshaling_algorithm": "asn1",
	})
	if err != nil {
		return nil, fmt.Errorf("vault: sign failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: no signature returned", ErrInvalidResponse)
	}
	signature, ok := secret.Data["signature"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid signature format", ErrInvalidResponse)
	}

	der, err := decodeTransitSignature(signature)
	if err != nil {
		return nil, err
	}
	r, s, err := encoding.DecodeSignature(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return encoding.EncodeSignature(r.Bytes(), s.Bytes())
}

// DeleteKey enables deletion on the transit key and deletes it. Transit
// refuses to delete keys unless deletion_allowed is set.
func (k *Keystore) DeleteKey(ctx context.Context, h signingkey.Handle) error {
	if err := k.checkOpen(); err != nil {
		return err
	}
	if h.IsZero() {
		return fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}
	if _, err := k.logical.WriteWithContext(ctx, k.path("keys", h.String(), "config"), map[string]interface{}{
		"deletion_allowed": true,
	}); err != nil {
		return fmt.Errorf("vault: update key config failed: %w", err)
	}
	if _, err := k.logical.DeleteWithContext(ctx, k.path("keys", h.String())); err != nil {
		return fmt.Errorf("vault: delete key failed: %w", err)
	}
	return nil
}

// Close marks the keystore closed.
func (k *Keystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	return nil
}

func (k *Keystore) checkOpen() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return keystore.ErrClosed
	}
	return nil
}

func (k *Keystore) path(elems ...string) string {
	return k.config.TransitPath + "/" + strings.Join(elems, "/")
}

// decodeTransitSignature extracts the signature bytes from the
// "vault:v<N>:<base64>" envelope.
func decodeTransitSignature(signature string) ([]byte, error) {
	parts := strings.SplitN(signature, ":", 3)
	if len(parts) != 3 || parts[0] != "vault" || !strings.HasPrefix(parts[1], "v") {
		return nil, fmt.Errorf("%w: invalid signature format", ErrInvalidResponse)
	}
	der, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode signature: %w", ErrInvalidResponse, err)
	}
	return der, nil
}
