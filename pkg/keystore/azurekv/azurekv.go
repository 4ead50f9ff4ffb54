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

// Package azurekv implements a standard-path keystore provider backed by
// Azure Key Vault. Keys are EC (or EC-HSM) P-256 keys restricted to the
// sign and verify operations, and the handle is the Key Vault key name.
package azurekv

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "azurekv"

const keyNamePrefix = "sigkey-"

// rawSignatureSize is the length of an ES256 result: R || S, 32 bytes each.
const rawSignatureSize = 64

// KeyVaultClient defines the subset of the Key Vault keys API used by the
// keystore. *azkeys.Client satisfies it.
type KeyVaultClient interface {
	CreateKey(ctx context.Context, name string, params azkeys.CreateKeyParameters, options *azkeys.CreateKeyOptions) (azkeys.CreateKeyResponse, error)
	GetKey(ctx context.Context, name, version string, options *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error)
	Sign(ctx context.Context, name, version string, params azkeys.SignParameters, options *azkeys.SignOptions) (azkeys.SignResponse, error)
	DeleteKey(ctx context.Context, name string, options *azkeys.DeleteKeyOptions) (azkeys.DeleteKeyResponse, error)
}

var _ KeyVaultClient = (*azkeys.Client)(nil)

// Keystore signs with P-256 keys held in Azure Key Vault.
//
// Thread-safe: Yes.
type Keystore struct {
	config *Config
	client KeyVaultClient
	logger *logging.Logger
	closed bool
	mu     sync.RWMutex
}

var _ keystore.Provider = (*Keystore)(nil)

// NewKeystore creates a keystore for the configured vault. Service
// principal credentials are used when all three are set, otherwise
// DefaultAzureCredential (managed identity, Azure CLI, environment).
//
// Example usage:
//
//	ks, err := azurekv.NewKeystore(&azurekv.Config{
//	    VaultURL: "https://my-vault.vault.azure.net/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
func NewKeystore(config *Config) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	var client *azkeys.Client
	if config.HasServicePrincipal() {
		cred, err := azidentity.NewClientSecretCredential(
			config.TenantID,
			config.ClientID,
			config.ClientSecret,
			&azidentity.ClientSecretCredentialOptions{
				AdditionallyAllowedTenants: []string{"*"},
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create client secret credential: %w", err)
		}
		client, err = azkeys.NewClient(config.VaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			AdditionallyAllowedTenants: []string{"*"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		client, err = azkeys.NewClient(config.VaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
	}
	return newKeystore(config, client), nil
}

// NewKeystoreWithClient creates a keystore with a caller supplied client.
func NewKeystoreWithClient(config *Config, client KeyVaultClient) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrInvalidConfig)
	}
	return newKeystore(config, client), nil
}

func newKeystore(config *Config, client KeyVaultClient) *Keystore {
	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Keystore{
		config: config,
		client: client,
		logger: logger,
	}
}

// Name implements keystore.Provider.
func (k *Keystore) Name() string {
	return ProviderName
}

// Enclave implements keystore.Provider. Managed HSM keys are remote, not a
// local enclave.
func (k *Keystore) Enclave() bool {
	return false
}

// GenerateKeyPair creates a P-256 key limited to sign and verify.
// useEnclave must be false.
func (k *Keystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	if err := keystore.CheckRoute(false, useEnclave); err != nil {
		return "", err
	}
	if err := k.checkOpen(); err != nil {
		return "", err
	}

	kty := azkeys.KeyTypeEC
	if k.config.HSM {
		kty = azkeys.KeyTypeECHSM
	}

	name := keyNamePrefix + uuid.New().String()
	resp, err := k.client.CreateKey(ctx, name, azkeys.CreateKeyParameters{
		Kty:   to.Ptr(kty),
		Curve: to.Ptr(azkeys.CurveNameP256),
		KeyOps: []*azkeys.KeyOperation{
			to.Ptr(azkeys.KeyOperationSign),
			to.Ptr(azkeys.KeyOperationVerify),
		},
		Tags: map[string]*string{
			"managed-by": to.Ptr("go-signingkey"),
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("azurekv: create key failed: %w", err)
	}
	if resp.Key == nil || resp.Key.KID == nil {
		return "", fmt.Errorf("%w: CreateKey returned no key", ErrUnexpectedResponse)
	}

	k.logger.Infof("azurekv: created key %s", *resp.Key.KID)
	return signingkey.Handle(name), nil
}

// GetPublicKey reads the JSON Web Key behind h and returns its
// uncompressed point.
func (k *Keystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	if err := k.checkOpen(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}

	resp, err := k.client.GetKey(ctx, h.String(), "", nil)
	if err != nil {
		return nil, fmt.Errorf("azurekv: get key failed: %w", err)
	}
	return jwkToPublicPoint(resp.Key)
}

// SignDigest signs a 32-byte SHA-256 digest with ES256. Key Vault returns
// R || S, which is re-encoded as DER. useEnclave must be false.
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

	resp, err := k.client.Sign(ctx, h.String(), "", azkeys.SignParameters{
		Algorithm: to.Ptr(azkeys.SignatureAlgorithmES256),
		Value:     digest,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("azurekv: sign failed: %w", err)
	}
	if len(resp.Result) != rawSignatureSize {
		return nil, fmt.Errorf("%w: expected %d byte ES256 signature, got %d bytes",
			ErrUnexpectedResponse, rawSignatureSize, len(resp.Result))
	}

	sig, err := encoding.EncodeRawSignature(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return sig, nil
}

// DeleteKey soft-deletes the key behind h. The vault's retention policy
// decides when it is purged.
func (k *Keystore) DeleteKey(ctx context.Context, h signingkey.Handle) error {
	if err := k.checkOpen(); err != nil {
		return err
	}
	if h.IsZero() {
		return fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}
	if _, err := k.client.DeleteKey(ctx, h.String(), nil); err != nil {
		return fmt.Errorf("azurekv: delete key failed: %w", err)
	}
	return nil
}

// Close marks the keystore closed. The Key Vault client holds no
// connections that need releasing.
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

// jwkToPublicPoint converts an EC P-256 JSON Web Key to an uncompressed point.
func jwkToPublicPoint(jwk *azkeys.JSONWebKey) ([]byte, error) {
	if jwk == nil || jwk.Kty == nil {
		return nil, fmt.Errorf("%w: key has no type", ErrUnexpectedResponse)
	}
	switch *jwk.Kty {
	case azkeys.KeyTypeEC, azkeys.KeyTypeECHSM:
	default:
		return nil, fmt.Errorf("%w: key type %s", ErrUnexpectedResponse, *jwk.Kty)
	}
	if jwk.Crv == nil || *jwk.Crv != azkeys.CurveNameP256 {
		return nil, fmt.Errorf("%w: key is not on P-256", ErrUnexpectedResponse)
	}

	point, err := encoding.PublicPointFromCoordinates(jwk.X, jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return point, nil
}
