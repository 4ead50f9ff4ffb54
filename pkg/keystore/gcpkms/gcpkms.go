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

// Package gcpkms implements a standard-path keystore provider backed by
// Google Cloud KMS. Each key is an ASYMMETRIC_SIGN crypto key with a single
// EC_SIGN_P256_SHA256 version, and the handle is the crypto key ID.
package gcpkms

import (
	"context"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/google/uuid"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "gcpkms"

const keyIDPrefix = "sigkey-"

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// KMSClient defines the subset of the Cloud KMS API used by the keystore.
// *kms.KeyManagementClient satisfies it.
type KMSClient interface {
	CreateCryptoKey(ctx context.Context, req *kmspb.CreateCryptoKeyRequest, opts ...gax.CallOption) (*kmspb.CryptoKey, error)
	GetCryptoKeyVersion(ctx context.Context, req *kmspb.GetCryptoKeyVersionRequest, opts ...gax.CallOption) (*kmspb.CryptoKeyVersion, error)
	GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest, opts ...gax.CallOption) (*kmspb.PublicKey, error)
	AsymmetricSign(ctx context.Context, req *kmspb.AsymmetricSignRequest, opts ...gax.CallOption) (*kmspb.AsymmetricSignResponse, error)
	DestroyCryptoKeyVersion(ctx context.Context, req *kmspb.DestroyCryptoKeyVersionRequest, opts ...gax.CallOption) (*kmspb.CryptoKeyVersion, error)
	Close() error
}

var _ KMSClient = (*kms.KeyManagementClient)(nil)

// Keystore signs with P-256 keys held in Cloud KMS.
//
// Thread-safe: Yes. The KMS client is safe for concurrent use and the
// closed flag is guarded by a read-write mutex.
type Keystore struct {
	config *Config
	client KMSClient
	logger *logging.Logger
	closed bool
	mu     sync.RWMutex
}

var _ keystore.Provider = (*Keystore)(nil)

// NewKeystore creates a keystore connected to Cloud KMS using Application
// Default Credentials, or the credentials in config when set.
//
// Example usage:
//
//	ks, err := gcpkms.NewKeystore(ctx, &gcpkms.Config{
//	    ProjectID:  "my-project",
//	    LocationID: "us-east1",
//	    KeyRingID:  "signing",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
func NewKeystore(ctx context.Context, config *Config) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	var opts []option.ClientOption
	if len(config.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(config.CredentialsJSON))
	} else if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	client, err := kms.NewKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS client: %w", err)
	}
	return newKeystore(config, client), nil
}

// NewKeystoreWithClient creates a keystore with a caller supplied client.
func NewKeystoreWithClient(config *Config, client KMSClient) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrInvalidConfig)
	}
	return newKeystore(config, client), nil
}

func newKeystore(config *Config, client KMSClient) *Keystore {
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

// Enclave implements keystore.Provider. Cloud KMS, including its HSM
// protection level, is remote and not a local enclave.
func (k *Keystore) Enclave() bool {
	return false
}

// GenerateKeyPair creates an EC_SIGN_P256_SHA256 crypto key and waits for
// its first version to become ENABLED. useEnclave must be false.
func (k *Keystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	if err := keystore.CheckRoute(false, useEnclave); err != nil {
		return "", err
	}
	if err := k.checkOpen(); err != nil {
		return "", err
	}

	protection := kmspb.ProtectionLevel_SOFTWARE
	if k.config.ProtectionLevel == ProtectionHSM {
		protection = kmspb.ProtectionLevel_HSM
	}

	keyID := keyIDPrefix + uuid.New().String()
	cryptoKey, err := k.client.CreateCryptoKey(ctx, &kmspb.CreateCryptoKeyRequest{
		Parent:      k.config.KeyRingName(),
		CryptoKeyId: keyID,
		CryptoKey: &kmspb.CryptoKey{
			Purpose: kmspb.CryptoKey_ASYMMETRIC_SIGN,
			VersionTemplate: &kmspb.CryptoKeyVersionTemplate{
				Algorithm:       kmspb.CryptoKeyVersion_EC_SIGN_P256_SHA256,
				ProtectionLevel: protection,
			},
			Labels: map[string]string{
				"managed-by": "go-signingkey",
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("gcpkms: create crypto key failed: %w", err)
	}
	if cryptoKey == nil || cryptoKey.GetName() == "" {
		return "", fmt.Errorf("%w: CreateCryptoKey returned no key", ErrUnexpectedResponse)
	}

	if err := k.waitForEnabled(ctx, k.versionName(keyID)); err != nil {
		return "", err
	}

	k.logger.Infof("gcpkms: created key %s", cryptoKey.GetName())
	return signingkey.Handle(keyID), nil
}

// GetPublicKey fetches the PEM public key of the key version and returns
// the uncompressed point.
func (k *Keystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	if err := k.checkOpen(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}

	pub, err := k.client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{
		Name: k.versionName(h.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("gcpkms: get public key failed: %w", err)
	}
	if pub == nil || pub.GetPem() == "" {
		return nil, fmt.Errorf("%w: GetPublicKey returned no key", ErrUnexpectedResponse)
	}
	if alg := pub.GetAlgorithm(); alg != kmspb.CryptoKeyVersion_EC_SIGN_P256_SHA256 {
		return nil, fmt.Errorf("%w: key %s has algorithm %s", ErrUnexpectedResponse, h, alg)
	}
	if crc := pub.GetPemCrc32C(); crc != nil && crc.GetValue() != checksum([]byte(pub.GetPem())) {
		return nil, fmt.Errorf("%w: public key PEM", ErrChecksumMismatch)
	}

	key, err := encoding.DecodePublicKeyPEM([]byte(pub.GetPem()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return encoding.MarshalPublicPoint(key)
}

// SignDigest signs a 32-byte SHA-256 digest. Both directions carry CRC32C
// checksums which are verified before the DER signature is returned.
// useEnclave must be false.
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

	resp, err := k.client.AsymmetricSign(ctx, &kmspb.AsymmetricSignRequest{
		Name: k.versionName(h.String()),
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{Sha256: digest},
		},
		DigestCrc32C: wrapperspb.Int64(checksum(digest)),
	})
	if err != nil {
		return nil, fmt.Errorf("gcpkms: asymmetric sign failed: %w", err)
	}
	if resp == nil || len(resp.GetSignature()) == 0 {
		return nil, fmt.Errorf("%w: AsymmetricSign returned no signature", ErrUnexpectedResponse)
	}
	if !resp.GetVerifiedDigestCrc32C() {
		return nil, fmt.Errorf("%w: request digest was not verified", ErrChecksumMismatch)
	}
	if crc := resp.GetSignatureCrc32C(); crc != nil && crc.GetValue() != checksum(resp.GetSignature()) {
		return nil, fmt.Errorf("%w: signature", ErrChecksumMismatch)
	}

	r, s, err := encoding.DecodeSignature(resp.GetSignature())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return encoding.EncodeSignature(r.Bytes(), s.Bytes())
}

// DeleteKey schedules destruction of the key version behind h. Cloud KMS
// keeps the version in DESTROY_SCHEDULED for the key ring's retention period.
func (k *Keystore) DeleteKey(ctx context.Context, h signingkey.Handle) error {
	if err := k.checkOpen(); err != nil {
		return err
	}
	if h.IsZero() {
		return fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}
	if _, err := k.client.DestroyCryptoKeyVersion(ctx, &kmspb.DestroyCryptoKeyVersionRequest{
		Name: k.versionName(h.String()),
	}); err != nil {
		return fmt.Errorf("gcpkms: destroy key version failed: %w", err)
	}
	return nil
}

// Close closes the underlying KMS client. Close is idempotent.
func (k *Keystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.client.Close()
}

func (k *Keystore) checkOpen() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return keystore.ErrClosed
	}
	return nil
}

// waitForEnabled polls the key version until it leaves PENDING_GENERATION.
func (k *Keystore) waitForEnabled(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, k.config.EnableTimeout)
	defer cancel()

	ticker := time.NewTicker(k.config.PollInterval)
	defer ticker.Stop()

	for {
		version, err := k.client.GetCryptoKeyVersion(ctx, &kmspb.GetCryptoKeyVersionRequest{Name: name})
		if err != nil {
			return fmt.Errorf("gcpkms: get key version failed: %w", err)
		}
		switch version.GetState() {
		case kmspb.CryptoKeyVersion_ENABLED:
			return nil
		case kmspb.CryptoKeyVersion_PENDING_GENERATION:
		default:
			return fmt.Errorf("%w: %s is %s", ErrKeyNotReady, name, version.GetState())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrKeyNotReady, name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// versionName returns the resource name of the first version of keyID.
// Format: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{key}/cryptoKeyVersions/1
func (k *Keystore) versionName(keyID string) string {
	return fmt.Sprintf("%s/cryptoKeys/%s/cryptoKeyVersions/1", k.config.KeyRingName(), keyID)
}

// checksum computes the CRC32C value Cloud KMS uses for integrity checks.
func checksum(data []byte) int64 {
	return int64(crc32.Checksum(data, crc32cTable))
}
