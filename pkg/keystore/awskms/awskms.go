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

// Package awskms implements a standard-path keystore provider backed by AWS
// Key Management Service. Keys are ECC_NIST_P256 SIGN_VERIFY customer master
// keys and the handle is the KMS key ID.
package awskms

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	awstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "awskms"

// KMSClient defines the subset of the AWS KMS API used by the keystore.
type KMSClient interface {
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	ScheduleKeyDeletion(ctx context.Context, params *kms.ScheduleKeyDeletionInput, optFns ...func(*kms.Options)) (*kms.ScheduleKeyDeletionOutput, error)
}

// Keystore signs with P-256 keys held in AWS KMS.
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

// NewKeystore creates a keystore that talks to AWS KMS using the default
// credential chain, or the static credentials in config when set.
//
// Example usage:
//
//	ks, err := awskms.NewKeystore(ctx, &awskms.Config{Region: "us-east-1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
func NewKeystore(ctx context.Context, config *Config) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(config.Region))

	if config.AccessKeyID != "" {
		creds := credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*kms.Options)
	if config.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	return newKeystore(config, kms.NewFromConfig(cfg, clientOpts...)), nil
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

// Enclave implements keystore.Provider. KMS is reached over the network and
// is not a local enclave.
func (k *Keystore) Enclave() bool {
	return false
}

// GenerateKeyPair creates an ECC_NIST_P256 signing key in KMS.
// useEnclave must be false.
func (k *Keystore) GenerateKeyPair(ctx context.Context, useEnclave bool) (signingkey.Handle, error) {
	if err := keystore.CheckRoute(false, useEnclave); err != nil {
		return "", err
	}
	if err := k.checkOpen(); err != nil {
		return "", err
	}

	output, err := k.client.CreateKey(ctx, &kms.CreateKeyInput{
		KeySpec:     awstypes.KeySpecEccNistP256,
		KeyUsage:    awstypes.KeyUsageTypeSignVerify,
		Description: aws.String("signingkey P-256 signing key"),
		Tags: []awstypes.Tag{
			{TagKey: aws.String("managed-by"), TagValue: aws.String("go-signingkey")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("awskms: create key failed: %w", err)
	}
	if output == nil || output.KeyMetadata == nil || output.KeyMetadata.KeyId == nil {
		return "", fmt.Errorf("%w: CreateKey returned no key ID", ErrUnexpectedResponse)
	}

	id := aws.ToString(output.KeyMetadata.KeyId)
	k.logger.Infof("awskms: created key %s in %s", id, k.config.Region)
	return signingkey.Handle(id), nil
}

// GetPublicKey fetches the SubjectPublicKeyInfo from KMS and returns the
// uncompressed point.
func (k *Keystore) GetPublicKey(ctx context.Context, h signingkey.Handle) ([]byte, error) {
	if err := k.checkOpen(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}

	output, err := k.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(h.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("awskms: get public key failed: %w", err)
	}
	if output == nil || len(output.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: GetPublicKey returned no key", ErrUnexpectedResponse)
	}
	if output.KeySpec != "" && output.KeySpec != awstypes.KeySpecEccNistP256 {
		return nil, fmt.Errorf("%w: key %s has spec %s", ErrUnexpectedResponse, h, output.KeySpec)
	}
	return encoding.PKIXToPublicPoint(output.PublicKey)
}

// SignDigest signs a 32-byte digest with ECDSA_SHA_256. KMS already returns
// an ASN.1 DER signature. useEnclave must be false.
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

	output, err := k.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(h.String()),
		Message:          digest,
		MessageType:      awstypes.MessageTypeDigest,
		SigningAlgorithm: awstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("awskms: sign failed: %w", err)
	}
	if output == nil || len(output.Signature) == 0 {
		return nil, fmt.Errorf("%w: Sign returned no signature", ErrUnexpectedResponse)
	}

	// Normalise through the shared codec so callers always see canonical DER.
	r, s, err := encoding.DecodeSignature(output.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return encoding.EncodeSignature(r.Bytes(), s.Bytes())
}

// DeleteKey schedules deletion of the key behind h after the configured
// pending window.
func (k *Keystore) DeleteKey(ctx context.Context, h signingkey.Handle) error {
	if err := k.checkOpen(); err != nil {
		return err
	}
	if h.IsZero() {
		return fmt.Errorf("%w: empty handle", keystore.ErrUnknownHandle)
	}
	_, err := k.client.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
		KeyId:               aws.String(h.String()),
		PendingWindowInDays: aws.Int32(k.config.PendingWindowDays),
	})
	if err != nil {
		return fmt.Errorf("awskms: schedule key deletion failed: %w", err)
	}
	return nil
}

// Close marks the keystore closed. The KMS client holds no resources.
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
