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

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore/awskms"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore/azurekv"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore/gcpkms"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore/pkcs11"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore/pkcs8"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore/tpm2"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore/vault"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/metrics"
	"github.com/jeremyhahn/go-signingkey/pkg/storage"
	"github.com/jeremyhahn/go-signingkey/pkg/storage/file"
)

// BuildKeystore opens the configured providers, wraps each in the
// instrumentation decorator and routes them. The caller owns the returned
// Router and must Close it.
func BuildKeystore(ctx context.Context, cfg *Config, logger *logging.Logger) (*keystore.Router, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	standard, err := buildStandard(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var enclave keystore.Provider
	if cfg.Keystore.Enclave != "" {
		enclave, err = buildEnclave(cfg, logger)
		if err != nil {
			return nil, errors.Join(err, standard.Close())
		}
	}

	var enclaveProvider keystore.Provider
	if enclave != nil {
		enclaveProvider = keystore.NewInstrumented(enclave, logger)
	}
	router, err := keystore.NewRouter(keystore.NewInstrumented(standard, logger), enclaveProvider)
	if err != nil {
		closeErr := standard.Close()
		if enclave != nil {
			closeErr = errors.Join(closeErr, enclave.Close())
		}
		return nil, errors.Join(err, closeErr)
	}
	return router, nil
}

func buildStandard(ctx context.Context, cfg *Config, logger *logging.Logger) (keystore.Provider, error) {
	switch cfg.Keystore.Standard {
	case ProviderPKCS8:
		pc := cfg.Keystore.PKCS8
		var backend storage.Backend
		switch pc.Storage {
		case StorageFile:
			fs, err := file.New(pc.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to open key directory: %w", err)
			}
			backend = fs
		default:
			backend = storage.NewMemory()
		}
		var password []byte
		if pc.Password != "" {
			password = []byte(pc.Password)
		}
		return pkcs8.NewKeystore(&pkcs8.Config{
			KeyStorage: backend,
			Password:   password,
			Logger:     logger,
		})

	case ProviderAWSKMS:
		ac := cfg.Keystore.AWSKMS
		return awskms.NewKeystore(ctx, &awskms.Config{
			Region:          ac.Region,
			Endpoint:        ac.Endpoint,
			AccessKeyID:     ac.AccessKeyID,
			SecretAccessKey: ac.SecretAccessKey,
			SessionToken:    ac.SessionToken,
			Logger:          logger,
		})

	case ProviderGCPKMS:
		gc := cfg.Keystore.GCPKMS
		return gcpkms.NewKeystore(ctx, &gcpkms.Config{
			ProjectID:       gc.ProjectID,
			LocationID:      gc.LocationID,
			KeyRingID:       gc.KeyRingID,
			CredentialsFile: gc.CredentialsFile,
			Endpoint:        gc.Endpoint,
			ProtectionLevel: gc.ProtectionLevel,
			Logger:          logger,
		})

	case ProviderAzureKV:
		ac := cfg.Keystore.AzureKV
		return azurekv.NewKeystore(&azurekv.Config{
			VaultURL:     ac.VaultURL,
			TenantID:     ac.TenantID,
			ClientID:     ac.ClientID,
			ClientSecret: ac.ClientSecret,
			HSM:          ac.HSM,
			Logger:       logger,
		})

	case ProviderVault:
		vc := cfg.Keystore.Vault
		return vault.NewKeystore(&vault.Config{
			Address:       vc.Address,
			Token:         vc.Token,
			TransitPath:   vc.TransitPath,
			Namespace:     vc.Namespace,
			TLSSkipVerify: vc.TLSSkipVerify,
			Logger:        logger,
		})
	}
	return nil, fmt.Errorf("invalid standard provider: %q", cfg.Keystore.Standard)
}

func buildEnclave(cfg *Config, logger *logging.Logger) (keystore.Provider, error) {
	switch cfg.Keystore.Enclave {
	case ProviderTPM2:
		tc := cfg.Keystore.TPM2
		var ownerAuth []byte
		if tc.OwnerAuth != "" {
			ownerAuth = []byte(tc.OwnerAuth)
		}
		return tpm2.NewKeystore(&tpm2.Config{
			Device:        tc.Device,
			UseSimulator:  tc.UseSimulator,
			SimulatorType: tc.SimulatorType,
			SimulatorHost: tc.SimulatorHost,
			SimulatorPort: tc.SimulatorPort,
			OwnerAuth:     ownerAuth,
			Logger:        logger,
		})

	case ProviderPKCS11:
		pc := cfg.Keystore.PKCS11
		return pkcs11.NewKeystore(&pkcs11.Config{
			Library:     pc.Library,
			TokenLabel:  pc.TokenLabel,
			Slot:        pc.Slot,
			PIN:         pc.PIN,
			LabelPrefix: pc.LabelPrefix,
			Logger:      logger,
		})
	}
	return nil, fmt.Errorf("invalid enclave provider: %q", cfg.Keystore.Enclave)
}
