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

// Package config loads the YAML configuration for the sigkey CLI and turns
// it into a routed keystore.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in the keystore section.
const (
	ProviderPKCS8   = "pkcs8"
	ProviderAWSKMS  = "awskms"
	ProviderGCPKMS  = "gcpkms"
	ProviderAzureKV = "azurekv"
	ProviderVault   = "vault"
	ProviderTPM2    = "tpm2"
	ProviderPKCS11  = "pkcs11"

	StorageMemory = "memory"
	StorageFile   = "file"
)

// Config represents the complete configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	SigningKey SigningKeyConfig `yaml:"signing_key"`
	Keystore   KeystoreConfig   `yaml:"keystore"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SigningKeyConfig holds the settings for the signing key itself
type SigningKeyConfig struct {
	UseSecureEnclave bool `yaml:"use_secure_enclave"`
}

// MetricsConfig controls Prometheus collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// KeystoreConfig selects the provider for each path and carries their settings
type KeystoreConfig struct {
	Standard string         `yaml:"standard"`
	Enclave  string         `yaml:"enclave"`
	PKCS8    *PKCS8Config   `yaml:"pkcs8,omitempty"`
	TPM2     *TPM2Config    `yaml:"tpm2,omitempty"`
	PKCS11   *PKCS11Config  `yaml:"pkcs11,omitempty"`
	AWSKMS   *AWSKMSConfig  `yaml:"awskms,omitempty"`
	GCPKMS   *GCPKMSConfig  `yaml:"gcpkms,omitempty"`
	AzureKV  *AzureKVConfig `yaml:"azurekv,omitempty"`
	Vault    *VaultConfig   `yaml:"vault,omitempty"`
}

// PKCS8Config contains PKCS#8 keystore settings
type PKCS8Config struct {
	Storage  string `yaml:"storage"`
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
}

// TPM2Config contains TPM 2.0 keystore settings
type TPM2Config struct {
	Device        string `yaml:"device"`
	UseSimulator  bool   `yaml:"use_simulator"`
	SimulatorType string `yaml:"simulator_type"`
	SimulatorHost string `yaml:"simulator_host"`
	SimulatorPort int    `yaml:"simulator_port"`
	OwnerAuth     string `yaml:"owner_auth"`
}

// PKCS11Config contains PKCS#11 keystore settings
type PKCS11Config struct {
	Library     string `yaml:"library"`
	TokenLabel  string `yaml:"token_label"`
	Slot        *int   `yaml:"slot,omitempty"`
	PIN         string `yaml:"pin"`
	LabelPrefix string `yaml:"label_prefix"`
}

// AWSKMSConfig contains AWS KMS keystore settings
type AWSKMSConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// GCPKMSConfig contains Google Cloud KMS keystore settings
type GCPKMSConfig struct {
	ProjectID       string `yaml:"project_id"`
	LocationID      string `yaml:"location_id"`
	KeyRingID       string `yaml:"key_ring_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
	ProtectionLevel string `yaml:"protection_level"`
}

// AzureKVConfig contains Azure Key Vault keystore settings
type AzureKVConfig struct {
	VaultURL     string `yaml:"vault_url"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	HSM          bool   `yaml:"hsm"`
}

// VaultConfig contains HashiCorp Vault Transit keystore settings
type VaultConfig struct {
	Address       string `yaml:"address"`
	Token         string `yaml:"token"`
	TransitPath   string `yaml:"transit_path"`
	Namespace     string `yaml:"namespace"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify"`
}

// UnmarshalYAML decodes use_secure_enclave strictly. Only a YAML boolean or
// null is accepted; "yes", 1 and "true" are rejected rather than coerced.
func (s *SigningKeyConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		UseSecureEnclave yaml.Node `yaml:"use_secure_enclave"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	flag := raw.UseSecureEnclave
	if flag.Kind == 0 || flag.ShortTag() == "!!null" {
		s.UseSecureEnclave = false
		return nil
	}
	if flag.Kind != yaml.ScalarNode || flag.ShortTag() != "!!bool" {
		return fmt.Errorf("%w: use_secure_enclave must be a boolean, got %q at line %d",
			signingkey.ErrInvalidArgument, flag.Value, flag.Line)
	}
	return flag.Decode(&s.UseSecureEnclave)
}

// Default returns a configuration that signs with in-memory software keys
// and has no enclave provider.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Keystore: KeystoreConfig{
			Standard: ProviderPKCS8,
			PKCS8: &PKCS8Config{
				Storage: StorageMemory,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. An empty path loads Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) error {
	// Logging
	if level := os.Getenv("SIGKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("SIGKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Signing key
	if enclave := os.Getenv("SIGKEY_USE_SECURE_ENCLAVE"); enclave != "" {
		useEnclave, err := parseStrictBool(enclave)
		if err != nil {
			return fmt.Errorf("%w: SIGKEY_USE_SECURE_ENCLAVE must be true or false, got %q",
				signingkey.ErrInvalidArgument, enclave)
		}
		cfg.SigningKey.UseSecureEnclave = useEnclave
	}

	// Metrics
	if enabled := os.Getenv("SIGKEY_METRICS_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid SIGKEY_METRICS_ENABLED value %q, keeping %t: %v",
				enabled, cfg.Metrics.Enabled, err)
		} else {
			cfg.Metrics.Enabled = v
		}
	}

	// PKCS#8 settings
	if keyDir := os.Getenv("SIGKEY_KEY_DIR"); keyDir != "" {
		if cfg.Keystore.PKCS8 == nil {
			cfg.Keystore.PKCS8 = &PKCS8Config{}
		}
		cfg.Keystore.PKCS8.Storage = StorageFile
		cfg.Keystore.PKCS8.Path = keyDir
	}
	if password := os.Getenv("SIGKEY_KEY_PASSWORD"); password != "" && cfg.Keystore.PKCS8 != nil {
		cfg.Keystore.PKCS8.Password = password
	}

	// TPM2 settings
	if tpmPath := os.Getenv("TPM_DEVICE_PATH"); tpmPath != "" && cfg.Keystore.TPM2 != nil {
		cfg.Keystore.TPM2.Device = tpmPath
	}

	// PKCS#11 settings
	if cfg.Keystore.PKCS11 != nil {
		if pkcs11Lib := os.Getenv("PKCS11_LIBRARY"); pkcs11Lib != "" {
			cfg.Keystore.PKCS11.Library = pkcs11Lib
		}
		if pin := os.Getenv("PKCS11_PIN"); pin != "" {
			cfg.Keystore.PKCS11.PIN = pin
		}
	}

	// AWS KMS settings
	if cfg.Keystore.AWSKMS != nil {
		if region := os.Getenv("AWS_REGION"); region != "" {
			cfg.Keystore.AWSKMS.Region = region
		}
		if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
			cfg.Keystore.AWSKMS.AccessKeyID = accessKey
		}
		if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
			cfg.Keystore.AWSKMS.SecretAccessKey = secretKey
		}
		if token := os.Getenv("AWS_SESSION_TOKEN"); token != "" {
			cfg.Keystore.AWSKMS.SessionToken = token
		}
		if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
			cfg.Keystore.AWSKMS.Endpoint = endpoint
		}
	}

	// GCP KMS settings
	if cfg.Keystore.GCPKMS != nil {
		if project := os.Getenv("GOOGLE_CLOUD_PROJECT"); project != "" {
			cfg.Keystore.GCPKMS.ProjectID = project
		}
		if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
			cfg.Keystore.GCPKMS.CredentialsFile = creds
		}
	}

	// Azure Key Vault settings
	if cfg.Keystore.AzureKV != nil {
		if vaultURL := os.Getenv("AZURE_KEYVAULT_URL"); vaultURL != "" {
			cfg.Keystore.AzureKV.VaultURL = vaultURL
		}
		if tenantID := os.Getenv("AZURE_TENANT_ID"); tenantID != "" {
			cfg.Keystore.AzureKV.TenantID = tenantID
		}
		if clientID := os.Getenv("AZURE_CLIENT_ID"); clientID != "" {
			cfg.Keystore.AzureKV.ClientID = clientID
		}
		if clientSecret := os.Getenv("AZURE_CLIENT_SECRET"); clientSecret != "" {
			cfg.Keystore.AzureKV.ClientSecret = clientSecret
		}
	}

	// Vault settings
	if cfg.Keystore.Vault != nil {
		if addr := os.Getenv("VAULT_ADDR"); addr != "" {
			cfg.Keystore.Vault.Address = addr
		}
		if token := os.Getenv("VAULT_TOKEN"); token != "" {
			cfg.Keystore.Vault.Token = token
		}
		if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
			cfg.Keystore.Vault.Namespace = namespace
		}
	}

	return nil
}

// parseStrictBool accepts only "true" or "false", in any letter case.
func parseStrictBool(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate standard provider
	switch c.Keystore.Standard {
	case ProviderPKCS8:
		if c.Keystore.PKCS8 == nil {
			return fmt.Errorf("pkcs8 settings are required when standard provider is pkcs8")
		}
		switch c.Keystore.PKCS8.Storage {
		case StorageMemory:
		case StorageFile:
			if c.Keystore.PKCS8.Path == "" {
				return fmt.Errorf("pkcs8 path is required for file storage")
			}
		default:
			return fmt.Errorf("invalid pkcs8 storage: %q (must be memory or file)", c.Keystore.PKCS8.Storage)
		}
	case ProviderAWSKMS:
		if c.Keystore.AWSKMS == nil || c.Keystore.AWSKMS.Region == "" {
			return fmt.Errorf("awskms region is required when standard provider is awskms")
		}
	case ProviderGCPKMS:
		gc := c.Keystore.GCPKMS
		if gc == nil || gc.ProjectID == "" || gc.LocationID == "" || gc.KeyRingID == "" {
			return fmt.Errorf("gcpkms project_id, location_id and key_ring_id are required when standard provider is gcpkms")
		}
	case ProviderAzureKV:
		if c.Keystore.AzureKV == nil || c.Keystore.AzureKV.VaultURL == "" {
			return fmt.Errorf("azurekv vault_url is required when standard provider is azurekv")
		}
	case ProviderVault:
		if c.Keystore.Vault == nil || c.Keystore.Vault.Address == "" || c.Keystore.Vault.Token == "" {
			return fmt.Errorf("vault address and token are required when standard provider is vault")
		}
	case "":
		return fmt.Errorf("keystore standard provider must be specified")
	default:
		return fmt.Errorf("invalid standard provider: %q (must be pkcs8, awskms, gcpkms, azurekv or vault)", c.Keystore.Standard)
	}

	// Validate enclave provider
	switch c.Keystore.Enclave {
	case "":
		if c.SigningKey.UseSecureEnclave {
			return fmt.Errorf("%w: use_secure_enclave requires an enclave provider", keystore.ErrEnclaveUnavailable)
		}
	case ProviderTPM2:
		if c.Keystore.TPM2 == nil {
			return fmt.Errorf("tpm2 settings are required when enclave provider is tpm2")
		}
		if !c.Keystore.TPM2.UseSimulator && c.Keystore.TPM2.Device == "" {
			return fmt.Errorf("tpm2 device is required unless use_simulator is set")
		}
	case ProviderPKCS11:
		if c.Keystore.PKCS11 == nil || c.Keystore.PKCS11.Library == "" {
			return fmt.Errorf("pkcs11 library is required when enclave provider is pkcs11")
		}
	default:
		return fmt.Errorf("invalid enclave provider: %q (must be tpm2 or pkcs11)", c.Keystore.Enclave)
	}

	return nil
}
