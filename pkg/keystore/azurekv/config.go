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

package azurekv

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

// Config contains configuration for the Azure Key Vault keystore.
type Config struct {
	// VaultURL is the Azure Key Vault URL.
	// Format: https://{vault-name}.vault.azure.net/
	// Required.
	VaultURL string `yaml:"vault_url" json:"vault_url"`

	// TenantID is the Azure Active Directory tenant ID.
	// Optional - if not provided, DefaultAzureCredential is used.
	TenantID string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`

	// ClientID is the service principal client ID.
	// Optional - if not provided, DefaultAzureCredential is used.
	ClientID string `yaml:"client_id,omitempty" json:"client_id,omitempty"`

	// ClientSecret is the service principal client secret.
	// Optional - if not provided, DefaultAzureCredential is used.
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`

	// HSM creates EC-HSM keys instead of EC keys. Requires a Premium vault
	// or a Managed HSM.
	HSM bool `yaml:"hsm,omitempty" json:"hsm,omitempty"`

	// Logger receives generation events. Defaults to discard.
	Logger *logging.Logger `yaml:"-" json:"-"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.VaultURL == "" {
		return fmt.Errorf("%w: vault URL is required", ErrInvalidConfig)
	}
	if !isValidVaultURL(c.VaultURL) {
		return fmt.Errorf("%w: %s", ErrInvalidVaultURL, c.VaultURL)
	}

	// Service principal credentials are all or nothing.
	hasClientID := c.ClientID != ""
	hasClientSecret := c.ClientSecret != ""
	hasTenantID := c.TenantID != ""
	if hasClientID || hasClientSecret || hasTenantID {
		if !hasClientID || !hasClientSecret || !hasTenantID {
			return fmt.Errorf("%w: tenant_id, client_id, and client_secret must all be provided together", ErrInvalidConfig)
		}
	}
	return nil
}

// HasServicePrincipal reports whether explicit client secret credentials
// are configured.
func (c *Config) HasServicePrincipal() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TenantID != ""
}

// String returns a string representation of the config with credentials masked.
func (c *Config) String() string {
	return fmt.Sprintf("Azure Key Vault Config{VaultURL: %s, TenantID: %s, ClientID: %s, ClientSecret: %s, HSM: %t}",
		c.VaultURL, maskID(c.TenantID), maskID(c.ClientID), maskSecret(c.ClientSecret), c.HSM)
}

func maskID(id string) string {
	switch {
	case id == "":
		return "<not set>"
	case len(id) > 4:
		return "****" + id[len(id)-4:]
	default:
		return "****"
	}
}

func maskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	return "****"
}

// isValidVaultURL accepts https URLs on the public and sovereign Key Vault
// domains, plus localhost for emulators.
func isValidVaultURL(url string) bool {
	if !strings.HasPrefix(url, "https://") {
		return false
	}
	host := strings.TrimPrefix(url, "https://")
	if strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") {
		return true
	}
	for _, domain := range []string{
		".vault.azure.net",
		".vault.azure.cn",
		".vault.usgovcloudapi.net",
		".managedhsm.azure.net",
	} {
		if strings.Contains(host, domain) {
			return true
		}
	}
	return false
}
