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

package vault

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

// DefaultTransitPath is the mount path of the Transit secrets engine.
const DefaultTransitPath = "transit"

// Config contains configuration for the Vault Transit keystore.
type Config struct {
	// Address is the Vault server address (e.g., "http://127.0.0.1:8200")
	Address string `yaml:"address" json:"address"`

	// Token is the Vault authentication token
	Token string `yaml:"token" json:"token"`

	// TransitPath is the path to the Transit secrets engine (default: "transit")
	TransitPath string `yaml:"transit_path,omitempty" json:"transit_path,omitempty"`

	// Namespace is the Vault namespace (Enterprise feature, optional)
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// TLSSkipVerify disables TLS certificate verification (not recommended for production)
	TLSSkipVerify bool `yaml:"tls_skip_verify,omitempty" json:"tls_skip_verify,omitempty"`

	// Logger receives generation events. Defaults to discard.
	Logger *logging.Logger `yaml:"-" json:"-"`
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.Address == "" {
		return fmt.Errorf("%w: vault address is required", ErrInvalidConfig)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: vault token is required", ErrInvalidConfig)
	}
	c.TransitPath = strings.Trim(c.TransitPath, "/")
	if c.TransitPath == "" {
		c.TransitPath = DefaultTransitPath
	}
	return nil
}

// String returns a string representation of the config with the token masked.
func (c *Config) String() string {
	token := "<not set>"
	if c.Token != "" {
		token = "****"
	}
	namespace := c.Namespace
	if namespace == "" {
		namespace = "<root>"
	}
	return fmt.Sprintf("Vault Config{Address: %s, Token: %s, TransitPath: %s, Namespace: %s, TLSSkipVerify: %t}",
		c.Address, token, c.TransitPath, namespace, c.TLSSkipVerify)
}
