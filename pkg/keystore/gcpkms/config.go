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

package gcpkms

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

const (
	// ProtectionSoftware keeps key material in Cloud KMS software keys.
	ProtectionSoftware = "software"

	// ProtectionHSM keeps key material in Cloud HSM.
	ProtectionHSM = "hsm"

	// DefaultPollInterval is how often a new key version is polled while
	// it is pending generation.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultEnableTimeout bounds the wait for a new key version.
	DefaultEnableTimeout = 30 * time.Second
)

// Config contains configuration for the Cloud KMS keystore.
type Config struct {
	// ProjectID is the GCP project ID where the key ring lives.
	// Required.
	ProjectID string

	// LocationID is the key ring location.
	// Examples: "us-east1", "global"
	// Required.
	LocationID string

	// KeyRingID is the key ring that new keys are created in.
	// Required.
	KeyRingID string

	// CredentialsFile is the path to a service account JSON key file.
	// Optional. Application Default Credentials are used when empty.
	CredentialsFile string

	// CredentialsJSON contains the service account JSON key content.
	// Takes precedence over CredentialsFile.
	CredentialsJSON []byte

	// Endpoint is a custom KMS API endpoint, e.g. an emulator.
	Endpoint string

	// ProtectionLevel is ProtectionSoftware (default) or ProtectionHSM.
	ProtectionLevel string

	// PollInterval and EnableTimeout control the wait for a new key
	// version to leave PENDING_GENERATION.
	PollInterval  time.Duration
	EnableTimeout time.Duration

	// Logger receives generation and failure events. Defaults to discard.
	Logger *logging.Logger
}

// Validate checks if the Config is valid and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.ProjectID == "" {
		return fmt.Errorf("%w: project ID is required", ErrInvalidConfig)
	}
	if c.LocationID == "" {
		return fmt.Errorf("%w: location ID is required", ErrInvalidConfig)
	}
	if c.KeyRingID == "" {
		return fmt.Errorf("%w: key ring ID is required", ErrInvalidConfig)
	}

	if c.CredentialsFile != "" && len(c.CredentialsJSON) == 0 {
		if _, err := os.Stat(c.CredentialsFile); os.IsNotExist(err) {
			return fmt.Errorf("%w: credentials file not found: %s", ErrInvalidCredentials, c.CredentialsFile)
		}
	}

	switch strings.ToLower(c.ProtectionLevel) {
	case "":
		c.ProtectionLevel = ProtectionSoftware
	case ProtectionSoftware, ProtectionHSM:
		c.ProtectionLevel = strings.ToLower(c.ProtectionLevel)
	default:
		return fmt.Errorf("%w: protection level must be software or hsm, got %q", ErrInvalidConfig, c.ProtectionLevel)
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.EnableTimeout <= 0 {
		c.EnableTimeout = DefaultEnableTimeout
	}
	return nil
}

// KeyRingName returns the fully qualified key ring resource name.
// Format: projects/{project}/locations/{location}/keyRings/{keyRing}
func (c *Config) KeyRingName() string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s",
		c.ProjectID, c.LocationID, c.KeyRingID)
}

// String returns a string representation of the config with credentials masked.
func (c *Config) String() string {
	credsMask := "<not set>"
	if len(c.CredentialsJSON) > 0 {
		credsMask = fmt.Sprintf("<json: %d bytes>", len(c.CredentialsJSON))
	} else if c.CredentialsFile != "" {
		credsMask = maskPath(c.CredentialsFile)
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = "<default>"
	}

	return fmt.Sprintf("GCP KMS Config{Project: %s, Location: %s, KeyRing: %s, Credentials: %s, Endpoint: %s}",
		c.ProjectID, c.LocationID, c.KeyRingID, credsMask, endpoint)
}

// maskPath keeps the first and last path elements.
// Example: /home/user/credentials.json becomes /.../credentials.json
func maskPath(path string) string {
	parts := strings.Split(path, string(os.PathSeparator))
	if len(parts) <= 2 {
		return path
	}
	masked := []string{parts[0]}
	if len(parts) > 3 {
		masked = append(masked, "...")
	}
	masked = append(masked, parts[len(parts)-1])
	return strings.Join(masked, string(os.PathSeparator))
}
