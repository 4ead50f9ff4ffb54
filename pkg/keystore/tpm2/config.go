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

package tpm2

import (
	"fmt"

	"github.com/google/go-tpm/tpm2/transport"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

const (
	// DefaultDevice is the kernel resource manager device.
	DefaultDevice = "/dev/tpmrm0"

	// SimulatorEmbedded runs the go-tpm-tools simulator in process.
	SimulatorEmbedded = "embedded"

	// SimulatorSWTPM connects to an swtpm instance over TCP.
	SimulatorSWTPM = "swtpm"

	defaultSWTPMHost = "localhost"
	defaultSWTPMPort = 2321
)

// Config contains configuration for the TPM 2.0 keystore.
type Config struct {
	// Device is the TPM character device or, when it ends in ".sock",
	// a Unix domain socket exposed by swtpm.
	Device string

	// UseSimulator selects a software TPM instead of Device.
	UseSimulator bool

	// SimulatorType is SimulatorEmbedded (default) or SimulatorSWTPM.
	SimulatorType string

	// SimulatorHost and SimulatorPort locate swtpm. The platform port is
	// SimulatorPort+1.
	SimulatorHost string
	SimulatorPort int

	// OwnerAuth is the owner hierarchy password. Empty on most systems.
	OwnerAuth []byte

	// Transport overrides every other connection setting. Used in tests.
	Transport transport.TPMCloser

	// Logger receives device and failure events. Defaults to discard.
	Logger *logging.Logger
}

// Validate checks if the Config is valid and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Transport != nil {
		return nil
	}
	if c.UseSimulator {
		if c.SimulatorType == "" {
			c.SimulatorType = SimulatorEmbedded
		}
		switch c.SimulatorType {
		case SimulatorEmbedded:
		case SimulatorSWTPM:
			if c.SimulatorHost == "" {
				c.SimulatorHost = defaultSWTPMHost
			}
			if c.SimulatorPort == 0 {
				c.SimulatorPort = defaultSWTPMPort
			}
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSimulatorType, c.SimulatorType)
		}
		return nil
	}
	if c.Device == "" {
		return ErrNoTransport
	}
	return nil
}
