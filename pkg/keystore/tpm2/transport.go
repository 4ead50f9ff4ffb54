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
	"strings"

	"github.com/google/go-tpm-tools/simulator"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/go-tpm/tpm2/transport/linuxudstpm"
	"github.com/google/go-tpm/tpm2/transport/tcp"
)

// openTPM opens a connection to the TPM device or simulator based on configuration.
func openTPM(config *Config) (transport.TPMCloser, error) {
	if config.Transport != nil {
		return config.Transport, nil
	}

	if config.UseSimulator {
		switch config.SimulatorType {
		case SimulatorEmbedded:
			sim, err := simulator.Get()
			if err != nil {
				return nil, fmt.Errorf("tpm2: failed to open embedded simulator: %w", err)
			}
			return &simulatorCloser{
				sim:       sim,
				transport: transport.FromReadWriter(sim),
			}, nil

		case SimulatorSWTPM:
			cmdAddr := fmt.Sprintf("%s:%d", config.SimulatorHost, config.SimulatorPort)
			platAddr := fmt.Sprintf("%s:%d", config.SimulatorHost, config.SimulatorPort+1)
			tcpTPM, err := tcp.Open(tcp.Config{
				CommandAddress:  cmdAddr,
				PlatformAddress: platAddr,
			})
			if err != nil {
				return nil, fmt.Errorf("tpm2: failed to connect to SWTPM at %s (platform: %s): %w", cmdAddr, platAddr, err)
			}
			return tcpTPM, nil

		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidSimulatorType, config.SimulatorType)
		}
	}

	if strings.HasSuffix(config.Device, ".sock") {
		t, err := linuxudstpm.Open(config.Device)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOpeningDevice, config.Device, err)
		}
		return t, nil
	}

	t, err := transport.OpenTPM(config.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpeningDevice, config.Device, err)
	}
	return t, nil
}

// simulatorCloser wraps the simulator to provide proper Close() behavior
type simulatorCloser struct {
	sim       *simulator.Simulator
	transport transport.TPM
}

func (sc *simulatorCloser) Send(input []byte) ([]byte, error) {
	return sc.transport.Send(input)
}

func (sc *simulatorCloser) Close() error {
	return sc.sim.Close()
}
