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

package pkcs8

import (
	"fmt"

	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/storage"
)

// Config contains configuration for the PKCS#8 keystore.
type Config struct {
	// KeyStorage is the underlying storage for key material.
	// This can be file-based, memory-based, or any implementation
	// of the storage.Backend interface.
	KeyStorage storage.Backend

	// Password, when set, encrypts stored keys with PBES2. The same
	// password is required to use them after a restart.
	Password []byte

	// Logger receives generation and failure events. Defaults to discard.
	Logger *logging.Logger
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.KeyStorage == nil {
		return fmt.Errorf("KeyStorage is required")
	}
	return nil
}

// NewKeystore creates a PKCS#8 keystore with the given configuration.
//
// Example usage:
//
//	ks, err := pkcs8.NewKeystore(&pkcs8.Config{
//	    KeyStorage: storage.NewMemory(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Close()
//
//	key, _ := signingkey.New(ks)
func NewKeystore(config *Config) (*Keystore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var password []byte
	if len(config.Password) > 0 {
		password = append([]byte(nil), config.Password...)
	}

	return &Keystore{
		storage:  config.KeyStorage,
		password: password,
		logger:   logger,
	}, nil
}
