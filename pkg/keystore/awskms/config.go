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

package awskms

import (
	"fmt"

	"github.com/jeremyhahn/go-signingkey/pkg/logging"
)

// DefaultPendingWindowDays is the waiting period applied by DeleteKey.
const DefaultPendingWindowDays = 7

// Config contains configuration for the AWS KMS keystore.
type Config struct {
	// Region is the AWS region where KMS keys will be managed.
	// Examples: "us-east-1", "eu-west-1"
	Region string

	// Endpoint is a custom KMS endpoint URL.
	// Example: "http://localhost:4566" for LocalStack
	Endpoint string

	// AccessKeyID is the AWS access key ID.
	// Optional - if not provided, the default credential chain is used.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	SecretAccessKey string

	// SessionToken is the AWS session token for temporary credentials.
	SessionToken string

	// PendingWindowDays is the deletion waiting period, 7 to 30 days.
	PendingWindowDays int32

	// Logger receives generation and failure events. Defaults to discard.
	Logger *logging.Logger
}

// Validate checks if the Config is valid and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.Region == "" {
		return fmt.Errorf("%w: region is required", ErrInvalidConfig)
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("%w: access key ID and secret access key must be set together", ErrInvalidConfig)
	}
	if c.PendingWindowDays == 0 {
		c.PendingWindowDays = DefaultPendingWindowDays
	}
	if c.PendingWindowDays < 7 || c.PendingWindowDays > 30 {
		return fmt.Errorf("%w: pending window must be between 7 and 30 days", ErrInvalidConfig)
	}
	return nil
}

// String returns a string representation of the config with credentials masked.
func (c *Config) String() string {
	accessKeyMask := "<not set>"
	if c.AccessKeyID != "" {
		if len(c.AccessKeyID) > 4 {
			accessKeyMask = "****" + c.AccessKeyID[len(c.AccessKeyID)-4:]
		} else {
			accessKeyMask = "****"
		}
	}

	endpointDisplay := "<default>"
	if c.Endpoint != "" {
		endpointDisplay = c.Endpoint
	}

	return fmt.Sprintf("AWS KMS Config{Region: %s, AccessKeyID: %s, Endpoint: %s}",
		c.Region, accessKeyMask, endpointDisplay)
}
