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

// Package keystore composes signingkey.Keystore providers. A Router sends
// standard-path requests to a software or remote provider and enclave-path
// requests to a hardware provider; Instrumented adds logging and Prometheus
// metrics around any provider.
//
// The providers themselves live in subpackages:
//
//	pkcs8   software keys, PKCS#8 encoded in a storage.Backend (standard)
//	awskms  AWS KMS asymmetric keys (standard)
//	tpm2    TPM 2.0 primary keys (enclave)
//	pkcs11  PKCS#11 token or HSM keys (enclave)
package keystore

import (
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
)

// Provider is a signingkey.Keystore backed by a single key storage technology.
type Provider interface {
	signingkey.Keystore

	// Name identifies the provider in logs and metrics, e.g. "pkcs8" or "tpm2".
	Name() string

	// Enclave reports whether the provider keeps keys in isolated hardware.
	Enclave() bool

	// Close releases provider resources. Keys held only in volatile
	// hardware state are lost.
	Close() error
}
