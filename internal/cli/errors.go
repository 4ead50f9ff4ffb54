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

package cli

import (
	"errors"

	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/jeremyhahn/go-signingkey/pkg/verification"
)

// Process exit codes
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitInvalidArgument = 2
	ExitInvalidState    = 3
	ExitKeystore        = 4
	ExitVerifyFailed    = 5
)

// ExitCode maps an error returned by a command to a process exit code.
// Requesting the enclave path without an enclave provider exits with
// ExitKeystore whether it was asked for by --enclave, by
// signing_key.use_secure_enclave or by SIGKEY_USE_SECURE_ENCLAVE.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, signingkey.ErrInvalidArgument):
		return ExitInvalidArgument
	case errors.Is(err, signingkey.ErrInvalidState):
		return ExitInvalidState
	case errors.Is(err, signingkey.ErrKeystore), errors.Is(err, keystore.ErrEnclaveUnavailable):
		return ExitKeystore
	case errors.Is(err, verification.ErrSignatureVerification):
		return ExitVerifyFailed
	default:
		return ExitFailure
	}
}
