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

// Package signingkey provides an opaque, keystore-backed ECDSA P-256 signing key.
//
// # Overview
//
// A SigningKey owns exactly one key pair for its lifetime. The key pair is
// generated inside a Keystore (secure storage or a hardware enclave such as a
// TPM or HSM) and the private key never leaves it: the SigningKey only holds an
// opaque Handle and the enclave routing flag chosen at construction.
//
// # Lifecycle
//
//	Uninitialized --Generate(ok)--> Generated
//	Uninitialized --Generate(err)--> Uninitialized (KeystoreError)
//	Generated --Generate--> Generated (ErrAlreadyGenerated)
//	Uninitialized --Sign--> ErrInvalidState
//	Uninitialized --PublicKey--> nil, nil
//
// PublicKey before Generate returns no bytes and no error so callers can check
// readiness. Sign before Generate is a caller error and fails with
// ErrInvalidState.
//
// # Basic Usage
//
//	ks := pkcs8.New(&pkcs8.Config{KeyStorage: storage.New()})
//	key, err := signingkey.New(ks)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := key.Generate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	digest := sha256.Sum256([]byte("Hello, World!"))
//	sig, err := key.Sign(ctx, digest[:])
//
// # Errors
//
// All failures match one of three sentinels with errors.Is:
// ErrInvalidArgument, ErrInvalidState or ErrKeystore. Keystore failures are
// returned as *KeystoreError and unwrap to the underlying platform error.
package signingkey
