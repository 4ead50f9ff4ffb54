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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/jeremyhahn/go-signingkey/pkg/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command tree with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func signJSON(t *testing.T, args ...string) *SignResult {
	t.Helper()
	out, err := run(t, append([]string{"sign", "-o", "json"}, args...)...)
	require.NoError(t, err)

	var result SignResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	return &result
}

func TestSignAndVerify(t *testing.T) {
	result := signJSON(t, "--payload", "Hello, World!")

	digest := sha256.Sum256([]byte("Hello, World!"))
	assert.Equal(t, hex.EncodeToString(digest[:]), result.Digest)
	assert.False(t, result.Enclave)
	assert.Len(t, result.PublicKey, 2*signingkey.PublicKeySize)
	assert.Contains(t, result.PublicKeyPEM, "-----BEGIN PUBLIC KEY-----")
	assert.True(t, strings.HasPrefix(result.Handle, "std:"), "handle %q", result.Handle)

	pemFile := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(pemFile, []byte(result.PublicKeyPEM), 0600))

	out, err := run(t, "verify", "--pubkey", pemFile, "--signature", result.Signature, "--payload", "Hello, World!")
	require.NoError(t, err)
	assert.Equal(t, "Signature valid\n", out)

	_, err = run(t, "verify", "--pubkey-hex", result.PublicKey, "--signature", result.Signature, "--digest", result.Digest)
	require.NoError(t, err)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	result := signJSON(t, "--payload", "original")

	_, err := run(t, "verify", "--pubkey-hex", result.PublicKey, "--signature", result.Signature, "--payload", "tampered")
	require.ErrorIs(t, err, verification.ErrSignatureVerification)
	assert.Equal(t, ExitVerifyFailed, ExitCode(err))
}

func TestSignPayloadFile(t *testing.T) {
	payload := []byte("file contents")
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, payload, 0600))

	result := signJSON(t, "--payload-file", path)
	digest := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(digest[:]), result.Digest)
}

func TestSignInvalidDigest(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"not hex", []string{"--digest", "zz"}},
		{"too short", []string{"--digest", "abcd"}},
		{"too long", []string{"--digest", hex.EncodeToString(make([]byte, 33))}},
		{"missing input", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"sign"}, tt.args...)...)
			require.ErrorIs(t, err, signingkey.ErrInvalidArgument)
			assert.Equal(t, ExitInvalidArgument, ExitCode(err))
		})
	}
}

func TestSignEnclaveWithoutProvider(t *testing.T) {
	_, err := run(t, "sign", "--enclave", "--payload", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, signingkey.ErrKeystore))
	assert.Equal(t, ExitKeystore, ExitCode(err))
}

func TestEnclaveWithoutProviderExitCodeMatches(t *testing.T) {
	_, flagErr := run(t, "sign", "--enclave", "--payload", "x")
	require.Error(t, flagErr)

	configFile := filepath.Join(t.TempDir(), "sigkey.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("signing_key:\n  use_secure_enclave: true\n"), 0600))
	_, configErr := run(t, "sign", "--config", configFile, "--payload", "x")
	require.ErrorIs(t, configErr, keystore.ErrEnclaveUnavailable)

	t.Setenv("SIGKEY_USE_SECURE_ENCLAVE", "TRUE")
	_, envErr := run(t, "pubkey")
	require.ErrorIs(t, envErr, keystore.ErrEnclaveUnavailable)

	assert.Equal(t, ExitKeystore, ExitCode(flagErr))
	assert.Equal(t, ExitCode(flagErr), ExitCode(configErr))
	assert.Equal(t, ExitCode(flagErr), ExitCode(envErr))
}

func TestEnclaveEnvMustBeTrueOrFalse(t *testing.T) {
	t.Setenv("SIGKEY_USE_SECURE_ENCLAVE", "1")
	_, err := run(t, "pubkey")
	require.ErrorIs(t, err, signingkey.ErrInvalidArgument)
	assert.Equal(t, ExitInvalidArgument, ExitCode(err))
}

func TestSignEnclaveTPMSimulator(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "sigkey.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
logging:
  level: info
keystore:
  standard: pkcs8
  enclave: tpm2
  pkcs8:
    storage: memory
  tpm2:
    use_simulator: true
`), 0600))

	result := signJSON(t, "--config", configFile, "--enclave", "--payload", "Hello, World!")
	assert.True(t, result.Enclave)

	_, err := run(t, "verify", "--pubkey-hex", result.PublicKey, "--signature", result.Signature, "--payload", "Hello, World!")
	require.NoError(t, err)
}

func TestConfigEnclaveFlagMustBeBoolean(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "sigkey.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("signing_key:\n  use_secure_enclave: 1\n"), 0600))

	_, err := run(t, "pubkey", "--config", configFile)
	require.ErrorIs(t, err, signingkey.ErrInvalidArgument)
}

func TestPubkey(t *testing.T) {
	out, err := run(t, "pubkey", "-o", "json")
	require.NoError(t, err)

	var result PublicKeyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.Handle)

	second, err := run(t, "pubkey", "-o", "json")
	require.NoError(t, err)
	var other PublicKeyResult
	require.NoError(t, json.Unmarshal([]byte(second), &other))
	assert.NotEqual(t, result.Handle, other.Handle, "each run creates a new key")

	point, err := hex.DecodeString(result.PublicKey)
	require.NoError(t, err)
	_, err = verification.NewVerifier(point)
	require.NoError(t, err)
}

func TestVerifyInvalidInput(t *testing.T) {
	result := signJSON(t, "--payload", "x")

	_, err := run(t, "verify", "--pubkey-hex", result.PublicKey, "--signature", "***", "--payload", "x")
	require.ErrorIs(t, err, signingkey.ErrInvalidArgument)

	_, err = run(t, "verify", "--pubkey-hex", "04abcd", "--signature", result.Signature, "--payload", "x")
	require.ErrorIs(t, err, signingkey.ErrInvalidArgument)

	_, err = run(t, "verify", "--signature", result.Signature, "--payload", "x")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sigkey version dev")

	out, err = run(t, "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info["version"])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("other")))
	assert.Equal(t, ExitInvalidState, ExitCode(signingkey.ErrAlreadyGenerated))
	assert.Equal(t, ExitKeystore, ExitCode(&signingkey.KeystoreError{Op: "sign", Err: errors.New("denied")}))
	assert.Equal(t, ExitKeystore, ExitCode(fmt.Errorf("invalid configuration: %w", keystore.ErrEnclaveUnavailable)))
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("json", &buf)
	require.NoError(t, printer.PrintError(errors.New("boom")))
	assert.JSONEq(t, `{"status":"error","error":"boom"}`, buf.String())

	buf.Reset()
	printer = NewPrinter("text", &buf)
	require.NoError(t, printer.PrintError(errors.New("boom")))
	assert.Equal(t, "Error: boom\n", buf.String())

	buf.Reset()
	require.NoError(t, printer.PrintPublicKey(&PublicKeyResult{Handle: "std:k1", PublicKey: "04ab"}))
	assert.Contains(t, buf.String(), "Handle:     std:k1\n")

	printer = NewPrinter("yaml", &buf)
	assert.Error(t, printer.PrintSuccess("ok"))
}
