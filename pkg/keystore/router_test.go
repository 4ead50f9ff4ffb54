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

package keystore

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider adapts a MockKeystore to Provider.
type fakeProvider struct {
	*mocks.MockKeystore
	name     string
	enclave  bool
	closed   bool
	closeErr error
}

func newFakeProvider(name string, enclave bool) *fakeProvider {
	return &fakeProvider{MockKeystore: mocks.NewMockKeystore(), name: name, enclave: enclave}
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Enclave() bool { return p.enclave }
func (p *fakeProvider) Close() error {
	p.closed = true
	return p.closeErr
}

func TestNewRouter(t *testing.T) {
	_, err := NewRouter(nil, nil)
	assert.Error(t, err)

	_, err = NewRouter(newFakeProvider("tpm2", true), nil)
	assert.Error(t, err, "enclave provider on the standard path")

	_, err = NewRouter(newFakeProvider("pkcs8", false), newFakeProvider("awskms", false))
	assert.Error(t, err, "standard provider on the enclave path")

	r, err := NewRouter(newFakeProvider("pkcs8", false), nil)
	require.NoError(t, err)
	assert.False(t, r.HasEnclave())
}

func TestRouter_Routes(t *testing.T) {
	std := newFakeProvider("pkcs8", false)
	enc := newFakeProvider("tpm2", true)
	r, err := NewRouter(std, enc)
	require.NoError(t, err)
	ctx := context.Background()

	hStd, err := r.GenerateKeyPair(ctx, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(hStd), "std:"))

	hEnc, err := r.GenerateKeyPair(ctx, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(hEnc), "enc:"))

	assert.Equal(t, []bool{false}, std.GenerateKeyPairCalls)
	assert.Equal(t, []bool{true}, enc.GenerateKeyPairCalls)

	digest := sha256.Sum256([]byte("Hello, World!"))
	for _, tc := range []struct {
		h       signingkey.Handle
		enclave bool
	}{{hStd, false}, {hEnc, true}} {
		point, err := r.GetPublicKey(ctx, tc.h)
		require.NoError(t, err)
		pub, err := encoding.ParsePublicPoint(point)
		require.NoError(t, err)

		sig, err := r.SignDigest(ctx, tc.h, digest[:], tc.enclave)
		require.NoError(t, err)
		assert.True(t, ecdsa.VerifyASN1(pub, digest[:], sig))
	}

	assert.Len(t, std.SignDigestCalls, 1)
	assert.Len(t, enc.SignDigestCalls, 1)
}

func TestRouter_RouteMismatch(t *testing.T) {
	std := newFakeProvider("pkcs8", false)
	enc := newFakeProvider("tpm2", true)
	r, _ := NewRouter(std, enc)
	ctx := context.Background()

	hStd, _ := r.GenerateKeyPair(ctx, false)
	digest := make([]byte, 32)

	_, err := r.SignDigest(ctx, hStd, digest, true)
	assert.ErrorIs(t, err, ErrRouteMismatch)
	assert.Empty(t, std.SignDigestCalls)
	assert.Empty(t, enc.SignDigestCalls)
}

func TestRouter_EnclaveUnavailable(t *testing.T) {
	std := newFakeProvider("pkcs8", false)
	r, _ := NewRouter(std, nil)
	ctx := context.Background()

	_, err := r.GenerateKeyPair(ctx, true)
	assert.ErrorIs(t, err, ErrEnclaveUnavailable)
	assert.Empty(t, std.GenerateKeyPairCalls)

	_, err = r.GetPublicKey(ctx, "enc:abc")
	assert.ErrorIs(t, err, ErrEnclaveUnavailable)
}

func TestRouter_UnknownHandle(t *testing.T) {
	r, _ := NewRouter(newFakeProvider("pkcs8", false), nil)
	ctx := context.Background()

	for _, h := range []signingkey.Handle{"", "abc", "std:", "enc:", "xyz:abc"} {
		_, err := r.GetPublicKey(ctx, h)
		assert.ErrorIs(t, err, ErrUnknownHandle, "handle %q", h)
		_, err = r.SignDigest(ctx, h, make([]byte, 32), false)
		assert.ErrorIs(t, err, ErrUnknownHandle, "handle %q", h)
	}
}

func TestRouter_ProviderError(t *testing.T) {
	std := newFakeProvider("pkcs8", false)
	boom := errors.New("storage unavailable")
	std.GenerateKeyPairFunc = func(context.Context, bool) (signingkey.Handle, error) {
		return "", boom
	}
	r, _ := NewRouter(std, nil)

	h, err := r.GenerateKeyPair(context.Background(), false)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, h)
}

func TestRouter_Close(t *testing.T) {
	std := newFakeProvider("pkcs8", false)
	enc := newFakeProvider("tpm2", true)
	enc.closeErr = errors.New("flush failed")
	r, _ := NewRouter(std, enc)

	err := r.Close()
	assert.ErrorIs(t, err, enc.closeErr)
	assert.Contains(t, err.Error(), "tpm2")
	assert.True(t, std.closed)
	assert.True(t, enc.closed)
}

func TestRouter_WithSigningKey(t *testing.T) {
	r, _ := NewRouter(newFakeProvider("pkcs8", false), newFakeProvider("tpm2", true))
	ctx := context.Background()

	for _, enclave := range []bool{false, true} {
		key, err := signingkey.New(r, signingkey.WithSecureEnclave(enclave))
		require.NoError(t, err)
		require.NoError(t, key.Generate(ctx))

		pub, err := key.ECDSAPublicKey(ctx)
		require.NoError(t, err)

		digest := sha256.Sum256([]byte("Hello, World!"))
		sig, err := key.Sign(ctx, digest[:])
		require.NoError(t, err)
		assert.True(t, ecdsa.VerifyASN1(pub, digest[:], sig))
	}
}

func TestValidateDigest(t *testing.T) {
	assert.NoError(t, ValidateDigest(make([]byte, 32)))
	assert.ErrorIs(t, ValidateDigest(nil), ErrInvalidDigest)
	assert.ErrorIs(t, ValidateDigest(make([]byte, 48)), ErrInvalidDigest)
}

func TestCheckRoute(t *testing.T) {
	assert.NoError(t, CheckRoute(false, false))
	assert.NoError(t, CheckRoute(true, true))
	assert.ErrorIs(t, CheckRoute(false, true), ErrEnclaveNotSupported)
	assert.ErrorIs(t, CheckRoute(true, false), ErrEnclaveRequired)
}
