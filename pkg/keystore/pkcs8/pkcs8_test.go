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
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/jeremyhahn/go-signingkey/pkg/storage"
	"github.com/jeremyhahn/go-signingkey/pkg/storage/file"
)

// Helper function to create a test keystore
func createTestKeystore(t *testing.T, password []byte) (*Keystore, storage.Backend) {
	t.Helper()

	keyStorage := storage.NewMemory()
	ks, err := NewKeystore(&Config{
		KeyStorage: keyStorage,
		Password:   password,
	})
	if err != nil {
		t.Fatalf("Failed to create keystore: %v", err)
	}
	t.Cleanup(func() { _ = ks.Close() })
	return ks, keyStorage
}

func TestNewKeystore(t *testing.T) {
	if _, err := NewKeystore(nil); err == nil {
		t.Fatal("Expected error for nil config")
	}
	if _, err := NewKeystore(&Config{}); err == nil {
		t.Fatal("Expected error for missing KeyStorage")
	}

	ks, _ := createTestKeystore(t, nil)
	if ks.Name() != ProviderName {
		t.Errorf("Name() = %q, want %q", ks.Name(), ProviderName)
	}
	if ks.Enclave() {
		t.Error("Enclave() = true, want false")
	}
}

func TestGenerateSignVerify(t *testing.T) {
	for _, tc := range []struct {
		name     string
		password []byte
	}{
		{"Unencrypted", nil},
		{"Encrypted", []byte("correct horse battery staple")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ks, backend := createTestKeystore(t, tc.password)
			ctx := context.Background()

			h, err := ks.GenerateKeyPair(ctx, false)
			if err != nil {
				t.Fatalf("GenerateKeyPair failed: %v", err)
			}
			if _, err := uuid.Parse(string(h)); err != nil {
				t.Fatalf("Handle %q is not a UUID: %v", h, err)
			}

			exists, err := storage.KeyExists(backend, string(h))
			if err != nil || !exists {
				t.Fatalf("Key not persisted: exists=%v err=%v", exists, err)
			}

			point, err := ks.GetPublicKey(ctx, h)
			if err != nil {
				t.Fatalf("GetPublicKey failed: %v", err)
			}
			if len(point) != signingkey.PublicKeySize {
				t.Fatalf("Expected %d byte public key, got %d", signingkey.PublicKeySize, len(point))
			}
			pub, err := encoding.ParsePublicPoint(point)
			if err != nil {
				t.Fatalf("ParsePublicPoint failed: %v", err)
			}

			digest := sha256.Sum256([]byte("Hello, World!"))
			sig, err := ks.SignDigest(ctx, h, digest[:], false)
			if err != nil {
				t.Fatalf("SignDigest failed: %v", err)
			}
			if !ecdsa.VerifyASN1(pub, digest[:], sig) {
				t.Fatal("Signature verification failed")
			}
		})
	}
}

func TestEnclaveNotSupported(t *testing.T) {
	ks, backend := createTestKeystore(t, nil)
	ctx := context.Background()

	if _, err := ks.GenerateKeyPair(ctx, true); !errors.Is(err, keystore.ErrEnclaveNotSupported) {
		t.Fatalf("Expected ErrEnclaveNotSupported, got %v", err)
	}
	if ids, _ := storage.ListKeys(backend); len(ids) != 0 {
		t.Fatalf("Expected no stored keys, got %v", ids)
	}

	h, _ := ks.GenerateKeyPair(ctx, false)
	if _, err := ks.SignDigest(ctx, h, make([]byte, 32), true); !errors.Is(err, keystore.ErrEnclaveNotSupported) {
		t.Fatalf("Expected ErrEnclaveNotSupported, got %v", err)
	}
}

func TestUnknownHandle(t *testing.T) {
	ks, _ := createTestKeystore(t, nil)
	ctx := context.Background()

	for _, h := range []signingkey.Handle{"", "not-a-uuid", "../../etc/passwd", signingkey.Handle(uuid.NewString())} {
		if _, err := ks.GetPublicKey(ctx, h); !errors.Is(err, keystore.ErrUnknownHandle) {
			t.Errorf("GetPublicKey(%q): expected ErrUnknownHandle, got %v", h, err)
		}
		if _, err := ks.SignDigest(ctx, h, make([]byte, 32), false); !errors.Is(err, keystore.ErrUnknownHandle) {
			t.Errorf("SignDigest(%q): expected ErrUnknownHandle, got %v", h, err)
		}
	}
}

func TestSignDigest_InvalidDigest(t *testing.T) {
	ks, _ := createTestKeystore(t, nil)
	ctx := context.Background()
	h, _ := ks.GenerateKeyPair(ctx, false)

	for _, d := range [][]byte{nil, make([]byte, 20), make([]byte, 64)} {
		if _, err := ks.SignDigest(ctx, h, d, false); !errors.Is(err, keystore.ErrInvalidDigest) {
			t.Errorf("Expected ErrInvalidDigest for %d bytes, got %v", len(d), err)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	ks, _ := createTestKeystore(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ks.GenerateKeyPair(ctx, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	password := []byte("s3cret")
	ctx := context.Background()

	fs1, err := file.New(dir)
	if err != nil {
		t.Fatalf("file.New failed: %v", err)
	}
	ks1, err := NewKeystore(&Config{KeyStorage: fs1, Password: password})
	if err != nil {
		t.Fatalf("NewKeystore failed: %v", err)
	}
	h, err := ks1.GenerateKeyPair(ctx, false)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	before, _ := ks1.GetPublicKey(ctx, h)
	_ = ks1.Close()

	t.Run("SamePassword", func(t *testing.T) {
		fs2, _ := file.New(dir)
		ks2, _ := NewKeystore(&Config{KeyStorage: fs2, Password: password})
		defer ks2.Close()

		after, err := ks2.GetPublicKey(ctx, h)
		if err != nil {
			t.Fatalf("GetPublicKey after restart failed: %v", err)
		}
		if string(before) != string(after) {
			t.Fatal("Public key changed across restart")
		}

		handles, err := ks2.ListKeys()
		if err != nil || len(handles) != 1 || handles[0] != h {
			t.Fatalf("ListKeys() = %v, %v", handles, err)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		fs2, _ := file.New(dir)
		ks2, _ := NewKeystore(&Config{KeyStorage: fs2, Password: []byte("wrong")})
		defer ks2.Close()

		if _, err := ks2.GetPublicKey(ctx, h); !errors.Is(err, ErrKeyDecodingFailed) {
			t.Fatalf("Expected ErrKeyDecodingFailed, got %v", err)
		}
	})
}

func TestDeleteKey(t *testing.T) {
	ks, _ := createTestKeystore(t, nil)
	ctx := context.Background()
	h, _ := ks.GenerateKeyPair(ctx, false)

	if err := ks.DeleteKey(h); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}
	if _, err := ks.GetPublicKey(ctx, h); !errors.Is(err, keystore.ErrUnknownHandle) {
		t.Fatalf("Expected ErrUnknownHandle after delete, got %v", err)
	}
	if err := ks.DeleteKey(h); !errors.Is(err, keystore.ErrUnknownHandle) {
		t.Fatalf("Expected ErrUnknownHandle on second delete, got %v", err)
	}
}

func TestClose(t *testing.T) {
	ks, _ := createTestKeystore(t, nil)
	ctx := context.Background()
	h, _ := ks.GenerateKeyPair(ctx, false)

	if err := ks.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ks.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if _, err := ks.GenerateKeyPair(ctx, false); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("Expected ErrStorageClosed, got %v", err)
	}
	if _, err := ks.SignDigest(ctx, h, make([]byte, 32), false); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("Expected ErrStorageClosed, got %v", err)
	}
	if _, err := ks.ListKeys(); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("Expected ErrStorageClosed, got %v", err)
	}
}

func TestConcurrentGenerate(t *testing.T) {
	ks, _ := createTestKeystore(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	handles := make([]signingkey.Handle, 20)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := ks.GenerateKeyPair(ctx, false)
			if err != nil {
				t.Errorf("GenerateKeyPair failed: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	seen := make(map[signingkey.Handle]bool)
	for _, h := range handles {
		if seen[h] {
			t.Fatalf("Duplicate handle %q", h)
		}
		seen[h] = true
	}
}

func TestSigningKeyEndToEnd(t *testing.T) {
	ks, _ := createTestKeystore(t, nil)
	ctx := context.Background()

	key, err := signingkey.New(ks)
	if err != nil {
		t.Fatalf("signingkey.New failed: %v", err)
	}
	if pub, err := key.PublicKey(ctx); err != nil || pub != nil {
		t.Fatalf("Expected absent public key before generate, got %x, %v", pub, err)
	}
	if err := key.Generate(ctx); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	pub, err := key.ECDSAPublicKey(ctx)
	if err != nil {
		t.Fatalf("ECDSAPublicKey failed: %v", err)
	}
	digest := sha256.Sum256([]byte("Hello, World!"))
	sig, err := key.Sign(ctx, digest[:])
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		t.Fatal("Signature verification failed")
	}

	enclaveKey, _ := signingkey.New(ks, signingkey.WithSecureEnclave(true))
	err = enclaveKey.Generate(ctx)
	if !errors.Is(err, signingkey.ErrKeystore) || !errors.Is(err, keystore.ErrEnclaveNotSupported) {
		t.Fatalf("Expected keystore error wrapping ErrEnclaveNotSupported, got %v", err)
	}
}
