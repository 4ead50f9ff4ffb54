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

package storage

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestMemoryBackend(t *testing.T) {
	m := NewMemory()

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	value := []byte("secret")
	if err := m.Put("keys/a.p8", value, nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Mutating the caller's slice must not change the stored value.
	value[0] = 'X'
	got, err := m.Get("keys/a.p8")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "secret" {
		t.Errorf("Get() = %q, want %q", got, "secret")
	}

	got[0] = 'Y'
	again, _ := m.Get("keys/a.p8")
	if string(again) != "secret" {
		t.Errorf("returned slice aliases stored value")
	}

	exists, err := m.Exists("keys/a.p8")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v; want true, nil", exists, err)
	}

	if err := m.Delete("keys/a.p8"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete("keys/a.p8"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_List(t *testing.T) {
	m := NewMemory()
	for _, k := range []string{"keys/b.p8", "other/x", "keys/a.p8"} {
		if err := m.Put(k, []byte(k), nil); err != nil {
			t.Fatalf("Put(%q) error = %v", k, err)
		}
	}

	got, err := m.List("keys/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"keys/a.p8", "keys/b.p8"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	all, _ := m.List("")
	if len(all) != 3 {
		t.Errorf("List(\"\") returned %d keys, want 3", len(all))
	}
}

func TestMemoryBackend_Close(t *testing.T) {
	m := NewMemory()
	_ = m.Put("k", []byte("v"), nil)

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if _, err := m.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
	if err := m.Put("k", nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Put() after Close error = %v, want ErrClosed", err)
	}
	if _, err := m.List(""); !errors.Is(err, ErrClosed) {
		t.Errorf("List() after Close error = %v, want ErrClosed", err)
	}
	if _, err := m.Exists("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Exists() after Close error = %v, want ErrClosed", err)
	}
	if err := m.Delete("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Delete() after Close error = %v, want ErrClosed", err)
	}
}

func TestMemoryBackend_Concurrent(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := KeyPath(string(rune('a' + i%26)))
			_ = m.Put(key, []byte{byte(i)}, nil)
			_, _ = m.Get(key)
			_, _ = m.List("keys/")
		}(i)
	}
	wg.Wait()
}
