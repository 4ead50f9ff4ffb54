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
	"strings"
)

const (
	keyPrefix = "keys/"
	keySuffix = ".p8"
)

// KeyPath returns the storage path for a key with the given ID.
// The path follows the convention: keys/{id}.p8
func KeyPath(id string) string {
	return keyPrefix + id + keySuffix
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}

// SaveKey stores key data for the given ID, overwriting any existing value.
// Returns ErrInvalidID if the ID is empty or not a single path element.
func SaveKey(backend Backend, id string, keyData []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	return backend.Put(KeyPath(id), keyData, DefaultOptions())
}

// CreateKey stores key data for the given ID. It returns ErrAlreadyExists
// instead of overwriting an existing key.
func CreateKey(backend Backend, id string, keyData []byte) error {
	exists, err := KeyExists(backend, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	return backend.Put(KeyPath(id), keyData, DefaultOptions())
}

// GetKey retrieves key data for the given ID.
// Returns ErrNotFound if the key does not exist.
func GetKey(backend Backend, id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return backend.Get(KeyPath(id))
}

// DeleteKey removes key data for the given ID.
// Returns ErrNotFound if the key does not exist.
func DeleteKey(backend Backend, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	return backend.Delete(KeyPath(id))
}

// KeyExists checks if a key exists for the given ID.
func KeyExists(backend Backend, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	return backend.Exists(KeyPath(id))
}

// ListKeys returns the IDs of all stored keys. Entries that do not follow
// the KeyPath convention are ignored.
func ListKeys(backend Backend) ([]string, error) {
	keys, err := backend.List(keyPrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, keySuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, keyPrefix), keySuffix)
		if validateID(id) == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
