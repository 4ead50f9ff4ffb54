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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugSuppressedUnlessEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, "text")

	logger.Debug("hidden")
	logger.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	logger.Info("visible")
	assert.Contains(t, buf.String(), "visible")

	logger.Infof("created key %s", "sigkey-1")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "created key sigkey-1")
}

func TestDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, "text")

	logger.Debugf("generated key %s", "abc")
	assert.Contains(t, buf.String(), "generated key abc")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, "JSON").With("component", "tpm2")

	logger.Warnf("retrying %s", "sign")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "retrying sign", record["msg"])
	assert.Equal(t, "tpm2", record["component"])
}

func TestMaybeError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, "text")

	logger.MaybeError(nil)
	assert.Empty(t, buf.String())

	logger.MaybeError(errors.New("keystore denied"))
	assert.True(t, strings.Contains(buf.String(), "keystore denied"))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("nothing")
	logger.Error(errors.New("nothing"))
}
