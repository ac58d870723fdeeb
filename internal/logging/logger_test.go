// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/cognilib/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cognilib.log")

	logger, closeFn, err := New(config.LoggingConfig{Level: "info"}, path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("send confirmed", zap.String("conversation", "c1"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "send confirmed", entry["message"])
	assert.Equal(t, "c1", entry["conversation"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "loud"}, filepath.Join(t.TempDir(), "x.log"))
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWriter(zapcore.DebugLevel, &buf), "gateway")
	logger.Debug("ping")

	assert.Contains(t, buf.String(), `"module":"gateway"`)
	assert.NotNil(t, Component(nil, "x"))
}
