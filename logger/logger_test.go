package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/talecore/config"
)

func TestSetup_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Environment = "production"
	cfg.LogLevel = "info"

	log := Setup(cfg, &buf)
	log.Info("effect expired", "effect_id", "fx-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "effect expired", rec["msg"])
	assert.Equal(t, "fx-1", rec["effect_id"])
}

func TestSetup_DevelopmentWritesTextAtLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogLevel = "warn"

	log := Setup(cfg, &buf)
	log.Info("hidden")
	log.Warn("unknown faction", "faction", "pirates")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "faction=pirates")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	log := WithError(Setup(cfg, &buf), errors.New("boom"))
	log.Error("save failed")
	assert.Contains(t, buf.String(), "error=boom")
}
