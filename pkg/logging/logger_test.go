package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARN"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("info"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "currency", Value: "BTC"}, String("currency", "BTC"))
	assert.Equal(t, Field{Key: "placed", Value: 3}, Int("placed", 3))
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Error(errors.New("boom")))
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()

	// Must not panic, with or without fields.
	logger.Info("ignored")
	logger.Error("ignored", String("k", "v"))
	logger.WithFields(Int("n", 1)).Debug("ignored")
}

func TestRotatingFileWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger := NewLogger(WithRotatingFile(path), WithLevel(DEBUG))

	logger.Info("cycle complete", Int("placed", 1))
	_ = logger.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cycle complete")
	assert.Contains(t, string(data), `"placed":1`)
}

func TestWithFieldsAttachesToEveryEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger := NewLogger(WithRotatingFile(path), WithLevel(DEBUG))

	scoped := logger.WithFields(String("exchange", "poloniex"))
	scoped.Warn("rate limited")
	_ = logger.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exchange":"poloniex"`)
	assert.Contains(t, string(data), "rate limited")
}
