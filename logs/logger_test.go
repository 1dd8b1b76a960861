package logs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"pivot_curve_bot/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "BTCUSDT_bot.log")
	cfg := &config.LogConfig{LogLevel: "debug", MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}

	require.NoError(t, Init(cfg, path))
	SetOutput(io.Discard)
	WithFields(logrus.Fields{"pivot": 100.0}).Info("[Engine] pivot moved")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Engine] pivot moved")
	assert.Contains(t, string(data), "pivot=100")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestInitFallsBackToInfoLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	require.NoError(t, Init(&config.LogConfig{LogLevel: "verbose"}, path))
	SetOutput(io.Discard)
	defer Close()

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
