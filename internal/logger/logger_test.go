package logger_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"scraper_results/internal/logger"
)

func TestFromZap_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core)).With(logger.String("backend", "document_store"))

	log.Info("total number of stories", logger.Int64("count", 3))
	log.Error("render failed", logger.Int("index", 1), logger.Error(errors.New("bad bytes")))

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "document_store", entries[0].ContextMap()["backend"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["count"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "bad bytes", entries[1].ContextMap()["error"])
}

func TestNew_WritesToOutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	log, err := logger.New(logger.Config{Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Debug("hello")
	assert.NoError(t, log.Sync())
	assert.FileExists(t, path)
}

func TestNewNop(t *testing.T) {
	log := logger.NewNop()
	log.Info("ignored")
	assert.NotNil(t, log.With(logger.Bool("x", true)))
	assert.NoError(t, log.Sync())
}
