package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() {
		Logger = prev
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	closer, err := Init(Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	require.NotNil(t, closer)

	l := Component("interview")
	l.Info().Str("candidate_id", "c-1").Msg("会话已开始")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"interview"`)
	assert.Contains(t, string(data), `"candidate_id":"c-1"`)
}

func TestInitFallsBackToInfoLevel(t *testing.T) {
	prev := Logger
	t.Cleanup(func() {
		Logger = prev
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	closer, err := Init(Config{Level: "not-a-level"})
	require.NoError(t, err)
	assert.Nil(t, closer, "未配置文件时不应返回 closer")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
