package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.DebugLevel)

	l.Info().Str("run_id", "abc").Msg("run completed")

	out := buf.String()
	assert.Contains(t, out, `"run_id":"abc"`)
	assert.Contains(t, out, `"message":"run completed"`)
	assert.Contains(t, out, `"caller"`)
}

func TestSetLevelFallsBackToInfo(t *testing.T) {
	defer SetLevel("info")

	SetLevel("debug")
	assert.Equal(t, zerolog.DebugLevel, Log.GetLevel())

	SetLevel("loud")
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())
}
