package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	log := New(1, "json", false)
	require.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log = New(0, "console", false)
	require.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestComponentTag(t *testing.T) {
	log := Component(New(1, "json", false), "submitter")
	// the derived logger must keep the parent's level
	require.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
