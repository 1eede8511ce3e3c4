package logger_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kamalraji/planit-go/pkg/logger"
)

func TestZerologAdapter(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	log := logger.New(zerolog.New(buff))

	require.Equal(t, 0, buff.Len())
	log.Info("cache invalidated", "resource", "campaigns", "tenant", "evt-1")

	out := buff.String()
	require.Contains(t, out, "cache invalidated")
	require.Contains(t, out, "campaigns")
	require.Contains(t, out, "evt-1")
}

func TestNopDiscards(t *testing.T) {
	log := logger.Nop()
	// Must not panic with odd argument counts.
	log.Error("boom", "key")
	log.Debug("quiet")
}
