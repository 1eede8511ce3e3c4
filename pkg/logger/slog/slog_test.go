package slog_test

import (
	"bytes"
	stdslog "log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kamalraji/planit-go/pkg/logger"
	slogadapter "github.com/kamalraji/planit-go/pkg/logger/slog"
)

func TestAdapterForwardsLevelsAndFields(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	h := stdslog.NewTextHandler(buff, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})

	var log logger.Logger = slogadapter.New(h)
	log.Debug("cache entry updated", "key", "campaigns", "status", "fresh")
	log.Info("reconnected")
	log.Warn("fetch failed", "error", "network down")
	log.Error("write rejected", "resource", "campaigns")

	out := buff.String()
	require.Contains(t, out, "level=DEBUG")
	require.Contains(t, out, "key=campaigns")
	require.Contains(t, out, "status=fresh")
	require.Contains(t, out, "level=INFO")
	require.Contains(t, out, "msg=reconnected")
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, `error="network down"`)
	require.Contains(t, out, "level=ERROR")
}

func TestWrapReusesConfiguredLogger(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	base := stdslog.New(stdslog.NewTextHandler(buff, nil)).With("component", "planit")

	log := slogadapter.Wrap(base)
	log.Info("change feed opened", "tenant", "evt-1")

	out := buff.String()
	require.Contains(t, out, "component=planit")
	require.Contains(t, out, "tenant=evt-1")
}
