package logging_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/repo-dashboard/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

// TestConfigureJSON verifies non-DEV environments emit JSON and honour the level
func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	logging.Configure(&buf, "warn", "PROD")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Msg("hidden")
	log.Warn().Str("login", "octocat").Msg("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"login":"octocat"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
}

// TestConfigureUnknownLevel verifies an unparsable level falls back to info
func TestConfigureUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logging.Configure(&buf, "shouty", "PROD")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
