package trackgraph

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLogger(t *testing.T) {
	logger := NoopLogger()
	require.NotNil(t, logger)

	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelError))

	// Must stay silent through the derived loggers too.
	assert.False(t, logger.WithRunID("r1").Enabled(ctx, slog.LevelError))
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, nil))

	logger.WithRunID("r1").Info("hello")
	assert.Contains(t, buf.String(), "run_id=r1")
}
