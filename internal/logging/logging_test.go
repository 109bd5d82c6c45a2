package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"pairwise/internal/logging"
)

func TestNewLevels(t *testing.T) {
	l, err := logging.New("debug", "console")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = logging.New("warn", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknown(t *testing.T) {
	_, err := logging.New("loud", "json")
	assert.Error(t, err)
	_, err = logging.New("info", "xml")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logging.OrNop(nil))
}
