package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "console debug", level: "debug", format: "console"},
		{name: "json warn", level: "warn", format: "json"},
		{name: "default format", level: "info", format: ""},
		{name: "bad level", level: "loud", format: "console", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l.Logger)
		})
	}
}

func TestLevelIsApplied(t *testing.T) {
	l, err := NewLogger("warn", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestWithRun(t *testing.T) {
	l := Nop()
	assert.Same(t, l.Logger, l.WithRun(""))
	assert.NotNil(t, l.WithRun("abc"))
}
