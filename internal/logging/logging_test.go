package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestResolveLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want zapcore.Level
	}{
		{name: "default", opts: Options{}, want: zapcore.InfoLevel},
		{name: "verbose", opts: Options{Verbose: true}, want: zapcore.DebugLevel},
		{name: "explicit wins", opts: Options{Verbose: true, Level: "WARN"}, want: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			level, err := resolveLevel(tt.opts)
			require.NoError(t, err)
			require.Equal(t, tt.want, level)
		})
	}
}

func TestNewBuildsBothEncodings(t *testing.T) {
	t.Parallel()

	for _, opts := range []Options{{}, {JSON: true, Level: "error"}} {
		logger, err := New(opts)
		require.NoError(t, err)
		require.NotNil(t, logger)
	}

	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}
