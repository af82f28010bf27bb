package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildInfo(settings ...debug.BuildSetting) *debug.BuildInfo {
	return &debug.BuildInfo{Settings: settings}
}

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		commit string
		info   *debug.BuildInfo
		want   string
	}{
		{name: "no build info", base: "1.2.0", want: "1.2.0"},
		{name: "empty base", base: "", want: "0.0.0"},
		{name: "release build", base: "1.2.0", commit: "abc", info: buildInfo(debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"}), want: "1.2.0"},
		{
			name: "dev build",
			base: "1.2.0",
			info: buildInfo(debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"}),
			want: "1.2.0-0123456789ab",
		},
		{
			name: "dirty dev build",
			base: "1.2.0",
			info: buildInfo(
				debug.BuildSetting{Key: "vcs.revision", Value: "abc1234"},
				debug.BuildSetting{Key: "vcs.modified", Value: "true"},
			),
			want: "1.2.0-abc1234-dirty",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, resolveVersion(tt.base, tt.commit, tt.info))
		})
	}
}

func TestResolveNotEmpty(t *testing.T) {
	t.Parallel()
	require.NotEmpty(t, Resolve())
}
