package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fmueller/voxserve/internal/config"
	"github.com/stretchr/testify/require"
)

func TestServeStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	var built []config.Model
	app := &appState{engineFactory: fakeFactory(speechEngine(), &built)}
	cmd := newRootCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd.SetContext(ctx)
	cmd.SetArgs([]string{"serve", "--config", missingConfig(t), "--listen", "127.0.0.1:0"})

	require.NoError(t, cmd.Execute())
	require.Len(t, built, 1)
}

func TestServeBuildsEveryConfiguredModel(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "voxserve.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[[models]]
name = "whisper-1"
checkpoint = "small"

[[models]]
name = "fast"
checkpoint = "tiny"
language = "en"
`), 0o644))

	var built []config.Model
	app := &appState{engineFactory: fakeFactory(speechEngine(), &built)}
	cfg, _, _, err := config.Load(configPath)
	require.NoError(t, err)

	registry, err := app.buildRegistry(context.Background(), cfg, cfg.Models)
	require.NoError(t, err)
	require.Equal(t, []string{"fast", "whisper-1"}, registry.Names())
	require.Len(t, built, 2)
	require.Equal(t, "en", built[1].Language)
}

func TestServeAnswersRequests(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Models = []config.Model{{Name: "whisper-1", Checkpoint: "small", Timestamps: "chunk"}}

	listening := make(chan string, 1)
	app := &appState{engineFactory: fakeFactory(speechEngine(), nil)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.serveWithReady(ctx, &cfg, listening) }()

	var addr string
	select {
	case addr = <-listening:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/v1/models")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"whisper-1"`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
