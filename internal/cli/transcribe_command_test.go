package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/voxserve/internal/api"
	"github.com/fmueller/voxserve/internal/config"
	"github.com/fmueller/voxserve/internal/transcript"
	"github.com/fmueller/voxserve/internal/whisper"
	"github.com/stretchr/testify/require"
)

func writeAudio(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func speechEngine() *fakeEngine {
	return &fakeEngine{result: transcript.Result{
		Text: "hello world",
		Chunks: []transcript.Chunk{
			{Start: 0, End: transcript.Seconds(1.25), Text: " hello"},
			{Start: 1.25, Text: " world"},
		},
	}}
}

func TestTranscribeCommandPrintsText(t *testing.T) {
	t.Parallel()

	engine := speechEngine()
	var built []config.Model
	app := &appState{engineFactory: fakeFactory(engine, &built)}
	audio := writeAudio(t, []byte("not really audio"))

	stdout, _, err := runAppCommand(t, app, []string{"transcribe", "--config", missingConfig(t), "--language", "DE", audio})
	require.NoError(t, err)
	require.Equal(t, "hello world\n", stdout)

	require.Len(t, built, 1)
	require.Equal(t, config.DefaultServedModel, built[0].Name)

	calls := engine.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "de", calls[0].Language)
	require.Equal(t, whisper.TaskTranscribe, calls[0].Task)
}

func TestTranscribeCommandRendersSRTToFile(t *testing.T) {
	t.Parallel()

	app := &appState{engineFactory: fakeFactory(speechEngine(), nil)}
	audio := writeAudio(t, []byte("audio"))
	output := filepath.Join(t.TempDir(), "clip.srt")

	stdout, _, err := runAppCommand(t, app, []string{"transcribe", "--config", missingConfig(t), "--format", "srt", "-o", output, audio})
	require.NoError(t, err)
	require.Empty(t, stdout)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:01,250\nhello\n\n2\n00:00:01,250 --> 00:00:01,251\nworld\n\n", string(content))
}

func TestTranscribeCommandTranslateDropsLanguage(t *testing.T) {
	t.Parallel()

	engine := speechEngine()
	app := &appState{engineFactory: fakeFactory(engine, nil)}
	audio := writeAudio(t, []byte("audio"))

	_, _, err := runAppCommand(t, app, []string{"transcribe", "--config", missingConfig(t), "--translate", "--language", "fr", audio})
	require.NoError(t, err)

	calls := engine.calls()
	require.Len(t, calls, 1)
	require.Equal(t, whisper.TaskTranslate, calls[0].Task)
	require.Empty(t, calls[0].Language)
}

func TestTranscribeCommandUsesAdHocCheckpoint(t *testing.T) {
	t.Parallel()

	var built []config.Model
	app := &appState{engineFactory: fakeFactory(speechEngine(), &built)}
	audio := writeAudio(t, []byte("audio"))

	_, _, err := runAppCommand(t, app, []string{"transcribe", "--config", missingConfig(t), "--model", "tiny", audio})
	require.NoError(t, err)
	require.Equal(t, []config.Model{{Name: "tiny", Checkpoint: "tiny", Timestamps: "chunk"}}, built)
}

func TestTranscribeCommandRejectsInvalidTemperature(t *testing.T) {
	t.Parallel()

	engine := speechEngine()
	app := &appState{engineFactory: fakeFactory(engine, nil)}
	audio := writeAudio(t, []byte("audio"))

	_, _, err := runAppCommand(t, app, []string{"transcribe", "--config", missingConfig(t), "--temperature", "1.5", audio})
	require.ErrorIs(t, err, transcript.ErrInvalidArgument)
	require.Empty(t, engine.calls())
}

func TestTranscribeCommandSilenceGateSkipsEngine(t *testing.T) {
	t.Parallel()

	engine := speechEngine()
	app := &appState{engineFactory: fakeFactory(engine, nil)}
	audio := writeAudio(t, makePCM16WAVForTest(make([]int16, 16000), 16000, 1))

	stdout, _, err := runAppCommand(t, app, []string{"transcribe", "--config", missingConfig(t), audio})
	require.NoError(t, err)
	require.Equal(t, "\n", stdout)
	require.Empty(t, engine.calls())

	_, _, err = runAppCommand(t, app, []string{"transcribe", "--config", missingConfig(t), "--silence-gate=false", audio})
	require.NoError(t, err)
	require.Len(t, engine.calls(), 1)
}

func TestIsBlankPayload(t *testing.T) {
	t.Parallel()

	require.True(t, isBlankPayload(respOf(`{"text":""}`, transcript.ContentTypeJSON)))
	require.True(t, isBlankPayload(respOf("WEBVTT\n\n", transcript.ContentTypeVTT)))
	require.True(t, isBlankPayload(respOf(" [BLANK_AUDIO] ", transcript.ContentTypeText)))
	require.False(t, isBlankPayload(respOf(`{"text":"hi"}`, transcript.ContentTypeJSON)))
	require.False(t, isBlankPayload(respOf("hello", transcript.ContentTypeText)))
}

func respOf(body, contentType string) api.Response {
	return api.Response{Body: []byte(body), ContentType: contentType}
}
