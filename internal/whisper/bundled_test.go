package whisper

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/fmueller/voxserve/internal/platform"
	"github.com/stretchr/testify/require"
)

func TestResolveBundledEnginePathFindsLibexecSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	engineDir := filepath.Join(root, "libexec", "whisper")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(engineDir, 0o755))

	self := filepath.Join(binDir, "voxserve")
	require.NoError(t, os.WriteFile(self, []byte(""), 0o755))

	enginePath := filepath.Join(engineDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(self)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveBundledEnginePathMissing(t *testing.T) {
	t.Parallel()

	self := filepath.Join(t.TempDir(), "bin", "voxserve")
	require.NoError(t, os.MkdirAll(filepath.Dir(self), 0o755))
	require.NoError(t, os.WriteFile(self, []byte(""), 0o755))

	_, err := ResolveBundledEnginePath(self)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bundled whisper engine not found")
}

func TestResolveBundledEnginePathFindsPackagingPathForLocalDev(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	self := filepath.Join(root, "voxserve")
	require.NoError(t, os.WriteFile(self, []byte(""), 0o755))

	targetDir := filepath.Join(root, "packaging", "whisper", platform.CurrentRuntime().Target())
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	enginePath := filepath.Join(targetDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(self)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestNewBundledEngineRejectsNonExecutableOverride(t *testing.T) {
	t.Parallel()

	notExec := filepath.Join(t.TempDir(), "whisper-cli")
	require.NoError(t, os.WriteFile(notExec, []byte(""), 0o644))

	_, err := NewBundledEngine(BundledOptions{Executable: notExec, ModelPath: "/models/ggml-tiny.bin"})
	if runtime.GOOS == "windows" {
		require.NoError(t, err)
		return
	}
	require.Error(t, err)
	require.Contains(t, err.Error(), "not executable")
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	engine := &BundledEngine{ModelPath: "/models/ggml-small.bin", Granularity: GranularityChunk, Threads: 4}

	args := engine.buildArgs(Request{
		Task:        TaskTranslate,
		Language:    "",
		Prompt:      "  glossary  ",
		Temperature: 0.2,
		Granularity: GranularityWord,
	}, "/tmp/in.wav", "/tmp/out")

	require.Equal(t, []string{
		"-m", "/models/ggml-small.bin",
		"-f", "/tmp/in.wav",
		"-oj", "-of", "/tmp/out", "-np",
		"-l", "auto",
		"-tr",
		"--prompt", "glossary",
		"-tp", "0.2",
		"-ml", "1",
		"-t", "4",
	}, args)
}

func TestBuildArgsUsesEngineDefaultLanguage(t *testing.T) {
	t.Parallel()

	engine := &BundledEngine{ModelPath: "m.bin", Language: "DE"}

	args := engine.buildArgs(Request{Task: TaskTranscribe, Language: "auto"}, "in.wav", "out")
	require.Contains(t, args, "de")
	require.NotContains(t, args, "-tr")
	require.NotContains(t, args, "-tp")

	args = engine.buildArgs(Request{Task: TaskTranscribe, Language: "fr"}, "in.wav", "out")
	require.Contains(t, args, "fr")
}

func TestGenerateRunsEngineAndParsesOutput(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("fake engine is a shell script")
	}

	script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-of" ]; then out="$2"; fi
  shift
done
cat > "$out.json" <<'JSON'
{"transcription":[
 {"offsets":{"from":500,"to":900},"text":" hi"},
 {"offsets":{"from":1000,"to":1000},"text":" there"}
]}
JSON
`
	enginePath := filepath.Join(t.TempDir(), "whisper-cli")
	require.NoError(t, os.WriteFile(enginePath, []byte(script), 0o755))

	engine, err := NewBundledEngine(BundledOptions{Executable: enginePath, ModelPath: "/models/ggml-tiny.bin"})
	require.NoError(t, err)

	result, err := engine.Generate(context.Background(), Request{Audio: []byte("RIFF"), Task: TaskTranscribe})
	require.NoError(t, err)
	require.Equal(t, "hi there", result.Text)
	require.Len(t, result.Chunks, 2)
	require.Equal(t, 0.5, result.Chunks[0].Start)
	require.Nil(t, result.Chunks[1].End)
}

func TestGenerateWrapsEngineFailures(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("fake engine is a shell script")
	}

	enginePath := filepath.Join(t.TempDir(), "whisper-cli")
	require.NoError(t, os.WriteFile(enginePath, []byte("#!/bin/sh\necho 'failed to load model' >&2\nexit 3\n"), 0o755))

	engine, err := NewBundledEngine(BundledOptions{Executable: enginePath, ModelPath: "/models/ggml-tiny.bin"})
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), Request{Audio: []byte("RIFF")})
	require.ErrorIs(t, err, ErrEngine)
	require.Contains(t, err.Error(), "failed to load model")

	_, err = engine.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrEngine)
}

func TestEnglishOnlyEngineRefusesTranslation(t *testing.T) {
	t.Parallel()

	engine := &BundledEngine{Executable: "/nonexistent", ModelPath: "ggml-base.en.bin", EnglishOnly: true}
	require.False(t, engine.SupportsTranslation())

	_, err := engine.Generate(context.Background(), Request{Audio: []byte("x"), Task: TaskTranslate})
	require.ErrorIs(t, err, ErrEngine)
	require.Contains(t, err.Error(), "cannot translate")
}

func TestIsMissingSharedLibraryError(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingSharedLibraryError("error while loading shared libraries: libwhisper.so.1: cannot open shared object file"))
	require.True(t, isMissingSharedLibraryError("dyld: Library not loaded: @rpath/libwhisper.dylib"))
	require.False(t, isMissingSharedLibraryError("some other runtime error"))
}

func TestIsIllegalInstructionError(t *testing.T) {
	t.Parallel()

	require.True(t, isIllegalInstructionError("signal: illegal instruction (core dumped)"))
	require.False(t, isIllegalInstructionError("some other runtime error"))
	require.False(t, isIllegalInstructionError(""))
}
