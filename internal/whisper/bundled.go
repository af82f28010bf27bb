package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/fmueller/voxserve/internal/platform"
	"github.com/fmueller/voxserve/internal/transcript"
	"go.uber.org/zap"
)

// EnginePathEnv overrides the whisper-cli executable used by every engine.
const EnginePathEnv = "VOXSERVE_WHISPER_PATH"

// BundledOptions configures an engine bound to one checkpoint.
type BundledOptions struct {
	Executable  string
	ModelPath   string
	Language    string
	Granularity Granularity
	Threads     int
	EnglishOnly bool
	Logger      *zap.Logger
}

// BundledEngine runs whisper-cli once per request and reads its JSON output.
type BundledEngine struct {
	Executable  string
	ModelPath   string
	Language    string
	Granularity Granularity
	Threads     int
	EnglishOnly bool
	Logger      *zap.Logger
}

func NewBundledEngine(opts BundledOptions) (*BundledEngine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, fmt.Errorf("model path is required")
	}

	executable, err := resolveExecutable(opts.Executable)
	if err != nil {
		return nil, err
	}

	granularity := opts.Granularity
	if granularity == "" {
		granularity = GranularityChunk
	}

	return &BundledEngine{
		Executable:  executable,
		ModelPath:   opts.ModelPath,
		Language:    opts.Language,
		Granularity: granularity,
		Threads:     opts.Threads,
		EnglishOnly: opts.EnglishOnly,
		Logger:      opts.Logger,
	}, nil
}

// SupportsTranslation is false for English-only checkpoints.
func (b *BundledEngine) SupportsTranslation() bool {
	return !b.EnglishOnly
}

func resolveExecutable(configured string) (string, error) {
	if configured = strings.TrimSpace(configured); configured != "" {
		if err := ensureExecutable(configured); err != nil {
			return "", fmt.Errorf("configured whisper engine is not executable: %w", err)
		}
		return configured, nil
	}

	if override := strings.TrimSpace(os.Getenv(EnginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return "", fmt.Errorf("%s is not executable: %w", EnginePathEnv, err)
		}
		return override, nil
	}

	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve voxserve executable path: %w", err)
	}

	if bundled, err := ResolveBundledEnginePath(self); err == nil {
		return bundled, nil
	}

	if onPath, err := exec.LookPath(engineBinaryName()); err == nil {
		return onPath, nil
	}

	return "", fmt.Errorf("whisper engine not found near %s or on PATH; install whisper-cli or set %s", self, EnginePathEnv)
}

func ResolveBundledEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s, expected at ../libexec/whisper/%s", selfExecutable, engineBinaryName())
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	host := platform.CurrentRuntime()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", host.Target(), engineName),
		filepath.Join(binDir, engineName),
	}
}

// Generate blocks until whisper-cli has processed the whole clip. The process
// is bound to ctx, so callers that must not interrupt it pass a context
// without cancellation.
func (b *BundledEngine) Generate(ctx context.Context, req Request) (transcript.Result, error) {
	if len(req.Audio) == 0 {
		return transcript.Result{}, fmt.Errorf("%w: audio is empty", ErrEngine)
	}
	if req.Task == TaskTranslate && b.EnglishOnly {
		return transcript.Result{}, fmt.Errorf("%w: English-only model %s cannot translate", ErrEngine, filepath.Base(b.ModelPath))
	}
	if err := ensureExecutable(b.Executable); err != nil {
		return transcript.Result{}, fmt.Errorf("%w: whisper engine missing or not executable: %w", ErrEngine, err)
	}

	workDir, err := os.MkdirTemp("", "voxserve-")
	if err != nil {
		return transcript.Result{}, fmt.Errorf("%w: create work directory: %w", ErrEngine, err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "input.wav")
	if err := os.WriteFile(audioPath, req.Audio, 0o600); err != nil {
		return transcript.Result{}, fmt.Errorf("%w: write audio: %w", ErrEngine, err)
	}

	outBase := filepath.Join(workDir, "output")
	args := b.buildArgs(req, audioPath, outBase)

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = ioDiscard{}
	cmd.Stderr = &stderr

	b.Logger.Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return transcript.Result{}, fmt.Errorf("%w: whisper engine at %s is missing required shared libraries (%s)", ErrEngine, b.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return transcript.Result{}, fmt.Errorf("%w: whisper engine crashed with an illegal CPU instruction; "+
				"set %s to a whisper-cli binary built for this CPU", ErrEngine, EnginePathEnv)
		}
		return transcript.Result{}, fmt.Errorf("%w: whisper transcribe failed: %w (%s)", ErrEngine, err, errText)
	}

	content, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return transcript.Result{}, fmt.Errorf("%w: read whisper output: %w", ErrEngine, err)
	}

	return parseOutput(content)
}

func (b *BundledEngine) buildArgs(req Request, audioPath, outBase string) []string {
	args := []string{"-m", b.ModelPath, "-f", audioPath, "-oj", "-of", outBase, "-np"}

	language := NormalizeLanguage(req.Language)
	if language == AutoLanguage && strings.TrimSpace(b.Language) != "" {
		language = NormalizeLanguage(b.Language)
	}
	args = append(args, "-l", language)

	if req.Task == TaskTranslate {
		args = append(args, "-tr")
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	if req.Temperature > 0 {
		args = append(args, "-tp", strconv.FormatFloat(req.Temperature, 'f', -1, 64))
	}

	granularity := req.Granularity
	if granularity == "" {
		granularity = b.Granularity
	}
	if granularity == GranularityWord {
		args = append(args, "-ml", "1")
	}

	if b.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(b.Threads))
	}

	return args
}

type ioDiscard struct{}

func (ioDiscard) Write(p []byte) (int, error) {
	return len(p), nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
