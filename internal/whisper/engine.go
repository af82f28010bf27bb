package whisper

import (
	"context"
	"errors"

	"github.com/fmueller/voxserve/internal/transcript"
)

// ErrEngine wraps every failure reported by a speech recognition engine.
var ErrEngine = errors.New("engine failure")

type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// Granularity selects chunk-level or word-level timestamps.
type Granularity string

const (
	GranularityChunk Granularity = "chunk"
	GranularityWord  Granularity = "word"
)

type Request struct {
	Audio       []byte
	Task        Task
	Language    string
	Prompt      string
	Temperature float64
	Granularity Granularity
}

// Engine is a blocking speech-to-text capability. Calls on one engine must not
// overlap; callers serialize them through a gate.
type Engine interface {
	Generate(ctx context.Context, req Request) (transcript.Result, error)
}
