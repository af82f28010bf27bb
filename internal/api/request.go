// Package api validates transcription requests and drives them through the
// admission gate and response formatter.
package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fmueller/voxserve/internal/download"
	"github.com/fmueller/voxserve/internal/transcript"
	"github.com/fmueller/voxserve/internal/whisper"
)

// ErrInvalidArgument marks requests that can never succeed as sent.
var ErrInvalidArgument = transcript.ErrInvalidArgument

// DefaultModel is used when a request names no model.
const DefaultModel = "whisper-1"

// Request carries one transcription or translation call. Exactly one of
// Audio and URL must be set.
type Request struct {
	Model          string
	Audio          []byte
	URL            string
	Language       string
	Task           whisper.Task
	Prompt         string
	Temperature    float64
	ResponseFormat string
}

// ParseTemperature reads a form value. Empty means 0.
func ParseTemperature(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: temperature %q is not a number", ErrInvalidArgument, raw)
	}
	return value, nil
}

// validated is a request that passed every check and is ready for the gate.
type validated struct {
	engine        whisper.Engine
	model         string
	format        transcript.Format
	engineRequest whisper.Request
}

type translationSupporter interface {
	SupportsTranslation() bool
}

// Validate checks req against the registry without touching the gate. Every
// failure wraps ErrInvalidArgument.
func Validate(registry *whisper.Registry, req Request) error {
	_, err := validate(registry, req)
	return err
}

func validate(registry *whisper.Registry, req Request) (validated, error) {
	format, err := transcript.ParseFormat(req.ResponseFormat)
	if err != nil {
		return validated{}, err
	}

	if math.IsNaN(req.Temperature) || req.Temperature < 0 || req.Temperature > 1 {
		return validated{}, fmt.Errorf("%w: temperature must be between 0 and 1, got %v", ErrInvalidArgument, req.Temperature)
	}

	task := req.Task
	if task == "" {
		task = whisper.TaskTranscribe
	}
	if task != whisper.TaskTranscribe && task != whisper.TaskTranslate {
		return validated{}, fmt.Errorf("%w: unknown task %q", ErrInvalidArgument, task)
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultModel
	}
	engine, ok := registry.Lookup(model)
	if !ok {
		return validated{}, fmt.Errorf("%w: model %q is not supported (available: %s)", ErrInvalidArgument, model, strings.Join(registry.Names(), ", "))
	}
	if task == whisper.TaskTranslate {
		if ts, ok := engine.(translationSupporter); ok && !ts.SupportsTranslation() {
			return validated{}, fmt.Errorf("%w: model %q is English-only and cannot translate", ErrInvalidArgument, model)
		}
	}

	hasAudio := len(req.Audio) > 0
	hasURL := strings.TrimSpace(req.URL) != ""
	switch {
	case hasAudio && hasURL:
		return validated{}, fmt.Errorf("%w: provide either file or url, not both", ErrInvalidArgument)
	case !hasAudio && !hasURL:
		return validated{}, fmt.Errorf("%w: either file or url is required", ErrInvalidArgument)
	}
	if hasURL {
		if err := download.ValidateURL(strings.TrimSpace(req.URL)); err != nil {
			return validated{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	language := ""
	if task == whisper.TaskTranscribe {
		language = whisper.NormalizeLanguage(req.Language)
		if language != whisper.AutoLanguage {
			if _, known := whisper.LanguageName(language); !known {
				return validated{}, fmt.Errorf("%w: language %q is not a supported ISO-639-1 code", ErrInvalidArgument, req.Language)
			}
		}
	}

	return validated{
		engine: engine,
		model:  strings.ToLower(model),
		format: format,
		engineRequest: whisper.Request{
			Audio:       req.Audio,
			Task:        task,
			Language:    language,
			Prompt:      strings.TrimSpace(req.Prompt),
			Temperature: req.Temperature,
		},
	}, nil
}
