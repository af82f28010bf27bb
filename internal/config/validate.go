package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fmueller/voxserve/internal/whisper"
)

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}
	if c.Server.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("server.concurrency must be at least 1, got %d", c.Server.Concurrency))
	}
	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB))
	}
	if c.Server.FetchTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("server.fetch_timeout_seconds must be at least 1, got %d", c.Server.FetchTimeoutSeconds))
	}
	if c.Engine.Threads < 0 {
		errs = append(errs, fmt.Errorf("engine.threads must not be negative, got %d", c.Engine.Threads))
	}
	if err := validateTimestamps("engine.timestamps", c.Engine.Timestamps); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		field := fmt.Sprintf("models[%d]", i)
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name must not be empty", field))
		} else {
			key := strings.ToLower(m.Name)
			if _, dup := seen[key]; dup {
				errs = append(errs, fmt.Errorf("%s.name %q is already used (names are case-insensitive)", field, m.Name))
			}
			seen[key] = struct{}{}
		}
		if m.Checkpoint == "" {
			errs = append(errs, fmt.Errorf("%s.checkpoint must not be empty", field))
		}
		if m.Language != "" && m.Language != whisper.AutoLanguage {
			if _, ok := whisper.LanguageName(m.Language); !ok {
				errs = append(errs, fmt.Errorf("%s.language %q is not a supported ISO-639-1 code", field, m.Language))
			}
		}
		if err := validateTimestamps(field+".timestamps", m.Timestamps); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateTimestamps(field, value string) error {
	switch whisper.Granularity(value) {
	case whisper.GranularityChunk, whisper.GranularityWord:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", field, whisper.GranularityChunk, whisper.GranularityWord, value)
	}
}
