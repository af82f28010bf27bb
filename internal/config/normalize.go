package config

import (
	"strings"

	"github.com/fmueller/voxserve/internal/whisper"
)

func (c *Config) normalize() error {
	c.Server.Listen = strings.TrimSpace(c.Server.Listen)
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)

	c.Engine.Executable = strings.TrimSpace(c.Engine.Executable)
	c.Engine.Timestamps = strings.ToLower(strings.TrimSpace(c.Engine.Timestamps))
	if c.Engine.Timestamps == "" {
		c.Engine.Timestamps = string(whisper.GranularityChunk)
	}

	if dir := strings.TrimSpace(c.Engine.ModelDir); dir != "" {
		expanded, err := expandPath(dir)
		if err != nil {
			return err
		}
		c.Engine.ModelDir = expanded
	}

	if len(c.Models) == 0 {
		c.Models = []Model{{Name: DefaultServedModel, Checkpoint: DefaultCheckpoint}}
	}
	for i := range c.Models {
		m := &c.Models[i]
		m.Name = strings.TrimSpace(m.Name)
		m.Checkpoint = strings.TrimSpace(m.Checkpoint)
		m.Language = strings.ToLower(strings.TrimSpace(m.Language))
		m.Timestamps = strings.ToLower(strings.TrimSpace(m.Timestamps))
		if m.Timestamps == "" {
			m.Timestamps = c.Engine.Timestamps
		}
		if strings.HasPrefix(m.Checkpoint, "~") {
			expanded, err := expandPath(m.Checkpoint)
			if err != nil {
				return err
			}
			m.Checkpoint = expanded
		}
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
