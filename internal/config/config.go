// Package config loads the voxserve TOML configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxserve/internal/platform"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP and admission settings.
type Server struct {
	Listen               string  `toml:"listen"`
	Concurrency          int     `toml:"concurrency"`
	MaxWaitSeconds       int     `toml:"max_wait_seconds"`
	MaxUploadMB          int     `toml:"max_upload_mb"`
	FetchTimeoutSeconds  int     `toml:"fetch_timeout_seconds"`
	APIToken             string  `toml:"api_token"`
	UI                   bool    `toml:"ui"`
	SilenceGate          bool    `toml:"silence_gate"`
	SilenceThresholdDBFS float64 `toml:"silence_threshold_dbfs"`
}

// Engine contains settings shared by every whisper-cli engine.
type Engine struct {
	Executable   string `toml:"executable"`
	ModelDir     string `toml:"model_dir"`
	AutoDownload bool   `toml:"auto_download"`
	Threads      int    `toml:"threads"`
	Timestamps   string `toml:"timestamps"`
}

// Model binds a served model name to a checkpoint.
type Model struct {
	// Name is what clients send in the "model" field.
	Name string `toml:"name"`
	// Checkpoint is a catalog name (tiny, small, ...) or a path to a ggml file.
	Checkpoint string `toml:"checkpoint"`
	// Language is used when a transcription request leaves it unset.
	Language   string `toml:"language"`
	Timestamps string `toml:"timestamps"`
}

type Logging struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

type Config struct {
	Server  Server  `toml:"server"`
	Engine  Engine  `toml:"engine"`
	Models  []Model `toml:"models"`
	Logging Logging `toml:"logging"`
}

// Load locates, parses, normalizes and validates a configuration file. A
// missing file yields the defaults. The resolved path and whether it existed
// are returned alongside the config.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := platform.ResolveConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("voxserve.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// MaxWait converts max_wait_seconds; negative values disable the bound.
func (c *Config) MaxWait() time.Duration {
	if c.Server.MaxWaitSeconds < 0 {
		return -1
	}
	return time.Duration(c.Server.MaxWaitSeconds) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Server.FetchTimeoutSeconds) * time.Second
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
