package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/voxserve/internal/config"
	"github.com/fmueller/voxserve/internal/download"
	"github.com/fmueller/voxserve/internal/platform"
	"github.com/fmueller/voxserve/internal/whisper"
	"go.uber.org/zap"
)

type engineFactory func(ctx context.Context, cfg *config.Config, model config.Model) (whisper.Engine, error)

// buildRegistry creates one engine per configured model.
func (a *appState) buildRegistry(ctx context.Context, cfg *config.Config, models []config.Model) (*whisper.Registry, error) {
	factory := a.engineFactory
	if factory == nil {
		factory = a.newBundledEngine
	}

	engines := make(map[string]whisper.Engine, len(models))
	for _, model := range models {
		engine, err := factory(ctx, cfg, model)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", model.Name, err)
		}
		engines[model.Name] = engine
		a.log().Info("model ready", zap.String("model", model.Name), zap.String("checkpoint", model.Checkpoint))
	}
	return whisper.NewRegistry(engines)
}

func (a *appState) newBundledEngine(ctx context.Context, cfg *config.Config, model config.Model) (whisper.Engine, error) {
	resolved, err := a.ensureModelAvailable(ctx, cfg, model.Checkpoint)
	if err != nil {
		return nil, err
	}

	return whisper.NewBundledEngine(whisper.BundledOptions{
		Executable:  cfg.Engine.Executable,
		ModelPath:   resolved.Path,
		Language:    model.Language,
		Granularity: whisper.Granularity(model.Timestamps),
		Threads:     cfg.Engine.Threads,
		EnglishOnly: resolved.EnglishOnly(),
		Logger:      a.log().Named("engine").With(zap.String("model", model.Name)),
	})
}

func (a *appState) ensureModelAvailable(ctx context.Context, cfg *config.Config, checkpoint string) (whisper.ResolvedModel, error) {
	modelDir, err := modelStorageDir(cfg.Engine.ModelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(checkpoint, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !cfg.Engine.AutoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("checkpoint %q is missing at %s; run `voxserve setup --model %s` or set engine.auto_download = true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("checkpoint not found, downloading", zap.String("checkpoint", resolved.Name), zap.String("destination", resolved.Path))
	if err := download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		NoProgress:     !a.progressEnabled(),
		Logger:         a.log(),
	}); err != nil {
		return whisper.ResolvedModel{}, fmt.Errorf("download checkpoint %q: %w", resolved.Name, err)
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

func modelStorageDir(override string) (string, error) {
	dir, err := platform.ResolveModelDir(override)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

// selectModel finds a configured model by name. An unconfigured catalog name
// or checkpoint path is served ad hoc under its own name.
func selectModel(cfg *config.Config, name string) config.Model {
	name = strings.TrimSpace(name)
	if name == "" {
		return cfg.Models[0]
	}
	for _, model := range cfg.Models {
		if strings.EqualFold(model.Name, name) {
			return model
		}
	}
	return config.Model{Name: name, Checkpoint: name, Timestamps: cfg.Engine.Timestamps}
}
