package cli

import (
	"fmt"

	"github.com/fmueller/voxserve/internal/config"
	"github.com/fmueller/voxserve/internal/download"
	"github.com/fmueller/voxserve/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	var (
		checkpoints []string
		modelDir    string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model checkpoints",
		Long:  "Download and verify the checkpoints of every configured model, or only those given with --model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("model-dir") {
				dir, err := config.ExpandPath(modelDir)
				if err != nil {
					return err
				}
				cfg.Engine.ModelDir = dir
			}

			refs := checkpoints
			if len(refs) == 0 {
				refs = configuredCheckpoints(cfg)
			}

			dir, err := modelStorageDir(cfg.Engine.ModelDir)
			if err != nil {
				return err
			}

			for _, ref := range refs {
				if err := app.setupCheckpoint(cmd, dir, ref); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&checkpoints, "model", nil, "Catalog checkpoint to install (repeatable; default: all configured)")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Directory where checkpoints are stored")

	return cmd
}

func (a *appState) setupCheckpoint(cmd *cobra.Command, modelDir, ref string) error {
	resolved, err := whisper.ResolveModel(ref, modelDir)
	if err != nil {
		return err
	}
	if resolved.IsCustomPath {
		a.log().Info("skipping custom checkpoint path", zap.String("path", resolved.Path))
		fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s is a custom path; nothing to download\n", resolved.Path)
		return nil
	}

	if !resolved.NeedsDownload {
		if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
			a.log().Warn("checkpoint checksum verification failed; downloading fresh copy", zap.String("checkpoint", resolved.Name), zap.Error(err))
			resolved.NeedsDownload = true
		}
	}

	if !resolved.NeedsDownload {
		a.log().Info("checkpoint already present", zap.String("checkpoint", resolved.Name), zap.String("path", resolved.Path))
		fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s already present at %s\n", resolved.Name, resolved.Path)
		return nil
	}

	a.log().Info("downloading checkpoint", zap.String("checkpoint", resolved.Name), zap.String("path", resolved.Path))
	if err := download.DownloadFile(cmd.Context(), download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		NoProgress:     !a.progressEnabled(),
		Logger:         a.log(),
	}); err != nil {
		return fmt.Errorf("download checkpoint %s: %w", resolved.Name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s installed at %s\n", resolved.Name, resolved.Path)
	return nil
}

// configuredCheckpoints lists each distinct checkpoint in config order.
func configuredCheckpoints(cfg *config.Config) []string {
	seen := make(map[string]struct{}, len(cfg.Models))
	refs := make([]string, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		if _, ok := seen[model.Checkpoint]; ok {
			continue
		}
		seen[model.Checkpoint] = struct{}{}
		refs = append(refs, model.Checkpoint)
	}
	return refs
}
