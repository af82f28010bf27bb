package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/voxserve/internal/whisper"
	"github.com/spf13/cobra"
)

func newModelsCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List served models and catalog checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd)
			if err != nil {
				return err
			}
			modelDir, err := modelStorageDir(cfg.Engine.ModelDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			served := make([][]string, 0, len(cfg.Models))
			for _, model := range cfg.Models {
				language := model.Language
				if language == "" {
					language = whisper.AutoLanguage
				}
				served = append(served, []string{model.Name, model.Checkpoint, language, model.Timestamps, checkpointState(model.Checkpoint, modelDir)})
			}
			fmt.Fprintln(out, renderTable(
				"Served models",
				[]string{"Name", "Checkpoint", "Language", "Timestamps", "Status"},
				served,
			))

			catalog := make([][]string, 0, len(whisper.CatalogNames()))
			for _, name := range whisper.CatalogNames() {
				model, _ := whisper.LookupCatalog(name)
				translate := "yes"
				if strings.HasSuffix(model.Name, ".en") {
					translate = "no"
				}
				catalog = append(catalog, []string{model.Name, model.FileName, translate, checkpointState(name, modelDir)})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				"Catalog checkpoints in "+modelDir,
				[]string{"Checkpoint", "File", "Translate", "Status"},
				catalog,
			))
			return nil
		},
	}
}

func checkpointState(ref, modelDir string) string {
	resolved, err := whisper.ResolveModel(ref, modelDir)
	if err != nil {
		return "missing"
	}
	if resolved.NeedsDownload {
		return "not downloaded"
	}
	if info, err := os.Stat(resolved.Path); err == nil {
		return fmt.Sprintf("installed (%d MiB)", info.Size()>>20)
	}
	return "installed"
}
