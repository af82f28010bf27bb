package cli

import (
	"fmt"
	"os"

	"github.com/fmueller/voxserve/internal/config"
	"github.com/fmueller/voxserve/internal/logging"
	"github.com/fmueller/voxserve/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	configPath string
	verbose    bool
	jsonLogs   bool
	logLevel   string
	noProgress bool

	logger *zap.Logger

	// engineFactory builds the engine for one served model. Tests replace it
	// to avoid whisper-cli.
	engineFactory engineFactory
}

func NewRootCmd() *cobra.Command {
	app := &appState{}
	app.engineFactory = app.newBundledEngine
	return newRootCmd(app)
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voxserve",
		Short:         "Serve whisper speech-to-text over an OpenAI-compatible HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, Level: app.logLevel})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Path to voxserve.toml (default: per-user config directory)")
	flags.BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	flags.StringVar(&app.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads the configuration file and rebuilds the logger when the
// file configures logging and no logging flag was given.
func (a *appState) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, path, exists, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	opts := logging.Options{Verbose: a.verbose, JSON: a.jsonLogs, Level: a.logLevel}
	if !flags.Changed("json") {
		opts.JSON = cfg.Logging.JSON
	}
	if !flags.Changed("log-level") && !flags.Changed("verbose") {
		opts.Level = cfg.Logging.Level
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	if exists {
		a.log().Debug("loaded config", zap.String("path", path))
	} else {
		a.log().Debug("no config file found; using defaults", zap.String("path", path))
	}
	return cfg, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
