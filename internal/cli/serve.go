package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/voxserve/internal/api"
	"github.com/fmueller/voxserve/internal/config"
	"github.com/fmueller/voxserve/internal/gate"
	"github.com/fmueller/voxserve/internal/server"
	"github.com/fmueller/voxserve/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveFlags struct {
	listen         string
	concurrency    int
	maxWaitSeconds int
	apiToken       string
	noUI           bool
	modelDir       string
	whisperPath    string
	autoDownload   bool
	silenceGate    bool
}

func newServeCmd(app *appState) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.listen, "listen", config.DefaultListen, "Address to listen on")
	f.IntVar(&flags.concurrency, "concurrency", 1, "Engine calls allowed to run at once")
	f.IntVar(&flags.maxWaitSeconds, "max-wait-seconds", 300, "Reject requests that waited longer for an engine slot; negative waits forever")
	f.StringVar(&flags.apiToken, "api-token", "", "Require this bearer token on API requests")
	f.BoolVar(&flags.noUI, "no-ui", false, "Disable the browser UI")
	f.StringVar(&flags.modelDir, "model-dir", "", "Directory where checkpoints are stored")
	f.StringVar(&flags.whisperPath, "whisper-path", "", "Path to the whisper-cli executable")
	f.BoolVar(&flags.autoDownload, "auto-download", true, "Download missing catalog checkpoints at startup")
	f.BoolVar(&flags.silenceGate, "silence-gate", false, "Answer near-silent WAV uploads without running the engine")

	return cmd
}

// apply copies explicitly set flags over the file configuration.
func (f serveFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("listen") {
		cfg.Server.Listen = f.listen
	}
	if changed("concurrency") {
		cfg.Server.Concurrency = f.concurrency
	}
	if changed("max-wait-seconds") {
		cfg.Server.MaxWaitSeconds = f.maxWaitSeconds
	}
	if changed("api-token") {
		cfg.Server.APIToken = f.apiToken
	}
	if changed("no-ui") {
		cfg.Server.UI = !f.noUI
	}
	if changed("model-dir") {
		dir, err := config.ExpandPath(f.modelDir)
		if err != nil {
			return err
		}
		cfg.Engine.ModelDir = dir
	}
	if changed("whisper-path") {
		cfg.Engine.Executable = f.whisperPath
	}
	if changed("auto-download") {
		cfg.Engine.AutoDownload = f.autoDownload
	}
	if changed("silence-gate") {
		cfg.Server.SilenceGate = f.silenceGate
	}
	return cfg.Validate()
}

// serve blocks until ctx is cancelled.
func (a *appState) serve(ctx context.Context, cfg *config.Config) error {
	return a.serveWithReady(ctx, cfg, nil)
}

// serveWithReady reports the bound address on ready once the listener is up.
func (a *appState) serveWithReady(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	registry, err := a.buildRegistry(ctx, cfg, cfg.Models)
	if err != nil {
		return err
	}

	g, err := gate.New(gate.Options{
		Capacity: cfg.Server.Concurrency,
		MaxWait:  cfg.MaxWait(),
		Logger:   a.log().Named("gate"),
	})
	if err != nil {
		return err
	}

	service, err := api.NewService(api.Options{
		Registry:             registry,
		Gate:                 g,
		MaxFetchBytes:        cfg.MaxUploadBytes(),
		HTTPClient:           fetchClient(cfg),
		SilenceGate:          cfg.Server.SilenceGate,
		SilenceThresholdDBFS: cfg.Server.SilenceThresholdDBFS,
		Logger:               a.log().Named("api"),
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Listen:         cfg.Server.Listen,
		Service:        service,
		Gate:           g,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		APIToken:       cfg.Server.APIToken,
		UI:             cfg.Server.UI,
		Version:        version.Resolve(),
		Logger:         a.log(),
	})
	if err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	a.log().Info("voxserve ready",
		zap.String("address", srv.Addr()),
		zap.Strings("models", registry.Names()),
		zap.Int("concurrency", cfg.Server.Concurrency),
		zap.Duration("max_wait", cfg.MaxWait()),
	)
	if ready != nil {
		ready <- srv.Addr()
	}

	<-ctx.Done()
	a.log().Info("shutting down")
	srv.Stop()
	return nil
}

func fetchClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.FetchTimeout()}
}
