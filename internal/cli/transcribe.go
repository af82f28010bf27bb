package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxserve/internal/api"
	"github.com/fmueller/voxserve/internal/config"
	"github.com/fmueller/voxserve/internal/gate"
	"github.com/fmueller/voxserve/internal/transcript"
	"github.com/fmueller/voxserve/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type transcribeFlags struct {
	model        string
	language     string
	translate    bool
	format       string
	prompt       string
	temperature  float64
	output       string
	modelDir     string
	whisperPath  string
	autoDownload bool
	silenceGate  bool
}

func newTranscribeCmd(app *appState) *cobra.Command {
	var flags transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath := filepath.Clean(args[0])
			audio, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("audio file not found: %w", err)
			}

			cfg, err := app.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}

			return app.transcribe(cmd, cfg, flags, audioPath, audio)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.model, "model", "", "Served model name, catalog checkpoint or checkpoint path (default: first configured model)")
	f.StringVar(&flags.language, "language", "", "Language code (auto|en|de|...)")
	f.BoolVar(&flags.translate, "translate", false, "Translate into English instead of transcribing")
	f.StringVar(&flags.format, "format", string(transcript.FormatText), "Output format: json|text|srt|vtt")
	f.StringVar(&flags.prompt, "prompt", "", "Initial prompt to guide spelling and style")
	f.Float64Var(&flags.temperature, "temperature", 0, "Sampling temperature between 0 and 1")
	f.StringVarP(&flags.output, "output", "o", "", "Write the result to this file instead of stdout")
	f.StringVar(&flags.modelDir, "model-dir", "", "Directory where checkpoints are stored")
	f.StringVar(&flags.whisperPath, "whisper-path", "", "Path to the whisper-cli executable")
	f.BoolVar(&flags.autoDownload, "auto-download", true, "Download a missing catalog checkpoint")
	f.BoolVar(&flags.silenceGate, "silence-gate", true, "Skip the engine for near-silent WAV audio")

	return cmd
}

func (f transcribeFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
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
	cfg.Server.SilenceGate = f.silenceGate
	return cfg.Validate()
}

func (a *appState) transcribe(cmd *cobra.Command, cfg *config.Config, flags transcribeFlags, audioPath string, audio []byte) error {
	ctx := cmd.Context()

	model := selectModel(cfg, flags.model)
	registry, err := a.buildRegistry(ctx, cfg, []config.Model{model})
	if err != nil {
		return err
	}

	g, err := gate.New(gate.Options{Capacity: 1, MaxWait: -1, Logger: a.log().Named("gate")})
	if err != nil {
		return err
	}
	defer g.Close()

	service, err := api.NewService(api.Options{
		Registry:             registry,
		Gate:                 g,
		SilenceGate:          cfg.Server.SilenceGate,
		SilenceThresholdDBFS: cfg.Server.SilenceThresholdDBFS,
		Logger:               a.log().Named("api"),
	})
	if err != nil {
		return err
	}

	task := whisper.TaskTranscribe
	if flags.translate {
		task = whisper.TaskTranslate
	}

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", model.Name), zap.String("task", string(task)))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	resp, err := service.Handle(ctx, api.Request{
		Model:          model.Name,
		Audio:          audio,
		Language:       flags.language,
		Task:           task,
		Prompt:         flags.prompt,
		Temperature:    flags.temperature,
		ResponseFormat: flags.format,
	})
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	if isBlankPayload(resp) {
		a.log().Warn(noSpeechHint(audioPath))
	}

	if flags.output != "" {
		if err := os.WriteFile(flags.output, resp.Body, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		a.log().Info("wrote transcript", zap.String("path", flags.output))
		return nil
	}

	out := cmd.OutOrStdout()
	body := string(resp.Body)
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	_, err = fmt.Fprint(out, body)
	return err
}

func isBlankPayload(resp api.Response) bool {
	text := string(resp.Body)
	if resp.ContentType == transcript.ContentTypeJSON {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(resp.Body, &body); err == nil {
			text = body.Text
		}
	}
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "WEBVTT"))
	return text == "" || strings.EqualFold(text, whisper.BlankAudioToken)
}

func noSpeechHint(audioPath string) string {
	return fmt.Sprintf("No speech detected in %s. Check the recording level or pass --silence-gate=false.", filepath.Base(audioPath))
}
