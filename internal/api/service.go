package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fmueller/voxserve/internal/audio"
	"github.com/fmueller/voxserve/internal/download"
	"github.com/fmueller/voxserve/internal/transcript"
	"github.com/fmueller/voxserve/internal/whisper"
	"go.uber.org/zap"
)

// Runner admits engine calls. *gate.Gate satisfies it.
type Runner interface {
	Run(ctx context.Context, engine whisper.Engine, req whisper.Request) (transcript.Result, error)
}

type Options struct {
	Registry *whisper.Registry
	Gate     Runner
	// MaxFetchBytes bounds audio downloaded from a request URL.
	MaxFetchBytes int64
	HTTPClient    *http.Client
	// SilenceGate answers near-silent WAV input with an empty transcript
	// without running the engine.
	SilenceGate          bool
	SilenceThresholdDBFS float64
	Logger               *zap.Logger
}

type Response struct {
	Body        []byte
	ContentType string
}

type Service struct {
	registry      *whisper.Registry
	gate          Runner
	maxFetchBytes int64
	httpClient    *http.Client
	silenceGate   bool
	silenceDBFS   float64
	logger        *zap.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Registry == nil {
		return nil, errors.New("model registry is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("admission gate is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Service{
		registry:      opts.Registry,
		gate:          opts.Gate,
		maxFetchBytes: opts.MaxFetchBytes,
		httpClient:    opts.HTTPClient,
		silenceGate:   opts.SilenceGate,
		silenceDBFS:   opts.SilenceThresholdDBFS,
		logger:        opts.Logger,
	}, nil
}

func (s *Service) Registry() *whisper.Registry {
	return s.registry
}

// Handle validates req, resolves its audio, runs the engine through the gate
// and renders the result. Validation and fetch failures wrap
// ErrInvalidArgument and never take a gate slot.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	v, err := validate(s.registry, req)
	if err != nil {
		return Response{}, err
	}

	if len(v.engineRequest.Audio) == 0 {
		data, err := download.Fetch(ctx, download.FetchOptions{
			URL:        req.URL,
			MaxBytes:   s.maxFetchBytes,
			HTTPClient: s.httpClient,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Response{}, ctxErr
			}
			return Response{}, fmt.Errorf("%w: could not load audio from url: %w", ErrInvalidArgument, err)
		}
		if len(data) == 0 {
			return Response{}, fmt.Errorf("%w: url returned no audio", ErrInvalidArgument)
		}
		v.engineRequest.Audio = data
	}

	result, err := s.generate(ctx, v)
	if err != nil {
		return Response{}, err
	}

	body, contentType, err := transcript.Render(result, v.format)
	if err != nil {
		return Response{}, err
	}
	return Response{Body: body, ContentType: contentType}, nil
}

func (s *Service) generate(ctx context.Context, v validated) (transcript.Result, error) {
	logger := s.logger.With(zap.String("model", v.model), zap.String("task", string(v.engineRequest.Task)))

	if s.silenceGate && audio.LooksLikeWAV(v.engineRequest.Audio) {
		silent, metrics, err := audio.IsSilent(v.engineRequest.Audio, s.silenceDBFS)
		switch {
		case err != nil:
			logger.Debug("silence check skipped", zap.Error(err))
		case silent:
			logger.Info("audio is near-silent; skipping engine",
				zap.Float64("rms_dbfs", metrics.RMSdBFS),
				zap.Float64("peak_dbfs", metrics.PeakdBFS),
				zap.Duration("duration", metrics.Duration),
			)
			return transcript.Result{Chunks: []transcript.Chunk{}}, nil
		}
	}

	started := time.Now()
	result, err := s.gate.Run(ctx, v.engine, v.engineRequest)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Info("request cancelled by caller", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		case errors.Is(err, whisper.ErrEngine):
			logger.Error("engine failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		default:
			logger.Warn("request not admitted", zap.Error(err))
		}
		return transcript.Result{}, err
	}

	logger.Info("transcription complete",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("chunks", len(result.Chunks)),
		zap.Int("chars", len(result.Text)),
	)
	return result, nil
}
