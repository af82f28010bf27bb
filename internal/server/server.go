// Package server exposes the transcription service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fmueller/voxserve/internal/api"
	"github.com/fmueller/voxserve/internal/gate"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Admission is the part of the gate the server needs for health reporting
// and shutdown.
type Admission interface {
	Stats() gate.Stats
	Close()
}

type Options struct {
	Listen         string
	Service        *api.Service
	Gate           Admission
	MaxUploadBytes int64
	APIToken       string
	UI             bool
	Version        string
	Logger         *zap.Logger
}

type Server struct {
	listen         string
	service        *api.Service
	gate           Admission
	maxUploadBytes int64
	apiToken       string
	ui             bool
	version        string
	logger         *zap.Logger

	handler  http.Handler
	server   *http.Server
	listener net.Listener
	stopOnce sync.Once
}

func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("transcription service is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("admission gate is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		listen:         strings.TrimSpace(opts.Listen),
		service:        opts.Service,
		gate:           opts.Gate,
		maxUploadBytes: opts.MaxUploadBytes,
		apiToken:       strings.TrimSpace(opts.APIToken),
		ui:             opts.UI,
		version:        opts.Version,
		logger:         opts.Logger.With(zap.String("component", "http")),
	}
	s.handler = s.routes()

	// No WriteTimeout: a request may legitimately wait minutes for the engine.
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/audio/transcriptions", s.auth(s.handleAudio(taskTranscriptions)))
	mux.Handle("POST /v1/audio/translations", s.auth(s.handleAudio(taskTranslations)))
	mux.Handle("GET /v1/models", s.auth(http.HandlerFunc(s.handleModels)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.ui {
		mux.HandleFunc("GET /{$}", s.handleUI)
	}

	return s.requestID(s.accessLog(cors(mux)))
}

// Start listens and serves in the background. Cancelling ctx triggers Stop.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listen, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("listening", zap.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listen
	}
	return s.listener.Addr().String()
}

// Stop closes the gate so queued requests fail fast, then drains in-flight
// HTTP requests.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.gate.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", zap.Error(err))
		}
		s.logger.Info("server stopped")
	})
}
