package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fmueller/voxserve/internal/api"
	"github.com/fmueller/voxserve/internal/gate"
	"github.com/fmueller/voxserve/internal/whisper"
	"go.uber.org/zap"
)

type endpoint int

const (
	taskTranscriptions endpoint = iota
	taskTranslations
)

const multipartMemory = 32 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type modelList struct {
	Object string      `json:"object"`
	Data   []modelInfo `json:"data"`
}

type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type health struct {
	Status  string     `json:"status"`
	Version string     `json:"version,omitempty"`
	Models  []string   `json:"models"`
	Gate    gate.Stats `json:"gate"`
}

func (s *Server) handleAudio(kind endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.parseAudioForm(w, r, kind)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}

		resp, err := s.service.Handle(r.Context(), req)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}

		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Body)
	}
}

func (s *Server) parseAudioForm(w http.ResponseWriter, r *http.Request, kind endpoint) (api.Request, error) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return api.Request{}, fmt.Errorf("%w: upload exceeds %d bytes", api.ErrInvalidArgument, tooLarge.Limit)
		}
		return api.Request{}, fmt.Errorf("%w: malformed form: %w", api.ErrInvalidArgument, err)
	}

	temperature, err := api.ParseTemperature(r.FormValue("temperature"))
	if err != nil {
		return api.Request{}, err
	}

	req := api.Request{
		Model:          r.FormValue("model"),
		URL:            strings.TrimSpace(r.FormValue("url")),
		Prompt:         r.FormValue("prompt"),
		Temperature:    temperature,
		ResponseFormat: r.FormValue("response_format"),
		Task:           whisper.TaskTranscribe,
	}
	if kind == taskTranslations {
		req.Task = whisper.TaskTranslate
	} else {
		req.Language = r.FormValue("language")
	}

	audio, err := readUpload(r)
	if err != nil {
		return api.Request{}, err
	}
	req.Audio = audio
	return req, nil
}

func readUpload(r *http.Request) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read file field: %w", api.ErrInvalidArgument, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, fmt.Errorf("%w: read upload: %w", api.ErrInvalidArgument, err)
	}
	return buf.Bytes(), nil
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	names := s.service.Registry().Names()
	list := modelList{Object: "list", Data: make([]modelInfo, 0, len(names))}
	for _, name := range names {
		list.Data = append(list.Data, modelInfo{ID: name, Object: "model", OwnedBy: "voxserve"})
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, health{
		Status:  "ok",
		Version: s.version,
		Models:  s.service.Registry().Names(),
		Gate:    s.gate.Stats(),
	})
}

// statusFor maps service errors onto the HTTP contract: invalid input is
// 400, admission failures and abandoned requests 503, everything else 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, api.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, gate.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()

	logger := s.logger.With(zap.String("request_id", requestIDFrom(r.Context())), zap.Int("status", status))
	switch status {
	case http.StatusInternalServerError:
		logger.Error("request failed", zap.Error(err))
		message = "internal server error"
	case http.StatusServiceUnavailable:
		logger.Warn("request unavailable", zap.Error(err))
	default:
		logger.Debug("request rejected", zap.Error(err))
	}

	s.writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Code: status}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
