package server

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/fmueller/voxserve/internal/transcript"
	"github.com/fmueller/voxserve/internal/whisper"
	"go.uber.org/zap"
)

//go:embed ui/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type uiLanguage struct {
	Code string
	Name string
}

type uiPage struct {
	Version   string
	Models    []string
	Languages []uiLanguage
	Formats   []transcript.Format
	NeedToken bool
}

func (s *Server) handleUI(w http.ResponseWriter, _ *http.Request) {
	codes := whisper.LanguageCodes()
	languages := make([]uiLanguage, 0, len(codes))
	for _, code := range codes {
		name, _ := whisper.LanguageName(code)
		languages = append(languages, uiLanguage{Code: code, Name: name})
	}

	page := uiPage{
		Version:   s.version,
		Models:    s.service.Registry().Names(),
		Languages: languages,
		Formats:   transcript.Formats(),
		NeedToken: s.apiToken != "",
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		s.logger.Error("render ui", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
