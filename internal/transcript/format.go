package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format is a response_format value accepted by the API.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeSRT  = "application/x-subrip; charset=utf-8"
	ContentTypeVTT  = "text/vtt; charset=utf-8"
)

// Formats lists the supported response formats in display order.
func Formats() []Format {
	return []Format{FormatJSON, FormatText, FormatSRT, FormatVTT}
}

// ParseFormat validates a response_format value. Empty means json.
func ParseFormat(value string) (Format, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return FormatJSON, nil
	}
	for _, format := range Formats() {
		if trimmed == string(format) {
			return format, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported response_format %q (supported: json, text, srt, vtt)", ErrInvalidArgument, value)
}

type jsonBody struct {
	Text   string  `json:"text"`
	Chunks []Chunk `json:"chunks,omitempty"`
}

// Render encodes result in the requested format and returns the payload with
// its content type. Subtitle formats need timing information and fail when
// the result carries no chunks.
func Render(result Result, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(jsonBody{Text: result.Text, Chunks: result.Chunks})
		if err != nil {
			return nil, "", fmt.Errorf("encode json response: %w", err)
		}
		return payload, ContentTypeJSON, nil
	case FormatText:
		return []byte(result.Text), ContentTypeText, nil
	case FormatSRT:
		if result.Chunks == nil {
			return nil, "", fmt.Errorf("%w: srt output requires timestamped chunks", ErrInvalidArgument)
		}
		body, err := RenderSRT(result.Chunks)
		if err != nil {
			return nil, "", err
		}
		return []byte(body), ContentTypeSRT, nil
	case FormatVTT:
		if result.Chunks == nil {
			return nil, "", fmt.Errorf("%w: vtt output requires timestamped chunks", ErrInvalidArgument)
		}
		body, err := RenderVTT(result.Chunks)
		if err != nil {
			return nil, "", err
		}
		return []byte(body), ContentTypeVTT, nil
	default:
		return nil, "", fmt.Errorf("%w: unsupported response_format %q", ErrInvalidArgument, format)
	}
}
