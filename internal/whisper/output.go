package whisper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fmueller/voxserve/internal/transcript"
)

// BlankAudioToken is what whisper.cpp emits for segments without speech.
const BlankAudioToken = "[BLANK_AUDIO]"

type cliOutput struct {
	Transcription []cliSegment `json:"transcription"`
}

type cliSegment struct {
	Offsets struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text string `json:"text"`
}

// parseOutput converts whisper-cli -oj output into a result. Offsets are in
// milliseconds; a segment that does not end after it starts has no usable end.
func parseOutput(content []byte) (transcript.Result, error) {
	var out cliOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return transcript.Result{}, fmt.Errorf("%w: decode whisper output: %w", ErrEngine, err)
	}

	chunks := make([]transcript.Chunk, 0, len(out.Transcription))
	var text strings.Builder
	for _, segment := range out.Transcription {
		if isBlankAudio(segment.Text) {
			continue
		}

		chunk := transcript.Chunk{
			Start: float64(segment.Offsets.From) / 1000,
			Text:  segment.Text,
		}
		if segment.Offsets.To > segment.Offsets.From {
			chunk.End = transcript.Seconds(float64(segment.Offsets.To) / 1000)
		}
		chunks = append(chunks, chunk)
		text.WriteString(segment.Text)
	}

	return transcript.Result{Text: strings.TrimSpace(text.String()), Chunks: chunks}, nil
}

func isBlankAudio(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "" || strings.EqualFold(trimmed, BlankAudioToken)
}
