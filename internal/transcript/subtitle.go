package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

const vttHeader = "WEBVTT\n\n"

// RenderSRT renders chunks as numbered SubRip cues.
func RenderSRT(chunks []Chunk) (string, error) {
	var b strings.Builder
	for i, chunk := range Repair(chunks) {
		timing, err := cueTiming(chunk, DialectSRT)
		if err != nil {
			return "", fmt.Errorf("srt cue %d: %w", i+1, err)
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		writeCue(&b, timing, chunk.Text)
	}
	return b.String(), nil
}

// RenderVTT renders chunks as a WebVTT document. An empty sequence still
// yields the header.
func RenderVTT(chunks []Chunk) (string, error) {
	var b strings.Builder
	b.WriteString(vttHeader)
	for i, chunk := range Repair(chunks) {
		timing, err := cueTiming(chunk, DialectVTT)
		if err != nil {
			return "", fmt.Errorf("vtt cue %d: %w", i+1, err)
		}
		writeCue(&b, timing, chunk.Text)
	}
	return b.String(), nil
}

func cueTiming(chunk Chunk, dialect Dialect) (string, error) {
	start, err := FormatTimestamp(chunk.Start, dialect)
	if err != nil {
		return "", err
	}
	end, err := FormatTimestamp(*chunk.End, dialect)
	if err != nil {
		return "", err
	}
	return start + " --> " + end, nil
}

func writeCue(b *strings.Builder, timing, text string) {
	b.WriteString(timing)
	b.WriteByte('\n')
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\n")
}
