// Package transcript holds the engine's output model and renders it into the
// wire formats served by the API: JSON, plain text, SRT and WebVTT.
package transcript

import (
	"encoding/json"
	"errors"
)

// ErrInvalidArgument marks input the caller must fix before retrying.
var ErrInvalidArgument = errors.New("invalid argument")

// Chunk is a time-bounded span of transcribed text. End is nil when the
// engine did not predict an ending timestamp.
type Chunk struct {
	Start float64
	End   *float64
	Text  string
}

// Result is the engine output for one request. Chunks are in chronological
// order; a nil slice means the engine produced no timing information.
type Result struct {
	Text   string
	Chunks []Chunk
}

type wireChunk struct {
	Timestamp [2]*float64 `json:"timestamp"`
	Text      string      `json:"text"`
}

// MarshalJSON encodes the chunk as {"timestamp": [start, end], "text": ...}
// with a null end when it is unknown.
func (c Chunk) MarshalJSON() ([]byte, error) {
	start := c.Start
	return json.Marshal(wireChunk{Timestamp: [2]*float64{&start, c.End}, Text: c.Text})
}

func (c *Chunk) UnmarshalJSON(data []byte) error {
	var wire wireChunk
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Timestamp[0] == nil {
		return errors.New("chunk timestamp is missing a start")
	}
	c.Start = *wire.Timestamp[0]
	c.End = wire.Timestamp[1]
	c.Text = wire.Text
	return nil
}

// Seconds returns a pointer to v, for building chunks with a known end.
func Seconds(v float64) *float64 {
	return &v
}
