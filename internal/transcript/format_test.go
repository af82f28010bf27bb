package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat(" SRT ")
	require.NoError(t, err)
	require.Equal(t, FormatSRT, format)

	_, err = ParseFormat("verbose_json")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Contains(t, err.Error(), "verbose_json")
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()

	payload, contentType, err := Render(Result{Text: "hi there", Chunks: sampleChunks()}, FormatJSON)
	require.NoError(t, err)
	require.Equal(t, ContentTypeJSON, contentType)
	require.JSONEq(t, `{"text":"hi there","chunks":[{"timestamp":[0.5,0.9],"text":"hi "},{"timestamp":[1,null],"text":"there"}]}`, string(payload))

	var decoded struct {
		Text   string  `json:"text"`
		Chunks []Chunk `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Len(t, decoded.Chunks, 2)
	require.Nil(t, decoded.Chunks[1].End)
}

func TestRenderJSONOmitsMissingChunks(t *testing.T) {
	t.Parallel()

	payload, _, err := Render(Result{Text: "hello"}, FormatJSON)
	require.NoError(t, err)
	require.JSONEq(t, `{"text":"hello"}`, string(payload))
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	payload, contentType, err := Render(Result{Text: "hello", Chunks: sampleChunks()}, FormatText)
	require.NoError(t, err)
	require.Equal(t, ContentTypeText, contentType)
	require.Equal(t, "hello", string(payload))
}

func TestRenderSubtitlesRequireChunks(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatSRT, FormatVTT} {
		_, _, err := Render(Result{Text: "hello"}, format)
		require.ErrorIs(t, err, ErrInvalidArgument)
	}

	payload, contentType, err := Render(Result{Text: "", Chunks: []Chunk{}}, FormatVTT)
	require.NoError(t, err)
	require.Equal(t, ContentTypeVTT, contentType)
	require.Equal(t, "WEBVTT\n\n", string(payload))
}

func TestRenderUnknownFormat(t *testing.T) {
	t.Parallel()

	_, _, err := Render(Result{Text: "x"}, Format("xml"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Contains(t, err.Error(), "xml")
}
