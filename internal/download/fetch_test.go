package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchReadsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, userAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("RIFF-audio"))
	}))
	defer server.Close()

	data, err := Fetch(context.Background(), FetchOptions{URL: server.URL + "/clip.wav", MaxBytes: 1024})
	require.NoError(t, err)
	require.Equal(t, []byte("RIFF-audio"), data)
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	_, err := Fetch(context.Background(), FetchOptions{URL: server.URL, MaxBytes: 16})
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := Fetch(context.Background(), FetchOptions{URL: server.URL})
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateURL("https://example.com/a.wav"))
	require.Error(t, ValidateURL(""))
	require.Error(t, ValidateURL("file:///etc/passwd"))
	require.Error(t, ValidateURL("http://"))
	require.Error(t, ValidateURL("::not a url"))
}
