// Package download fetches model checkpoints to disk and audio clips into
// memory.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const userAgent = "voxserve/1"

var (
	// ErrTooLarge is returned when a fetched body exceeds the configured limit.
	ErrTooLarge         = errors.New("response body exceeds size limit")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// StatusError reports a non-200 response. Client errors are not retried.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

func (e *StatusError) permanent() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

type Options struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	Retries        int
	NoProgress     bool
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// DownloadFile streams URL into Destination through a .part file and renames
// it only after the SHA-256 matches. Transient failures are retried with a
// linear backoff; 4xx responses fail at once.
func DownloadFile(ctx context.Context, opts Options) error {
	if opts.URL == "" {
		return errors.New("download URL is required")
	}
	if opts.Destination == "" {
		return errors.New("destination path is required")
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	expected := normalizeChecksum(opts.ExpectedSHA256)
	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if attempt > 1 {
			opts.Logger.Warn("retrying download", zap.Int("attempt", attempt), zap.Int("max", opts.Retries), zap.String("url", opts.URL), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
		}

		size, err := downloadOnce(ctx, opts, expected)
		if err == nil {
			opts.Logger.Info("download complete",
				zap.String("destination", opts.Destination),
				zap.Int64("bytes", size),
				zap.Duration("elapsed", time.Since(started)),
			)
			return nil
		}
		lastErr = err

		var statusErr *StatusError
		if ctx.Err() != nil || (errors.As(err, &statusErr) && statusErr.permanent()) {
			break
		}
	}

	return lastErr
}

// VerifyFileChecksum hashes path and compares it with expectedSHA256. An
// empty expectation always passes.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := normalizeChecksum(expectedSHA256)
	if expected == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	return compareChecksum(h, expected)
}

func normalizeChecksum(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func compareChecksum(h hash.Hash, expected string) error {
	if expected == "" {
		return nil
	}
	if actual := hex.EncodeToString(h.Sum(nil)); actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp, nil
}

func downloadOnce(ctx context.Context, opts Options, expected string) (int64, error) {
	resp, err := get(ctx, opts.HTTPClient, opts.URL)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", opts.URL, err)
	}
	defer resp.Body.Close()

	tempPath := opts.Destination + ".part"
	outFile, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		_ = outFile.Close()
		if !committed {
			_ = os.Remove(tempPath)
		}
	}()

	h := sha256.New()
	sinks := []io.Writer{outFile, h}
	bar := newProgressBar(opts.NoProgress, resp.ContentLength, filepath.Base(opts.Destination))
	if bar != nil {
		sinks = append(sinks, bar)
	}

	size, err := io.Copy(io.MultiWriter(sinks...), resp.Body)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return 0, fmt.Errorf("download body: %w", err)
	}

	if err := outFile.Sync(); err != nil {
		return 0, fmt.Errorf("sync temp file: %w", err)
	}
	if err := compareChecksum(h, expected); err != nil {
		return 0, err
	}
	if err := outFile.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, opts.Destination); err != nil {
		return 0, fmt.Errorf("move temp file into destination: %w", err)
	}

	committed = true
	return size, nil
}

// newProgressBar returns nil unless stderr is a terminal and the size is known.
func newProgressBar(disabled bool, contentLength int64, label string) *progressbar.ProgressBar {
	if disabled || contentLength <= 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressbar.NewOptions64(
		contentLength,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWidth(24),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}
