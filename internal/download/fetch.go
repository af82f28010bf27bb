package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type FetchOptions struct {
	URL        string
	MaxBytes   int64
	HTTPClient *http.Client
}

// Fetch reads a remote audio clip into memory. Only http and https URLs are
// accepted and bodies larger than MaxBytes fail with ErrTooLarge.
func Fetch(ctx context.Context, opts FetchOptions) ([]byte, error) {
	if err := ValidateURL(opts.URL); err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}

	resp, err := get(ctx, opts.HTTPClient, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", opts.URL, err)
	}
	defer resp.Body.Close()

	if opts.MaxBytes > 0 && resp.ContentLength > opts.MaxBytes {
		return nil, fmt.Errorf("fetch %s: %w (%d > %d bytes)", opts.URL, ErrTooLarge, resp.ContentLength, opts.MaxBytes)
	}

	body := io.Reader(resp.Body)
	if opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, opts.MaxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", opts.URL, err)
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", opts.URL, ErrTooLarge, opts.MaxBytes)
	}
	return data, nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}
