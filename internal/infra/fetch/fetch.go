// Package fetch downloads artwork images over HTTP for rasterization.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 15 * time.Second

	// MaxImageSize is the maximum image size to download (10MB)
	MaxImageSize = 10 * 1024 * 1024
)

// Common errors
var (
	// ErrNotFound is returned for a 404 or an empty body.
	ErrNotFound = errors.New("fetch: image not found")

	// ErrNotImage is returned when the payload is not a recognizable image.
	ErrNotImage = errors.New("fetch: not an image")

	// ErrTooLarge is returned when the body exceeds MaxImageSize.
	ErrTooLarge = errors.New("fetch: image too large")

	// ErrBadStatus is returned for any other non-200 status.
	ErrBadStatus = errors.New("fetch: unexpected status")
)

// Result is a downloaded image.
type Result struct {
	Data     []byte
	MimeType string
}

// Fetcher downloads images.
type Fetcher struct {
	userAgent  string
	httpClient *http.Client
}

// Option is a functional option for configuring the fetcher.
type Option func(*Fetcher)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// New creates a new Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent: "Chartfy",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the image at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		log.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("Artwork fetch failed")
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	// One extra byte tells an exact-limit body from an oversized one.
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}

	mimeType := detectMimeType(data)
	if mimeType == "" {
		ct := resp.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "image/") {
			return nil, fmt.Errorf("%w: %q", ErrNotImage, ct)
		}
		mimeType = ct
	}

	return &Result{Data: data, MimeType: mimeType}, nil
}

// detectMimeType sniffs the magic bytes of common image formats.
func detectMimeType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46:
		if len(data) >= 12 && data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
	}
	return ""
}
