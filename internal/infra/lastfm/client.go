// Package lastfm provides a Last.fm API client for top items and artwork lookups.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

const (
	// ProviderName is the provider prefix used in filenames and registries.
	ProviderName = "lastfm"

	// DefaultBaseURL is the Last.fm API base URL
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultPeriod covers the last 30 days
	DefaultPeriod = "1month"

	// DefaultLimit fills a 5x5 grid
	DefaultLimit = collage.GridSize

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit stays under the Last.fm guideline of 5 requests per second
	DefaultRateLimit = 5

	// DefaultBurst lets one collage's first lookup wave go out at once
	DefaultBurst = collage.GridSize
)

// Common errors
var (
	// ErrMissingAPIKey is returned when the client has no API key.
	ErrMissingAPIKey = errors.New("lastfm: missing API key")

	// ErrAPI wraps error payloads returned by the Last.fm API.
	ErrAPI = errors.New("lastfm: api error")

	// ErrNoItems is returned when a top-items response has no list.
	ErrNoItems = errors.New("lastfm: no items in response")

	// ErrRateLimited indicates rate limit was exceeded
	ErrRateLimited = errors.New("lastfm: rate limited")

	// ErrTemporaryFailure indicates a temporary upstream failure
	ErrTemporaryFailure = errors.New("lastfm: temporary failure")
)

// Client talks to the Last.fm web service.
type Client struct {
	apiKey     string
	baseURL    string
	userAgent  string
	period     string
	limit      int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithPeriod sets the chart period (overall, 7day, 1month, 3month, 6month, 12month).
func WithPeriod(period string) Option {
	return func(c *Client) {
		if period != "" {
			c.period = period
		}
	}
}

// WithLimit sets how many top items are requested.
func WithLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithRateLimit sets the maximum requests per second. Zero disables limiting.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(perSecond, DefaultBurst))
	}
}

// NewClient creates a new Last.fm client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		userAgent: "Chartfy",
		period:    DefaultPeriod,
		limit:     DefaultLimit,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name implements collage.Provider.
func (c *Client) Name() string { return ProviderName }

// apiError is the error payload of the Last.fm API.
type apiError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// call performs a GET for method with params and decodes the body into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("method", method)
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")
	reqURL := c.baseURL + "?" + q.Encode()

	log.Debug().
		Str("method", method).
		Msg("Calling Last.fm")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Last.fm reports most errors in the body, sometimes with a non-200 status.
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
		return fmt.Errorf("%w %d: %s", ErrAPI, apiErr.Code, apiErr.Message)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		log.Warn().Str("method", method).Msg("Last.fm rate limit exceeded")
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Int("status", resp.StatusCode).Msg("Last.fm temporary error")
		return ErrTemporaryFailure
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// TopItems implements collage.Provider.
func (c *Client) TopItems(ctx context.Context, user string, category collage.Category) ([]collage.RankedItem, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("period", c.period)
	params.Set("limit", strconv.Itoa(c.limit))

	var raw []rawItem
	switch category {
	case collage.CategoryAlbums:
		var resp topAlbumsResponse
		if err := c.call(ctx, "user.gettopalbums", params, &resp); err != nil {
			return nil, err
		}
		if resp.TopAlbums == nil || resp.TopAlbums.Album == nil {
			return nil, ErrNoItems
		}
		raw = resp.TopAlbums.Album
	case collage.CategoryTracks:
		var resp topTracksResponse
		if err := c.call(ctx, "user.gettoptracks", params, &resp); err != nil {
			return nil, err
		}
		if resp.TopTracks == nil || resp.TopTracks.Track == nil {
			return nil, ErrNoItems
		}
		raw = resp.TopTracks.Track
	case collage.CategoryArtists:
		var resp topArtistsResponse
		if err := c.call(ctx, "user.gettopartists", params, &resp); err != nil {
			return nil, err
		}
		if resp.TopArtists == nil || resp.TopArtists.Artist == nil {
			return nil, ErrNoItems
		}
		raw = resp.TopArtists.Artist
	default:
		return nil, fmt.Errorf("%w: %q", collage.ErrInvalidCategory, category)
	}

	items := make([]collage.RankedItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, r.ranked())
	}
	return items, nil
}

// AlbumArtwork implements collage.ArtworkLookup via album.getinfo.
func (c *Client) AlbumArtwork(ctx context.Context, artist, album string) (collage.ImageVariantSet, error) {
	params := url.Values{}
	params.Set("artist", artist)
	params.Set("album", album)

	var resp albumInfoResponse
	if err := c.call(ctx, "album.getinfo", params, &resp); err != nil {
		return nil, err
	}
	if resp.Album == nil {
		return nil, nil
	}
	return resp.Album.Image.variants(), nil
}

// TrackArtwork implements collage.ArtworkLookup via track.getinfo.
func (c *Client) TrackArtwork(ctx context.Context, artist, track string) (collage.ImageVariantSet, error) {
	params := url.Values{}
	params.Set("artist", artist)
	params.Set("track", track)

	var resp trackInfoResponse
	if err := c.call(ctx, "track.getinfo", params, &resp); err != nil {
		return nil, err
	}
	if resp.Track == nil || resp.Track.Album == nil {
		return nil, nil
	}
	return resp.Track.Album.Image.variants(), nil
}

// ArtistArtwork implements collage.ArtworkLookup via artist.getinfo.
func (c *Client) ArtistArtwork(ctx context.Context, artist string) (collage.ImageVariantSet, error) {
	params := url.Values{}
	params.Set("artist", artist)

	var resp artistInfoResponse
	if err := c.call(ctx, "artist.getinfo", params, &resp); err != nil {
		return nil, err
	}
	if resp.Artist == nil {
		return nil, nil
	}
	return resp.Artist.Image.variants(), nil
}
