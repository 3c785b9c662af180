// Package spotify provides a collage provider backed by the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

const (
	// ProviderName is the provider prefix used in filenames and registries.
	ProviderName = "spotify"

	// DefaultTimeRange roughly matches the last four weeks.
	DefaultTimeRange = spotify.ShortTermRange

	// searchLimit is how many candidates are compared per lookup.
	searchLimit = 5

	// matchThreshold is the minimum Jaro-Winkler similarity for a candidate to beat the first result.
	matchThreshold = 0.85
)

// Common errors
var (
	// ErrMissingToken is returned when no bearer token was supplied.
	ErrMissingToken = errors.New("spotify: missing bearer token")

	// ErrUnsupportedCategory is returned for categories without a top-items endpoint.
	ErrUnsupportedCategory = errors.New("spotify: unsupported category")
)

// Provider implements collage.Provider for one bearer token.
type Provider struct {
	client    *spotify.Client
	timeRange spotify.Range
	limit     int
}

// Option is a functional option for configuring the provider.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	timeRange  spotify.Range
	limit      int
}

// WithBaseURL sets a custom API base URL (useful for testing). It must end with a slash.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithHTTPClient sets the base HTTP client; the bearer token is layered on top of its transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeRange sets the affinity window: "short", "medium" or "long".
func WithTimeRange(r string) Option {
	return func(o *options) {
		if r != "" {
			o.timeRange = spotify.Range(strings.TrimSuffix(r, "_term"))
		}
	}
}

// New creates a provider that authenticates with token.
func New(token string, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	o := options{
		timeRange: DefaultTimeRange,
		limit:     collage.GridSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	var clientOpts []spotify.ClientOption
	if o.baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(o.baseURL))
	}

	return &Provider{
		client:    spotify.New(httpClient, clientOpts...),
		timeRange: o.timeRange,
		limit:     o.limit,
	}, nil
}

// Name implements collage.Provider.
func (p *Provider) Name() string { return ProviderName }

// TopItems implements collage.Provider. identity only labels the request;
// the token decides whose top items are returned.
func (p *Provider) TopItems(ctx context.Context, identity string, category collage.Category) ([]collage.RankedItem, error) {
	reqOpts := []spotify.RequestOption{
		spotify.Limit(p.limit),
		spotify.Timerange(p.timeRange),
	}

	log.Debug().
		Str("identity", identity).
		Str("category", string(category)).
		Msg("Fetching Spotify top items")

	switch category {
	case collage.CategoryTracks:
		page, err := p.client.CurrentUsersTopTracks(ctx, reqOpts...)
		if err != nil {
			return nil, fmt.Errorf("top tracks: %w", err)
		}
		items := make([]collage.RankedItem, 0, len(page.Tracks))
		for _, t := range page.Tracks {
			items = append(items, collage.RankedItem{
				Name:   t.Name,
				Artist: artistNames(t.Artists),
				Album:  t.Album.Name,
				Images: variants(t.Album.Images),
			})
		}
		return items, nil
	case collage.CategoryArtists:
		page, err := p.client.CurrentUsersTopArtists(ctx, reqOpts...)
		if err != nil {
			return nil, fmt.Errorf("top artists: %w", err)
		}
		items := make([]collage.RankedItem, 0, len(page.Artists))
		for _, a := range page.Artists {
			items = append(items, collage.RankedItem{
				Name:   a.Name,
				Images: variants(a.Images),
			})
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCategory, category)
	}
}

// AlbumArtwork implements collage.ArtworkLookup with an album search.
func (p *Provider) AlbumArtwork(ctx context.Context, artist, album string) (collage.ImageVariantSet, error) {
	res, err := p.client.Search(ctx, searchQuery(album, artist), spotify.SearchTypeAlbum, spotify.Limit(searchLimit))
	if err != nil {
		return nil, fmt.Errorf("search album: %w", err)
	}
	if res.Albums == nil || len(res.Albums.Albums) == 0 {
		return nil, nil
	}

	candidates := make([]string, len(res.Albums.Albums))
	for i, a := range res.Albums.Albums {
		candidates[i] = artistNames(a.Artists) + " " + a.Name
	}
	best := bestMatch(artist+" "+album, candidates)
	return variants(res.Albums.Albums[best].Images), nil
}

// TrackArtwork implements collage.ArtworkLookup with a track search, returning album images.
func (p *Provider) TrackArtwork(ctx context.Context, artist, track string) (collage.ImageVariantSet, error) {
	res, err := p.client.Search(ctx, searchQuery(track, artist), spotify.SearchTypeTrack, spotify.Limit(searchLimit))
	if err != nil {
		return nil, fmt.Errorf("search track: %w", err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, nil
	}

	candidates := make([]string, len(res.Tracks.Tracks))
	for i, t := range res.Tracks.Tracks {
		candidates[i] = artistNames(t.Artists) + " " + t.Name
	}
	best := bestMatch(artist+" "+track, candidates)
	return variants(res.Tracks.Tracks[best].Album.Images), nil
}

// ArtistArtwork implements collage.ArtworkLookup with an artist search.
func (p *Provider) ArtistArtwork(ctx context.Context, artist string) (collage.ImageVariantSet, error) {
	res, err := p.client.Search(ctx, artist, spotify.SearchTypeArtist, spotify.Limit(searchLimit))
	if err != nil {
		return nil, fmt.Errorf("search artist: %w", err)
	}
	if res.Artists == nil || len(res.Artists.Artists) == 0 {
		return nil, nil
	}

	candidates := make([]string, len(res.Artists.Artists))
	for i, a := range res.Artists.Artists {
		candidates[i] = a.Name
	}
	best := bestMatch(artist, candidates)
	return variants(res.Artists.Artists[best].Images), nil
}

func searchQuery(name, artist string) string {
	if strings.TrimSpace(artist) == "" || artist == collage.DefaultArtist {
		return name
	}
	return name + " artist:" + artist
}

func artistNames(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// bestMatch returns the index of the candidate most similar to query,
// or 0 when none reaches matchThreshold.
func bestMatch(query string, candidates []string) int {
	query = strings.ToLower(query)
	best, bestScore := 0, 0.0
	for i, c := range candidates {
		score := strutil.Similarity(query, strings.ToLower(c), metrics.NewJaroWinkler())
		if score > bestScore && score >= matchThreshold {
			best, bestScore = i, score
		}
	}
	return best
}

// variants tags Spotify images by width.
func variants(images []spotify.Image) collage.ImageVariantSet {
	if len(images) == 0 {
		return nil
	}
	out := make(collage.ImageVariantSet, 0, len(images))
	for _, img := range images {
		out = append(out, collage.ImageVariant{Size: sizeTag(int(img.Width)), URL: img.URL})
	}
	return out
}

func sizeTag(width int) collage.SizeTag {
	switch {
	case width >= 600:
		return collage.SizeExtraLarge
	case width >= 300:
		return collage.SizeLarge
	case width >= 100:
		return collage.SizeMedium
	case width > 0:
		return collage.SizeSmall
	default:
		return collage.SizeOther
	}
}
