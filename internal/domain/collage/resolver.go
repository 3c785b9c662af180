package collage

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

// Step identifies which fallback step produced an image.
type Step string

const (
	StepAlbum  Step = "album"
	StepTrack  Step = "track"
	StepInline Step = "inline"
	StepArtist Step = "artist"
	StepNone   Step = "none"
)

// LookupStatus is the outcome of a single lookup call.
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNone
	LookupFailed
)

// LookupResult wraps a lookup call so that failures are values, not control flow.
type LookupResult struct {
	Status LookupStatus
	Images ImageVariantSet
	Err    error
}

// URL returns the selected image URL, or "" for anything but a found result.
func (r LookupResult) URL() string {
	if r.Status != LookupFound {
		return ""
	}
	return SelectImageURL(r.Images)
}

func lookupResult(images ImageVariantSet, err error) LookupResult {
	switch {
	case err != nil:
		return LookupResult{Status: LookupFailed, Err: err}
	case len(images) == 0:
		return LookupResult{Status: LookupNone}
	default:
		return LookupResult{Status: LookupFound, Images: images}
	}
}

// ResolveRequest describes one track whose artwork must be found.
type ResolveRequest struct {
	Artist string
	Track  string
	Album  string
	Inline ImageVariantSet
}

// Resolution is the outcome of a resolve call. URL "" with StepNone is a normal result.
type Resolution struct {
	URL  string
	Step Step
}

// Resolver finds artwork for a track with multi-source fallback.
// Resolution order:
// 1. Album lookup (only when the album name is known)
// 2. Track lookup (album artwork nested in track metadata)
// 3. Inline variants supplied with the ranked item
// 4. Artist lookup
// Lookup errors are logged and treated as "no image"; Resolve never fails.
type Resolver struct {
	lookup ArtworkLookup
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup ArtworkLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve walks the fallback chain and stops at the first non-empty URL.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) Resolution {
	if url := r.tryAlbum(ctx, req); url != "" {
		return Resolution{URL: url, Step: StepAlbum}
	}

	if url := r.tryTrack(ctx, req); url != "" {
		return Resolution{URL: url, Step: StepTrack}
	}

	if url := SelectImageURL(req.Inline); url != "" {
		return Resolution{URL: url, Step: StepInline}
	}

	if url := r.tryArtist(ctx, req); url != "" {
		return Resolution{URL: url, Step: StepArtist}
	}

	log.Debug().
		Str("artist", req.Artist).
		Str("track", req.Track).
		Msg("No artwork found for track")
	return Resolution{Step: StepNone}
}

func (r *Resolver) tryAlbum(ctx context.Context, req ResolveRequest) string {
	if r.lookup == nil || strings.TrimSpace(req.Album) == "" {
		return ""
	}
	res := lookupResult(r.lookup.AlbumArtwork(ctx, req.Artist, req.Album))
	r.logFailure(res, StepAlbum, req)
	return res.URL()
}

func (r *Resolver) tryTrack(ctx context.Context, req ResolveRequest) string {
	if r.lookup == nil {
		return ""
	}
	res := lookupResult(r.lookup.TrackArtwork(ctx, req.Artist, req.Track))
	r.logFailure(res, StepTrack, req)
	return res.URL()
}

func (r *Resolver) tryArtist(ctx context.Context, req ResolveRequest) string {
	if r.lookup == nil {
		return ""
	}
	res := lookupResult(r.lookup.ArtistArtwork(ctx, req.Artist))
	r.logFailure(res, StepArtist, req)
	return res.URL()
}

func (r *Resolver) logFailure(res LookupResult, step Step, req ResolveRequest) {
	if res.Status != LookupFailed {
		return
	}
	if errors.Is(res.Err, context.Canceled) {
		log.Debug().Str("step", string(step)).Msg("Artwork lookup cancelled")
		return
	}
	log.Warn().
		Err(res.Err).
		Str("step", string(step)).
		Str("artist", req.Artist).
		Str("track", req.Track).
		Msg("Artwork lookup failed")
}
