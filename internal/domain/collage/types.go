// Package collage builds the 5x5 top-items grid: artwork resolution, normalization and padding.
package collage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// GridSize is the fixed number of slots in a collage.
	GridSize = 25

	// GridColumns is the number of columns (and rows) of the grid.
	GridColumns = 5

	// DefaultName is used when an item has no display name.
	DefaultName = "Untitled"

	// DefaultArtist is used when an item has no usable artist.
	DefaultArtist = "Unknown Artist"
)

// Common errors
var (
	// ErrRetrievalFailed wraps any failure of the top-items call.
	ErrRetrievalFailed = errors.New("top items retrieval failed")

	// ErrUnknownProvider is returned for a provider name that is not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidCategory is returned when a category string cannot be parsed.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrMissingIdentity is returned when a request has no listener identity.
	ErrMissingIdentity = errors.New("missing identity")
)

// Category is the metric being charted.
type Category string

const (
	CategoryAlbums  Category = "albums"
	CategoryTracks  Category = "tracks"
	CategoryArtists Category = "artists"
)

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryAlbums, CategoryTracks, CategoryArtists:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// NeedsLookup reports whether items of this category get artwork through the resolver
// instead of their inline variants.
func (c Category) NeedsLookup() bool {
	return c == CategoryTracks
}

// SizeTag is the nominal size label of an image variant.
type SizeTag string

const (
	SizeExtraLarge SizeTag = "extralarge"
	SizeLarge      SizeTag = "large"
	SizeMedium     SizeTag = "medium"
	SizeSmall      SizeTag = "small"
	SizeOther      SizeTag = "other"
)

// ParseSizeTag maps a provider size label to a SizeTag. Unknown labels become SizeOther.
func ParseSizeTag(s string) SizeTag {
	switch t := SizeTag(strings.ToLower(strings.TrimSpace(s))); t {
	case SizeExtraLarge, SizeLarge, SizeMedium, SizeSmall:
		return t
	}
	return SizeOther
}

// ImageVariant is one size of an image.
type ImageVariant struct {
	Size SizeTag `json:"size"`
	URL  string  `json:"url"`
}

// ImageVariantSet is the set of sizes available for one image, in provider order.
type ImageVariantSet []ImageVariant

// RankedItem is one entry of a provider's popularity-ordered list.
// Rank is the position in the slice.
type RankedItem struct {
	Name      string
	Artist    string
	Album     string // only meaningful for tracks
	Images    ImageVariantSet
	PlayCount string // raw, parsed leniently by the normalizer
}

// ResolvedItem is a normalized item ready for display. Image "" means no artwork was found.
type ResolvedItem struct {
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	Image     string `json:"image"`
	PlayCount int    `json:"playcount"`
}

// GridSlot is either occupied by an item or empty.
type GridSlot struct {
	item     ResolvedItem
	occupied bool
}

// Occupied returns a slot holding item.
func Occupied(item ResolvedItem) GridSlot {
	return GridSlot{item: item, occupied: true}
}

// Empty returns an empty slot.
func Empty() GridSlot {
	return GridSlot{}
}

// IsOccupied reports whether the slot holds an item.
func (s GridSlot) IsOccupied() bool { return s.occupied }

// Item returns the slot's item and whether the slot is occupied.
func (s GridSlot) Item() (ResolvedItem, bool) { return s.item, s.occupied }

type slotJSON struct {
	Occupied bool          `json:"occupied"`
	Item     *ResolvedItem `json:"item,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s GridSlot) MarshalJSON() ([]byte, error) {
	out := slotJSON{Occupied: s.occupied}
	if s.occupied {
		item := s.item
		out.Item = &item
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *GridSlot) UnmarshalJSON(data []byte) error {
	var in slotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Occupied && in.Item != nil {
		*s = Occupied(*in.Item)
		return nil
	}
	*s = Empty()
	return nil
}

// Grid is the fixed 25-slot collage in rank order.
type Grid [GridSize]GridSlot

// OccupiedCount returns the number of occupied slots.
func (g Grid) OccupiedCount() int {
	n := 0
	for _, s := range g {
		if s.occupied {
			n++
		}
	}
	return n
}

// ViewState is the display state of one collage view.
type ViewState struct {
	Provider  string   `json:"provider"`
	Category  Category `json:"category"`
	Identity  string   `json:"identity"`
	ShowNames bool     `json:"showNames"`
}

// ArtworkLookup fetches artwork variant sets from a metadata provider.
// A nil or empty set with a nil error means the provider has no image.
type ArtworkLookup interface {
	AlbumArtwork(ctx context.Context, artist, album string) (ImageVariantSet, error)
	TrackArtwork(ctx context.Context, artist, track string) (ImageVariantSet, error)
	ArtistArtwork(ctx context.Context, artist string) (ImageVariantSet, error)
}

// Provider is a source of ranked items together with its artwork lookups.
type Provider interface {
	ArtworkLookup

	// Name is the provider prefix used in export filenames, e.g. "lastfm".
	Name() string

	// TopItems returns the identity's ranked items for category.
	TopItems(ctx context.Context, identity string, category Category) ([]RankedItem, error)
}
