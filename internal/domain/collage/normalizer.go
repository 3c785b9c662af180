package collage

import (
	"context"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Normalizer maps ranked items into resolved items, resolving track artwork concurrently.
type Normalizer struct {
	resolver *Resolver
}

// NewNormalizer creates a normalizer that resolves track artwork with resolver.
func NewNormalizer(resolver *Resolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Normalize converts items in rank order. Output never has more items than input.
// Track artwork resolutions run concurrently and are collected by index.
// The only error is the context's, returned when the caller abandoned the request.
func (n *Normalizer) Normalize(ctx context.Context, items []RankedItem, category Category) ([]ResolvedItem, error) {
	out := make([]ResolvedItem, len(items))

	if !category.NeedsLookup() || n.resolver == nil {
		for i, item := range items {
			out[i] = inlineItem(item, category)
		}
		return out, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			name := displayName(item.Name)
			artist := artistName(item.Artist)
			res := n.resolver.Resolve(gctx, ResolveRequest{
				Artist: artist,
				Track:  name,
				Album:  item.Album,
				Inline: item.Images,
			})
			out[i] = ResolvedItem{
				Name:      name,
				Artist:    artist,
				Image:     res.URL,
				PlayCount: ParsePlayCount(item.PlayCount),
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func inlineItem(item RankedItem, category Category) ResolvedItem {
	artist := artistName(item.Artist)
	if category == CategoryArtists {
		artist = strings.TrimSpace(item.Artist)
	}
	return ResolvedItem{
		Name:      displayName(item.Name),
		Artist:    artist,
		Image:     SelectImageURL(item.Images),
		PlayCount: ParsePlayCount(item.PlayCount),
	}
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultName
	}
	return name
}

func artistName(artist string) string {
	if strings.TrimSpace(artist) == "" {
		return DefaultArtist
	}
	return artist
}

// ParsePlayCount parses the leading integer of s. Anything unparseable or negative is 0.
func ParsePlayCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 || neg {
		return 0
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// only a range error is possible for a pure digit run
		return math.MaxInt
	}
	return n
}
