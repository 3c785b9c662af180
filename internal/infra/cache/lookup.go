package cache

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

// Store is the persistence used by Lookup. *DB implements it.
type Store interface {
	Get(key string) (*Entry, error)
	Put(key string, images collage.ImageVariantSet, ttl time.Duration) error
}

// Lookup decorates a collage.ArtworkLookup with a persistent cache.
// Only successful lookups are cached, including "no image" answers.
// Cache errors are logged and fall through to the live lookup.
type Lookup struct {
	store    Store
	next     collage.ArtworkLookup
	provider string
	ttl      time.Duration
}

// NewLookup wraps next. provider namespaces the keys.
func NewLookup(store Store, provider string, next collage.ArtworkLookup, ttl time.Duration) *Lookup {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lookup{store: store, next: next, provider: provider, ttl: ttl}
}

// Wrapper returns a collage.LookupWrapper backed by store.
func Wrapper(store Store, ttl time.Duration) collage.LookupWrapper {
	return func(provider string, lookup collage.ArtworkLookup) collage.ArtworkLookup {
		return NewLookup(store, provider, lookup, ttl)
	}
}

// AlbumArtwork implements collage.ArtworkLookup.
func (l *Lookup) AlbumArtwork(ctx context.Context, artist, album string) (collage.ImageVariantSet, error) {
	return l.cached(l.key("album", artist, album), func() (collage.ImageVariantSet, error) {
		return l.next.AlbumArtwork(ctx, artist, album)
	})
}

// TrackArtwork implements collage.ArtworkLookup.
func (l *Lookup) TrackArtwork(ctx context.Context, artist, track string) (collage.ImageVariantSet, error) {
	return l.cached(l.key("track", artist, track), func() (collage.ImageVariantSet, error) {
		return l.next.TrackArtwork(ctx, artist, track)
	})
}

// ArtistArtwork implements collage.ArtworkLookup.
func (l *Lookup) ArtistArtwork(ctx context.Context, artist string) (collage.ImageVariantSet, error) {
	return l.cached(l.key("artist", artist, ""), func() (collage.ImageVariantSet, error) {
		return l.next.ArtistArtwork(ctx, artist)
	})
}

func (l *Lookup) cached(key string, fetch func() (collage.ImageVariantSet, error)) (collage.ImageVariantSet, error) {
	entry, err := l.store.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Lookup cache read failed")
	} else if entry != nil {
		log.Debug().
			Str("key", key).
			Dur("age", time.Since(entry.FetchedAt)).
			Msg("Lookup cache hit")
		if len(entry.Images) == 0 {
			return nil, nil
		}
		return entry.Images, nil
	}

	images, err := fetch()
	if err != nil {
		return nil, err
	}

	if err := l.store.Put(key, images, l.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Lookup cache write failed")
	}
	return images, nil
}

// key is MD5(provider || kind || artist || name), case-insensitive.
func (l *Lookup) key(kind, artist, name string) string {
	data := strings.ToLower(l.provider + "\x00" + kind + "\x00" + strings.TrimSpace(artist) + "\x00" + strings.TrimSpace(name))
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}
