package collage_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

var errLookup = errors.New("lookup exploded")

// MockLookup implements collage.ArtworkLookup with per-call counters.
type MockLookup struct {
	album     map[string]collage.ImageVariantSet // key: artist|album
	track     map[string]collage.ImageVariantSet // key: artist|track
	artist    map[string]collage.ImageVariantSet
	albumErr  error
	trackErr  error
	artistErr error

	// delay per track name, to force out-of-order completion
	delays map[string]time.Duration

	albumCalls  atomic.Int32
	trackCalls  atomic.Int32
	artistCalls atomic.Int32
}

func (m *MockLookup) AlbumArtwork(ctx context.Context, artist, album string) (collage.ImageVariantSet, error) {
	m.albumCalls.Add(1)
	if m.albumErr != nil {
		return nil, m.albumErr
	}
	return m.album[artist+"|"+album], nil
}

func (m *MockLookup) TrackArtwork(ctx context.Context, artist, track string) (collage.ImageVariantSet, error) {
	m.trackCalls.Add(1)
	if d, ok := m.delays[track]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.trackErr != nil {
		return nil, m.trackErr
	}
	return m.track[artist+"|"+track], nil
}

func (m *MockLookup) ArtistArtwork(ctx context.Context, artist string) (collage.ImageVariantSet, error) {
	m.artistCalls.Add(1)
	if m.artistErr != nil {
		return nil, m.artistErr
	}
	return m.artist[artist], nil
}

// MockProvider implements collage.Provider on top of MockLookup.
type MockProvider struct {
	*MockLookup
	name     string
	items    []collage.RankedItem
	itemsErr error

	mu       sync.Mutex
	requests []string
	block    chan struct{}
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) TopItems(ctx context.Context, identity string, category collage.Category) ([]collage.RankedItem, error) {
	p.mu.Lock()
	p.requests = append(p.requests, identity+"/"+string(category))
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.itemsErr != nil {
		return nil, p.itemsErr
	}
	return p.items, nil
}

func xl(url string) collage.ImageVariantSet {
	return collage.ImageVariantSet{{Size: collage.SizeExtraLarge, URL: url}}
}
