package collage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ProviderFunc builds a provider for one request. token is the bearer token, if any.
type ProviderFunc func(token string) (Provider, error)

// LookupWrapper decorates a provider's lookups, e.g. with a cache.
type LookupWrapper func(provider string, lookup ArtworkLookup) ArtworkLookup

// GenerateRequest is the input of one collage generation.
type GenerateRequest struct {
	Provider string
	Identity string
	Category Category
	Token    string
}

// Service retrieves top items and turns them into a grid.
type Service struct {
	mu        sync.RWMutex
	providers map[string]ProviderFunc
	wrap      LookupWrapper
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLookupWrapper decorates every provider's artwork lookups.
func WithLookupWrapper(wrap LookupWrapper) ServiceOption {
	return func(s *Service) {
		s.wrap = wrap
	}
}

// NewService creates a collage service with no providers registered.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		providers: make(map[string]ProviderFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a provider under name.
func (s *Service) Register(name string, fn ProviderFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[strings.ToLower(name)] = fn
}

// Providers returns the registered provider names.
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// Provider builds the named provider for a request.
func (s *Service) Provider(name, token string) (Provider, error) {
	s.mu.RLock()
	fn, ok := s.providers[strings.ToLower(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return fn(token)
}

// Generate retrieves the identity's top items and returns the padded grid.
// Retrieval failures wrap ErrRetrievalFailed; artwork failures never surface.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (Grid, error) {
	if strings.TrimSpace(req.Identity) == "" {
		return Grid{}, ErrMissingIdentity
	}

	provider, err := s.Provider(req.Provider, req.Token)
	if err != nil {
		return Grid{}, err
	}

	start := time.Now()
	items, err := provider.TopItems(ctx, req.Identity, req.Category)
	if err != nil {
		return Grid{}, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	log.Debug().
		Str("provider", provider.Name()).
		Str("identity", req.Identity).
		Str("category", string(req.Category)).
		Int("items", len(items)).
		Msg("Retrieved top items")

	grid, err := s.NormalizeAndPad(ctx, provider, items, req.Category)
	if err != nil {
		return Grid{}, err
	}

	log.Info().
		Str("provider", provider.Name()).
		Str("identity", req.Identity).
		Str("category", string(req.Category)).
		Int("occupied", grid.OccupiedCount()).
		Dur("elapsed", time.Since(start)).
		Msg("Collage generated")

	return grid, nil
}

// NormalizeAndPad normalizes raw items with the provider's lookups and pads them into a grid.
func (s *Service) NormalizeAndPad(ctx context.Context, provider Provider, items []RankedItem, category Category) (Grid, error) {
	var lookup ArtworkLookup = provider
	if s.wrap != nil {
		lookup = s.wrap(provider.Name(), provider)
	}

	resolved, err := NewNormalizer(NewResolver(lookup)).Normalize(ctx, items, category)
	if err != nil {
		return Grid{}, err
	}
	return Pad(resolved), nil
}
