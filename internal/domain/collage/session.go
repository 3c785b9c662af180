package collage

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Session.Generate when a newer request replaced this one.
var ErrSuperseded = errors.New("generation superseded by a newer request")

// Generator produces a grid for a request. *Service implements it.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Grid, error)
}

// Session owns the grid and view state of a single collage view.
// A new Generate cancels the previous in-flight one; only the latest result is kept.
type Session struct {
	gen Generator

	mu        sync.Mutex
	view      ViewState
	grid      Grid
	generated bool
	seq       uint64
	cancel    context.CancelFunc
}

// NewSession creates an empty session.
func NewSession(gen Generator) *Session {
	return &Session{gen: gen}
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	View      ViewState `json:"view"`
	Grid      Grid      `json:"grid"`
	Generated bool      `json:"generated"`
}

// Generate runs a new generation. On failure the previous grid and view are kept.
func (s *Session) Generate(ctx context.Context, req GenerateRequest) (Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	grid, err := s.gen.Generate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		cancel()
		return s.snapshotLocked(), ErrSuperseded
	}
	s.cancel = nil
	cancel()

	if err != nil {
		return s.snapshotLocked(), err
	}

	s.grid = grid
	s.generated = true
	s.view = ViewState{
		Provider:  req.Provider,
		Category:  req.Category,
		Identity:  req.Identity,
		ShowNames: s.view.ShowNames,
	}
	return s.snapshotLocked(), nil
}

// SetShowNames toggles the always-visible captions for every slot.
func (s *Session) SetShowNames(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.ShowNames = show
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels any in-flight generation.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{View: s.view, Grid: s.grid, Generated: s.generated}
}
