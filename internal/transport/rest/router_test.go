package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
	"github.com/edumarques81/chartfy-backend/internal/domain/render"
	"github.com/edumarques81/chartfy-backend/internal/infra/cache"
	"github.com/edumarques81/chartfy-backend/internal/infra/spotify"
)

type fakeGenerator struct {
	grid    collage.Grid
	err     error
	lastReq collage.GenerateRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req collage.GenerateRequest) (collage.Grid, error) {
	g.lastReq = req
	return g.grid, g.err
}

func (g *fakeGenerator) Providers() []string { return []string{"spotify", "lastfm"} }

type fakeRenderer struct {
	data []byte
	err  error
	view collage.ViewState
}

func (r *fakeRenderer) Render(ctx context.Context, grid collage.Grid, view collage.ViewState) ([]byte, error) {
	r.view = view
	return r.data, r.err
}

func (r *fakeRenderer) Format() render.Format { return render.FormatPNG }

func serve(t *testing.T, gen Generator, rr ImageRenderer, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(gen, rr).ServeHTTP(rec, req)
	return rec
}

func TestCollage(t *testing.T) {
	gen := &fakeGenerator{grid: collage.Pad([]collage.ResolvedItem{{Name: "Airbag", Artist: "Radiohead", PlayCount: 9}})}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/collage/spotify/tracks/me?showNames=true", nil)
	req.Header.Set("Authorization", "Bearer tok-1")

	rec := serve(t, gen, &fakeRenderer{}, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if gen.lastReq.Provider != "spotify" || gen.lastReq.Category != collage.CategoryTracks ||
		gen.lastReq.Identity != "me" || gen.lastReq.Token != "tok-1" {
		t.Errorf("unexpected request %+v", gen.lastReq)
	}

	var body CollageResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.View.ShowNames || body.Grid.OccupiedCount() != 1 {
		t.Errorf("unexpected body %+v", body.View)
	}
	if body.Layout.Cells[0].Overlay == nil || body.Layout.Cells[0].Overlay.Plays != "9 plays" {
		t.Errorf("unexpected layout cell %+v", body.Layout.Cells[0])
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("missing CORS header, got %q", got)
	}
}

func TestCollage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"bad category", "/api/v1/collage/lastfm/podcasts/rj", nil, http.StatusBadRequest},
		{"unknown provider", "/api/v1/collage/deezer/albums/rj", fmt.Errorf("%w: %q", collage.ErrUnknownProvider, "deezer"), http.StatusBadRequest},
		{"missing identity", "/api/v1/collage/lastfm/albums/%20", collage.ErrMissingIdentity, http.StatusBadRequest},
		{"retrieval", "/api/v1/collage/lastfm/albums/rj", fmt.Errorf("%w: %w", collage.ErrRetrievalFailed, errors.New("user not found")), http.StatusBadGateway},
		{"no token", "/api/v1/collage/spotify/tracks/me", spotify.ErrMissingToken, http.StatusUnauthorized},
		{"other", "/api/v1/collage/lastfm/albums/rj", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &fakeGenerator{err: tt.err}, &fakeRenderer{}, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error == "" {
				t.Errorf("expected JSON error body, got %v %+v", err, body)
			}
		})
	}
}

func TestImage(t *testing.T) {
	rr := &fakeRenderer{data: []byte("\x89PNG-data")}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/collage/lastfm/albums/rj/image?showNames=1", nil)

	rec := serve(t, &fakeGenerator{}, rr, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="lastfm-albums-rj-collage.png"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "\x89PNG-data" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if !rr.view.ShowNames {
		t.Error("expected showNames to reach the renderer")
	}
}

func TestImage_RenderFailure(t *testing.T) {
	rr := &fakeRenderer{err: render.ErrRasterize}
	rec := serve(t, &fakeGenerator{}, rr, httptest.NewRequest(http.MethodGet, "/api/v1/collage/lastfm/albums/rj/image", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	rec := serve(t, &fakeGenerator{}, &fakeRenderer{}, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health struct {
		Status    string   `json:"status"`
		Providers []string `json:"providers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || len(health.Providers) != 2 || health.Providers[0] != "lastfm" {
		t.Errorf("unexpected health %+v", health)
	}

	rec = serve(t, &fakeGenerator{}, &fakeRenderer{}, httptest.NewRequest(http.MethodGet, "/api/v1/version", nil))
	var info struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil || info.Name != "Chartfy" {
		t.Errorf("unexpected version %+v, %v", info, err)
	}
}

type fakeCacheStats struct {
	stats *cache.Stats
	err   error
}

func (f *fakeCacheStats) GetStats() (*cache.Stats, error) { return f.stats, f.err }

type fakeCounter int

func (c fakeCounter) ClientCount() int { return int(c) }

func TestHealth_ReportsCacheAndClients(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantStatus string
		wantCache  *cache.Stats
		wantCount  *int
	}{
		{
			name:       "no extras",
			wantStatus: "ok",
		},
		{
			name: "cache and clients",
			opts: []Option{
				WithCacheStats(&fakeCacheStats{stats: &cache.Stats{Entries: 12, Expired: 3}}),
				WithClientCounter(fakeCounter(2)),
			},
			wantStatus: "ok",
			wantCache:  &cache.Stats{Entries: 12, Expired: 3},
			wantCount:  intPtr(2),
		},
		{
			name:       "cache error",
			opts:       []Option{WithCacheStats(&fakeCacheStats{err: errors.New("database is locked")})},
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRouter(&fakeGenerator{}, &fakeRenderer{}, tt.opts...).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}

			var health HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if health.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", health.Status, tt.wantStatus)
			}
			if (health.Cache == nil) != (tt.wantCache == nil) ||
				(health.Cache != nil && *health.Cache != *tt.wantCache) {
				t.Errorf("Cache = %+v, want %+v", health.Cache, tt.wantCache)
			}
			if (health.Clients == nil) != (tt.wantCount == nil) ||
				(health.Clients != nil && *health.Clients != *tt.wantCount) {
				t.Errorf("Clients = %v, want %v", health.Clients, tt.wantCount)
			}
		})
	}
}

func intPtr(n int) *int { return &n }

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
