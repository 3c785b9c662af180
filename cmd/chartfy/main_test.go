package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/edumarques81/chartfy-backend/internal/config"
	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

func TestRegisterProviders(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   []string
	}{
		{"with lastfm key", "k", []string{"lastfm", "spotify"}},
		{"without lastfm key", "", []string{"spotify"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.LastFM.APIKey = tt.apiKey

			service := collage.NewService()
			registerProviders(service, &cfg, "test")

			got := service.Providers()
			sort.Strings(got)
			if len(got) != len(tt.want) {
				t.Fatalf("providers = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("providers = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRegisterProviders_SpotifyNeedsToken(t *testing.T) {
	cfg := config.Default()
	service := collage.NewService()
	registerProviders(service, &cfg, "test")

	if _, err := service.Provider("spotify", ""); err == nil {
		t.Error("expected error without token")
	}
	if p, err := service.Provider("spotify", "tok"); err != nil || p == nil {
		t.Errorf("Provider = %v, %v", p, err)
	}
}

func TestSpaHandler(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("index"), 0644)
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("js"), 0644)

	h := spaHandler(dir)
	tests := map[string]string{
		"/":             "index",
		"/app.js":       "js",
		"/collage/rj":   "index",
		"/../../passwd": "index",
	}
	for path, want := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Body.String() != want {
			t.Errorf("GET %s = %q, want %q", path, rec.Body.String(), want)
		}
	}
}
