package render

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
	"github.com/edumarques81/chartfy-backend/internal/infra/fetch"
)

func TestRenderer_Export(t *testing.T) {
	r := NewRenderer(NewRasterizer(newFakeFetcher(t), 2))
	view := collage.ViewState{Provider: "lastfm", Category: collage.CategoryAlbums, Identity: "rj"}

	cmds, err := r.Export(context.Background(), testGrid(), view)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}

	dl, ok := cmds[0].(DownloadCommand)
	if !ok {
		t.Fatalf("expected DownloadCommand first, got %T", cmds[0])
	}
	if dl.Filename != "lastfm-albums-rj-collage.png" || dl.MimeType != "image/png" {
		t.Errorf("unexpected download %q %q", dl.Filename, dl.MimeType)
	}
	img, err := png.Decode(bytes.NewReader(dl.Data))
	if err != nil {
		t.Fatalf("download is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1000 || b.Dy() != 1000 {
		t.Errorf("unexpected bounds %v", b)
	}

	note, ok := cmds[1].(NotifyCommand)
	if !ok || note.Level != NotifySuccess {
		t.Errorf("expected success notification, got %+v", cmds[1])
	}
}

// A 404 on one artwork still produces a full export.
func TestRenderer_ExportWithBrokenArtwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := fetch.New(fetch.WithHTTPClient(server.Client()))
	r := NewRenderer(NewRasterizer(fetcher, 1))
	grid := collage.Pad([]collage.ResolvedItem{
		{Name: "A", Artist: "X", Image: server.URL + "/a.jpg"},
		{Name: "B", Artist: "Y", Image: server.URL + "/b.jpg"},
	})

	cmds, err := r.Export(context.Background(), grid, collage.ViewState{Provider: "lastfm", Category: collage.CategoryTracks, Identity: "rj", ShowNames: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if _, ok := cmds[0].(DownloadCommand); !ok {
		t.Fatalf("expected download, got %T", cmds[0])
	}
}

func TestRenderer_ExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRenderer(NewRasterizer(newFakeFetcher(t), 2))
	cmds, err := r.Export(ctx, testGrid(), collage.ViewState{})
	if !errors.Is(err, ErrRasterize) {
		t.Errorf("expected ErrRasterize, got %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected only a notification, got %d commands", len(cmds))
	}
	if note, ok := cmds[0].(NotifyCommand); !ok || note.Level != NotifyError {
		t.Errorf("expected error notification, got %+v", cmds[0])
	}
}

func TestRenderer_Options(t *testing.T) {
	r := NewRenderer(NewRasterizer(nil, 1), WithFormat(FormatJPEG), WithCellSize(20))
	cmds, err := r.Export(context.Background(), testGrid(), collage.ViewState{Provider: "spotify", Category: collage.CategoryArtists})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	dl := cmds[0].(DownloadCommand)
	if dl.MimeType != "image/jpeg" || dl.Filename != "spotify-artists-unknown-collage.jpg" {
		t.Errorf("unexpected download %q %q", dl.Filename, dl.MimeType)
	}
	if len(dl.Data) < 3 || dl.Data[0] != 0xFF || dl.Data[1] != 0xD8 {
		t.Error("expected JPEG data")
	}
	if r.Format() != FormatJPEG {
		t.Errorf("Format() = %q", r.Format())
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		view collage.ViewState
		f    Format
		want string
	}{
		{"plain", collage.ViewState{Provider: "lastfm", Category: "albums", Identity: "rj"}, FormatPNG, "lastfm-albums-rj-collage.png"},
		{"unsafe identity", collage.ViewState{Provider: "lastfm", Category: "tracks", Identity: "../we ird/名"}, FormatPNG, "lastfm-tracks-.._we_ird__-collage.png"},
		{"empty identity", collage.ViewState{Provider: "spotify", Category: "artists"}, FormatWebP, "spotify-artists-unknown-collage.webp"},
		{"trimmed", collage.ViewState{Provider: "lastfm", Category: "albums", Identity: "  rj  "}, FormatJPEG, "lastfm-albums-rj-collage.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.view, tt.f); got != tt.want {
				t.Errorf("Filename = %q, want %q", got, tt.want)
			}
		})
	}
}
