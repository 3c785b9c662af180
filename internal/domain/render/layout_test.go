package render

import (
	"testing"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

func testGrid() collage.Grid {
	return collage.Pad([]collage.ResolvedItem{
		{Name: "OK Computer", Artist: "Radiohead", Image: "red.png", PlayCount: 42},
		{Name: "Homogenic", Artist: "Björk", Image: "", PlayCount: 0},
		{Name: "Blue Lines", Artist: "Massive Attack", Image: "missing.png", PlayCount: 7},
	})
}

func TestInteractive(t *testing.T) {
	view := collage.ViewState{Provider: "lastfm", Category: collage.CategoryAlbums, Identity: "rj", ShowNames: true}
	layout := Interactive(testGrid(), view)

	if len(layout.Cells) != collage.GridSize {
		t.Fatalf("got %d cells", len(layout.Cells))
	}
	if layout.Columns != 5 || !layout.ShowNames || layout.View != view {
		t.Errorf("unexpected layout header %+v", layout)
	}

	first := layout.Cells[0]
	if !first.Occupied || first.ImageURL != "red.png" || first.Alt != "OK Computer - Radiohead" {
		t.Errorf("unexpected first cell %+v", first)
	}
	if first.Overlay == nil || first.Overlay.Plays != "42 plays" {
		t.Errorf("unexpected overlay %+v", first.Overlay)
	}
	if !first.CaptionVisible {
		t.Error("expected caption visible")
	}

	if layout.Cells[1].ImageURL != PlaceholderURL {
		t.Errorf("expected placeholder URL, got %q", layout.Cells[1].ImageURL)
	}
	if layout.Cells[1].Overlay.Plays != "0 plays" {
		t.Errorf("unexpected plays %q", layout.Cells[1].Overlay.Plays)
	}

	empty := layout.Cells[3]
	if empty.Occupied || empty.PlaceholderLabel != "#4" || empty.Overlay != nil || empty.CaptionVisible {
		t.Errorf("unexpected empty cell %+v", empty)
	}
	if layout.Cells[24].PlaceholderLabel != "#25" {
		t.Errorf("last label = %q", layout.Cells[24].PlaceholderLabel)
	}
}

func TestInteractive_CaptionsHidden(t *testing.T) {
	layout := Interactive(testGrid(), collage.ViewState{})
	for i, c := range layout.Cells {
		if c.CaptionVisible {
			t.Errorf("cell %d caption visible with ShowNames off", i)
		}
	}
}

func TestExportLayout(t *testing.T) {
	layout := ExportLayout(testGrid(), collage.ViewState{ShowNames: true})

	if layout.Width != 500 || layout.Height != 500 || layout.CellSize != 100 {
		t.Errorf("unexpected size %dx%d cell %d", layout.Width, layout.Height, layout.CellSize)
	}

	tests := []struct {
		index    int
		x, y     int
		occupied bool
	}{
		{0, 0, 0, true},
		{2, 200, 0, true},
		{5, 0, 100, false},
		{24, 400, 400, false},
	}
	for _, tt := range tests {
		c := layout.Cells[tt.index]
		if c.X != tt.x || c.Y != tt.y || c.Occupied != tt.occupied {
			t.Errorf("cell %d = %+v", tt.index, c)
		}
	}
	if !layout.Cells[0].Caption || layout.Cells[5].Caption {
		t.Error("caption should follow ShowNames on occupied cells only")
	}
	if layout.Cells[1].ImageURL != "" {
		t.Errorf("export cell should keep empty image, got %q", layout.Cells[1].ImageURL)
	}
}

func TestExportLayoutSized_DefaultsInvalidSize(t *testing.T) {
	if got := ExportLayoutSized(collage.Grid{}, collage.ViewState{}, 0).CellSize; got != DefaultCellSize {
		t.Errorf("CellSize = %d", got)
	}
}
