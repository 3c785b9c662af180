// Package render lays out a collage grid and rasterizes it for export.
package render

import (
	"fmt"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

const (
	// PlaceholderURL stands in for missing or broken artwork in interactive views.
	PlaceholderURL = "/placeholder.svg"

	// DefaultCellSize is the logical edge of an export cell in pixels.
	DefaultCellSize = 100
)

// Overlay is the hover card of an occupied interactive cell.
type Overlay struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Plays  string `json:"plays"`
}

// InteractiveCell is one slot of the on-screen grid.
type InteractiveCell struct {
	Position         int      `json:"position"`
	Occupied         bool     `json:"occupied"`
	ImageURL         string   `json:"imageUrl,omitempty"`
	Alt              string   `json:"alt,omitempty"`
	Name             string   `json:"name,omitempty"`
	Artist           string   `json:"artist,omitempty"`
	Overlay          *Overlay `json:"overlay,omitempty"`
	CaptionVisible   bool     `json:"captionVisible"`
	PlaceholderLabel string   `json:"placeholderLabel,omitempty"`
}

// InteractiveLayout is the on-screen grid pushed to clients.
type InteractiveLayout struct {
	Columns   int               `json:"columns"`
	ShowNames bool              `json:"showNames"`
	Cells     []InteractiveCell `json:"cells"`
	View      collage.ViewState `json:"view"`
}

// Interactive builds the on-screen layout of grid.
func Interactive(grid collage.Grid, view collage.ViewState) InteractiveLayout {
	layout := InteractiveLayout{
		Columns:   collage.GridColumns,
		ShowNames: view.ShowNames,
		Cells:     make([]InteractiveCell, 0, collage.GridSize),
		View:      view,
	}

	for i, slot := range grid {
		cell := InteractiveCell{Position: i + 1}
		item, ok := slot.Item()
		if !ok {
			cell.PlaceholderLabel = fmt.Sprintf("#%d", i+1)
			layout.Cells = append(layout.Cells, cell)
			continue
		}

		cell.Occupied = true
		cell.ImageURL = item.Image
		if cell.ImageURL == "" {
			cell.ImageURL = PlaceholderURL
		}
		cell.Alt = item.Name + " - " + item.Artist
		cell.Name = item.Name
		cell.Artist = item.Artist
		cell.Overlay = &Overlay{
			Name:   item.Name,
			Artist: item.Artist,
			Plays:  fmt.Sprintf("%d plays", item.PlayCount),
		}
		cell.CaptionVisible = view.ShowNames
		layout.Cells = append(layout.Cells, cell)
	}
	return layout
}

// ExportCell is one square of the export surface, in logical pixels.
type ExportCell struct {
	X, Y     int
	Occupied bool
	ImageURL string // "" when the item has no artwork
	Name     string
	Artist   string
	Caption  bool
}

// ExportGrid is the fixed-size surface that gets rasterized.
type ExportGrid struct {
	CellSize int
	Width    int
	Height   int
	Cells    [collage.GridSize]ExportCell
}

// ExportLayout builds the export surface of grid with DefaultCellSize cells.
func ExportLayout(grid collage.Grid, view collage.ViewState) ExportGrid {
	return ExportLayoutSized(grid, view, DefaultCellSize)
}

// ExportLayoutSized is ExportLayout with a custom cell size.
func ExportLayoutSized(grid collage.Grid, view collage.ViewState, cellSize int) ExportGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	side := cellSize * collage.GridColumns
	out := ExportGrid{CellSize: cellSize, Width: side, Height: side}

	for i, slot := range grid {
		cell := ExportCell{
			X: (i % collage.GridColumns) * cellSize,
			Y: (i / collage.GridColumns) * cellSize,
		}
		if item, ok := slot.Item(); ok {
			cell.Occupied = true
			cell.ImageURL = item.Image
			cell.Name = item.Name
			cell.Artist = item.Artist
			cell.Caption = view.ShowNames
		}
		out.Cells[i] = cell
	}
	return out
}
