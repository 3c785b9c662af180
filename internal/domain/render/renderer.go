package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

// ErrRasterize is returned when an export could not be produced.
var ErrRasterize = errors.New("collage export failed")

// Command is an instruction for the client produced by an export.
type Command interface {
	command()
}

// DownloadCommand asks the client to save Data under Filename.
type DownloadCommand struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// NotifyLevel is the severity of a notification.
type NotifyLevel string

const (
	NotifySuccess NotifyLevel = "success"
	NotifyError   NotifyLevel = "error"
)

// NotifyCommand asks the client to show a toast.
type NotifyCommand struct {
	Level   NotifyLevel `json:"type"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

func (DownloadCommand) command() {}
func (NotifyCommand) command()   {}

// Renderer exports collages as image files.
type Renderer struct {
	raster   *Rasterizer
	format   Format
	cellSize int
}

// RendererOption is a functional option for configuring the renderer.
type RendererOption func(*Renderer)

// WithFormat sets the export encoding.
func WithFormat(f Format) RendererOption {
	return func(r *Renderer) {
		if f != "" {
			r.format = f
		}
	}
}

// WithCellSize sets the logical cell edge.
func WithCellSize(px int) RendererOption {
	return func(r *Renderer) {
		if px > 0 {
			r.cellSize = px
		}
	}
}

// NewRenderer creates a renderer drawing with raster.
func NewRenderer(raster *Rasterizer, opts ...RendererOption) *Renderer {
	r := &Renderer{
		raster:   raster,
		format:   FormatPNG,
		cellSize: DefaultCellSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Format returns the export encoding.
func (r *Renderer) Format() Format { return r.format }

// Export rasterizes grid and returns a download plus a success toast, or only a
// failure toast and an error wrapping ErrRasterize.
func (r *Renderer) Export(ctx context.Context, grid collage.Grid, view collage.ViewState) ([]Command, error) {
	data, err := r.Render(ctx, grid, view)
	if err != nil {
		log.Error().Err(err).
			Str("provider", view.Provider).
			Str("identity", view.Identity).
			Msg("Collage export failed")
		return []Command{NotifyCommand{
			Level:   NotifyError,
			Title:   "Download failed",
			Message: "Could not download the collage. Please try again.",
		}}, err
	}

	filename := Filename(view, r.format)
	log.Info().
		Str("filename", filename).
		Int("bytes", len(data)).
		Msg("Collage exported")

	return []Command{
		DownloadCommand{Filename: filename, MimeType: r.format.MimeType(), Data: data},
		NotifyCommand{
			Level:   NotifySuccess,
			Title:   "Download complete!",
			Message: "Your collage was downloaded successfully.",
		},
	}, nil
}

// Render rasterizes and encodes grid.
func (r *Renderer) Render(ctx context.Context, grid collage.Grid, view collage.ViewState) ([]byte, error) {
	layout := ExportLayoutSized(grid, view, r.cellSize)
	img, err := r.raster.Rasterize(ctx, layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRasterize, err)
	}
	data, err := Encode(img, r.format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRasterize, err)
	}
	return data, nil
}

// Filename is "{provider}-{category}-{identity}-collage.{ext}" with unsafe
// characters replaced by "_".
func Filename(view collage.ViewState, f Format) string {
	provider := sanitize(view.Provider)
	if provider == "" {
		provider = "collage"
	}
	identity := sanitize(view.Identity)
	if identity == "" {
		identity = "unknown"
	}
	return fmt.Sprintf("%s-%s-%s-collage.%s", provider, sanitize(string(view.Category)), identity, f.Ext())
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
}
