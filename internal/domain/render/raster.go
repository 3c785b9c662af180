package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // WebP decoder
	"golang.org/x/sync/errgroup"

	"github.com/edumarques81/chartfy-backend/internal/infra/fetch"
)

const (
	// DefaultScale is the pixel ratio of exported images.
	DefaultScale = 2

	// maxConcurrentFetches bounds artwork downloads per export.
	maxConcurrentFetches = 8

	// Caption metrics in logical pixels.
	nameFontSize   = 7.0
	artistFontSize = 6.0
	captionPadX    = 4
	captionPadY    = 8
	captionGap     = 1
	lineHeight     = 1.25
)

var (
	background   = color.White
	emptyFill    = color.RGBA{0xfe, 0xf2, 0xf2, 0xff}
	placeholderA = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	placeholderB = color.RGBA{0x9c, 0xa3, 0xaf, 0xff}
	nameColor    = color.White
	artistColor  = color.RGBA{0xd1, 0xd5, 0xdb, 0xff}

	regularFont = mustParse(goregular.TTF)
	boldFont    = mustParse(gobold.TTF)
)

// gradientStops are (distance from the bottom, black alpha) pairs.
var gradientStops = []struct{ at, alpha float64 }{
	{0, 0.85},
	{0.4, 0.6},
	{0.8, 0.2},
	{1, 0},
}

func mustParse(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic(err)
	}
	return f
}

// ImageFetcher downloads artwork bytes.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Rasterizer draws an ExportGrid into a bitmap.
type Rasterizer struct {
	fetcher ImageFetcher
	scale   int
}

// NewRasterizer creates a rasterizer. A nil fetcher draws every artwork as a placeholder.
func NewRasterizer(fetcher ImageFetcher, scale int) *Rasterizer {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Rasterizer{fetcher: fetcher, scale: scale}
}

// Rasterize draws layout at the configured scale. Artwork that cannot be fetched
// or decoded is drawn as a placeholder tile; only cancellation fails.
func (r *Rasterizer) Rasterize(ctx context.Context, layout ExportGrid) (*image.RGBA, error) {
	cell := layout.CellSize * r.scale
	tiles, err := r.loadTiles(ctx, layout, cell)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, layout.Width*r.scale, layout.Height*r.scale))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	faces := newCaptionFaces(float64(r.scale))
	defer faces.Close()

	for i, c := range layout.Cells {
		rect := image.Rect(c.X*r.scale, c.Y*r.scale, c.X*r.scale+cell, c.Y*r.scale+cell)
		if !c.Occupied {
			draw.Draw(canvas, rect, image.NewUniform(emptyFill), image.Point{}, draw.Src)
			continue
		}

		if tiles[i] != nil {
			draw.Draw(canvas, rect, tiles[i], image.Point{}, draw.Over)
		} else {
			drawPlaceholder(canvas, rect)
		}

		if c.Caption {
			drawGradient(canvas, rect)
			r.drawCaption(canvas, rect, faces, c.Name, c.Artist)
		}
	}
	return canvas, nil
}

// loadTiles fetches and crops every occupied cell's artwork concurrently.
// A nil tile means the placeholder is drawn.
func (r *Rasterizer) loadTiles(ctx context.Context, layout ExportGrid, cell int) ([]image.Image, error) {
	tiles := make([]image.Image, len(layout.Cells))
	if r.fetcher == nil {
		return tiles, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, c := range layout.Cells {
		if !c.Occupied || c.ImageURL == "" || c.ImageURL == PlaceholderURL {
			continue
		}
		g.Go(func() error {
			tiles[i] = r.loadTile(gctx, c.ImageURL, cell)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tiles, nil
}

func (r *Rasterizer) loadTile(ctx context.Context, url string, size int) image.Image {
	res, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("Artwork unavailable, using placeholder")
		return nil
	}

	img, format, err := image.Decode(bytes.NewReader(res.Data))
	if err != nil {
		log.Debug().Err(err).Str("url", url).Str("type", res.MimeType).Msg("Artwork not decodable, using placeholder")
		return nil
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}

	log.Debug().Str("url", url).Str("format", format).Msg("Artwork loaded")
	return imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
}

// drawPlaceholder draws a light tile with a centered square.
func drawPlaceholder(dst draw.Image, rect image.Rectangle) {
	draw.Draw(dst, rect, image.NewUniform(placeholderA), image.Point{}, draw.Src)
	inset := rect.Dx() / 3
	inner := image.Rect(rect.Min.X+inset, rect.Min.Y+inset, rect.Max.X-inset, rect.Max.Y-inset)
	draw.Draw(dst, inner, image.NewUniform(placeholderB), image.Point{}, draw.Src)
}

// drawGradient darkens rect from the bottom up.
func drawGradient(dst draw.Image, rect image.Rectangle) {
	h := rect.Dy()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		fromBottom := float64(rect.Max.Y-y) / float64(h)
		a := gradientAlpha(fromBottom)
		if a <= 0 {
			continue
		}
		row := image.Rect(rect.Min.X, y, rect.Max.X, y+1)
		draw.Draw(dst, row, image.NewUniform(color.NRGBA{A: uint8(a*255 + 0.5)}), image.Point{}, draw.Over)
	}
}

func gradientAlpha(t float64) float64 {
	if t <= gradientStops[0].at {
		return gradientStops[0].alpha
	}
	for i := 1; i < len(gradientStops); i++ {
		lo, hi := gradientStops[i-1], gradientStops[i]
		if t <= hi.at {
			return lo.alpha + (hi.alpha-lo.alpha)*(t-lo.at)/(hi.at-lo.at)
		}
	}
	return 0
}

type captionFaces struct {
	name   font.Face
	artist font.Face
}

func newCaptionFaces(scale float64) *captionFaces {
	return &captionFaces{
		name:   truetype.NewFace(boldFont, &truetype.Options{Size: nameFontSize * scale, DPI: 72, Hinting: font.HintingFull}),
		artist: truetype.NewFace(regularFont, &truetype.Options{Size: artistFontSize * scale, DPI: 72, Hinting: font.HintingFull}),
	}
}

func (f *captionFaces) Close() {
	f.name.Close()
	f.artist.Close()
}

// drawCaption writes name over artist, bottom-aligned and left-aligned inside rect.
func (r *Rasterizer) drawCaption(dst draw.Image, rect image.Rectangle, faces *captionFaces, name, artist string) {
	s := r.scale
	maxWidth := rect.Dx() - 2*captionPadX*s
	nameLines := wrap(faces.name, name, maxWidth)
	artistLines := wrap(faces.artist, artist, maxWidth)

	nameStep := int(nameFontSize * lineHeight * float64(s))
	artistStep := int(artistFontSize * lineHeight * float64(s))

	x := rect.Min.X + captionPadX*s
	bottom := rect.Max.Y - captionPadY*s
	artistTop := bottom - len(artistLines)*artistStep
	nameTop := artistTop - captionGap*s - len(nameLines)*nameStep

	drawLines(dst, faces.name, nameColor, nameLines, x, nameTop, nameStep)
	drawLines(dst, faces.artist, artistColor, artistLines, x, artistTop, artistStep)
}

func drawLines(dst draw.Image, face font.Face, c color.Color, lines []string, x, top, step int) {
	ascent := face.Metrics().Ascent.Ceil()
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(x, top+i*step+ascent)
		d.DrawString(line)
	}
}

// wrap breaks text into lines no wider than maxWidth, splitting words that
// do not fit on a line of their own.
func wrap(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || maxWidth <= 0 {
		return nil
	}
	limit := fixed.I(maxWidth)

	var lines []string
	var line string
	for _, w := range words {
		candidate := w
		if line != "" {
			candidate = line + " " + w
		}
		if font.MeasureString(face, candidate) <= limit {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
			line = ""
		}
		for font.MeasureString(face, w) > limit {
			head := fitPrefix(face, w, limit)
			lines = append(lines, head)
			w = w[len(head):]
		}
		line = w
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// fitPrefix returns the longest prefix of word that fits limit, at least one rune.
func fitPrefix(face font.Face, word string, limit fixed.Int26_6) string {
	_, first := utf8.DecodeRuneInString(word)
	end := first
	for end < len(word) {
		_, size := utf8.DecodeRuneInString(word[end:])
		if font.MeasureString(face, word[:end+size]) > limit {
			break
		}
		end += size
	}
	return word[:end]
}
