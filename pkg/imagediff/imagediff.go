// Package imagediff compares two screenshots pixel by pixel.
//
// Colour distance is measured in YIQ space with a per-pixel tolerance, and
// pixels that look like anti-aliasing on either image are not counted, so
// font smoothing and sub-pixel rendering do not produce false positives.
package imagediff

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/spf13/afero"
	"golang.org/x/image/draw"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// ErrDimensionMismatch describes images of different size. Compare reports
// it through DiffResult.DimensionMismatch rather than returning it.
var ErrDimensionMismatch = errors.New("images have different dimensions")

// DefaultTolerance is the per-pixel colour tolerance in [0, 1].
const DefaultTolerance = 0.1

// maxYIQDelta is the largest possible YIQ distance between two colours.
const maxYIQDelta = 35215.0

// Options configures a comparison.
type Options struct {
	// Threshold is the number of differing pixels tolerated before the
	// difference is significant.
	Threshold int

	// Tolerance is the per-pixel colour tolerance (DefaultTolerance when zero).
	Tolerance float64

	// IncludeAntiAliased counts anti-aliased pixels as differences.
	IncludeAntiAliased bool

	// DiffPath is where the highlighted diff image is written when the
	// difference is significant. No image is written when empty.
	DiffPath string
}

// Engine compares artifacts stored on a filesystem.
type Engine struct {
	fs afero.Fs
}

// New creates an Engine reading and writing through fs.
func New(fs afero.Fs) *Engine {
	return &Engine{fs: fs}
}

// Compare decodes both artifacts and counts differing pixels. Images of
// different size are reported as significant without a diff image. The
// returned error is reserved for unreadable artifacts.
func (e *Engine) Compare(a, b types.ScreenshotArtifact, opts Options) (types.DiffResult, error) {
	imgA, err := e.decode(a.Path)
	if err != nil {
		return types.DiffResult{}, err
	}
	imgB, err := e.decode(b.Path)
	if err != nil {
		return types.DiffResult{}, err
	}

	result := types.DiffResult{Threshold: opts.Threshold}

	if imgA.Rect.Dx() != imgB.Rect.Dx() || imgA.Rect.Dy() != imgB.Rect.Dy() {
		result.Significant = true
		result.DimensionMismatch = true
		return result, nil
	}

	diff := image.NewNRGBA(imgA.Rect)
	result.PixelDelta = Pixels(imgA, imgB, diff, opts)
	result.Significant = result.PixelDelta > opts.Threshold

	if result.Significant && opts.DiffPath != "" {
		if err := e.write(opts.DiffPath, diff); err != nil {
			return result, err
		}
		result.DiffArtifactPath = opts.DiffPath
	}

	return result, nil
}

// Pixels counts the differing pixels of two same-sized images and, when out
// is non-nil, paints differences red, anti-aliasing yellow and unchanged
// pixels as a faded grayscale copy of a.
func Pixels(a, b *image.NRGBA, out *image.NRGBA, opts Options) int {
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	maxDelta := maxYIQDelta * tolerance * tolerance

	w, h := a.Rect.Dx(), a.Rect.Dy()
	count := 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			delta := colorDelta(a, b, x, y, x, y, false)

			if math.Abs(delta) > maxDelta {
				if !opts.IncludeAntiAliased && (antialiased(a, x, y, w, h, b) || antialiased(b, x, y, w, h, a)) {
					paint(out, x, y, color.NRGBA{R: 255, G: 255, A: 255})
					continue
				}
				paint(out, x, y, color.NRGBA{R: 255, A: 255})
				count++
				continue
			}

			if out != nil {
				r, g, bl, al := rgba(a, x, y)
				v := uint8(255 + (rgb2y(blend(r, al), blend(g, al), blend(bl, al))-255)*0.1)
				out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
			}
		}
	}

	return count
}

func (e *Engine) decode(path string) (*image.NRGBA, error) {
	raw, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return toNRGBA(img), nil
}

func (e *Engine) write(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode diff image: %w", err)
	}
	if err := afero.WriteFile(e.fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write diff image: %w", err)
	}
	return nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Rect, img, b.Min, draw.Src)
	return n
}

func paint(out *image.NRGBA, x, y int, c color.NRGBA) {
	if out != nil {
		out.SetNRGBA(x, y, c)
	}
}

func rgba(img *image.NRGBA, x, y int) (r, g, b, a float64) {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	return float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])
}

func samePixel(img *image.NRGBA, x1, y1, x2, y2 int) bool {
	i, j := img.PixOffset(x1, y1), img.PixOffset(x2, y2)
	return img.Pix[i] == img.Pix[j] && img.Pix[i+1] == img.Pix[j+1] &&
		img.Pix[i+2] == img.Pix[j+2] && img.Pix[i+3] == img.Pix[j+3]
}

// colorDelta is the squared YIQ distance between a pixel of a and a pixel
// of b, negative when the second pixel is brighter. yOnly returns the
// brightness difference alone.
func colorDelta(a, b *image.NRGBA, x1, y1, x2, y2 int, yOnly bool) float64 {
	r1, g1, b1, a1 := rgba(a, x1, y1)
	r2, g2, b2, a2 := rgba(b, x2, y2)

	if r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2 {
		return 0
	}

	if a1 < 255 {
		r1, g1, b1 = blend(r1, a1), blend(g1, a1), blend(b1, a1)
	}
	if a2 < 255 {
		r2, g2, b2 = blend(r2, a2), blend(g2, a2), blend(b2, a2)
	}

	y := rgb2y(r1, g1, b1) - rgb2y(r2, g2, b2)
	if yOnly {
		return y
	}

	i := rgb2i(r1, g1, b1) - rgb2i(r2, g2, b2)
	q := rgb2q(r1, g1, b1) - rgb2q(r2, g2, b2)
	delta := 0.5053*y*y + 0.299*i*i + 0.1957*q*q

	if y > 0 {
		return -delta
	}
	return delta
}

// antialiased reports whether the pixel at (x1, y1) of img looks like part
// of an anti-aliased edge, judged against its neighbours and against other.
func antialiased(img *image.NRGBA, x1, y1, w, h int, other *image.NRGBA) bool {
	x0, y0 := max(x1-1, 0), max(y1-1, 0)
	x2, y2 := min(x1+1, w-1), min(y1+1, h-1)

	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == y0 || y1 == y2 {
		zeroes = 1
	}

	var minDelta, maxDelta float64
	var minX, minY, maxX, maxY int

	for x := x0; x <= x2; x++ {
		for y := y0; y <= y2; y++ {
			if x == x1 && y == y1 {
				continue
			}

			delta := colorDelta(img, img, x1, y1, x, y, true)
			switch {
			case delta == 0:
				zeroes++
				if zeroes > 2 {
					return false
				}
			case delta < minDelta:
				minDelta, minX, minY = delta, x, y
			case delta > maxDelta:
				maxDelta, maxX, maxY = delta, x, y
			}
		}
	}

	// no darkest or no brightest neighbour: not an edge
	if minDelta == 0 || maxDelta == 0 {
		return false
	}

	return (hasManySiblings(img, minX, minY, w, h) && hasManySiblings(other, minX, minY, w, h)) ||
		(hasManySiblings(img, maxX, maxY, w, h) && hasManySiblings(other, maxX, maxY, w, h))
}

// hasManySiblings reports whether at least three neighbours share the exact
// colour of the pixel at (x1, y1).
func hasManySiblings(img *image.NRGBA, x1, y1, w, h int) bool {
	x0, y0 := max(x1-1, 0), max(y1-1, 0)
	x2, y2 := min(x1+1, w-1), min(y1+1, h-1)

	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == y0 || y1 == y2 {
		zeroes = 1
	}

	for x := x0; x <= x2; x++ {
		for y := y0; y <= y2; y++ {
			if x == x1 && y == y1 {
				continue
			}
			if samePixel(img, x1, y1, x, y) {
				zeroes++
			}
			if zeroes > 2 {
				return true
			}
		}
	}
	return false
}

func blend(c, a float64) float64 {
	return 255 + (c-255)*a/255
}

func rgb2y(r, g, b float64) float64 { return r*0.29889531 + g*0.58662247 + b*0.11448223 }
func rgb2i(r, g, b float64) float64 { return r*0.59597799 - g*0.27417610 - b*0.32180189 }
func rgb2q(r, g, b float64) float64 { return r*0.21147017 - g*0.52261711 + b*0.31114694 }
