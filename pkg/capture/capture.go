// Package capture stores screenshots of page surfaces under deterministic,
// collision-free names.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/image/draw"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// ErrCaptureUnavailable is returned when the requested surface or region
// cannot be resolved. Callers record a note and continue without an artifact.
var ErrCaptureUnavailable = errors.New("capture unavailable")

const (
	// DefaultPadding is added on every side of an element's bounding box.
	DefaultPadding = 5.0

	// DefaultMaxHeight bounds elements of unbounded height.
	DefaultMaxHeight = 1200.0
)

// Surface is what a screenshot is taken of: a FullPage or a BoundedElement.
type Surface interface {
	page() browser.Page
}

// FullPage captures the page. Scroll captures the whole scroll height
// instead of the viewport.
type FullPage struct {
	Page   browser.Page
	Scroll bool
}

func (s FullPage) page() browser.Page { return s.Page }

// BoundedElement captures the bounding box of a previously located element.
type BoundedElement struct {
	Page    browser.Page
	Element browser.Element
}

func (s BoundedElement) page() browser.Page { return s.Page }

// Clip is an explicit clip rectangle. Padding is added symmetrically and
// the padded height is clamped to MaxHeight (DefaultMaxHeight when zero).
type Clip struct {
	Region    types.Region
	Padding   float64
	MaxHeight float64
}

// Capturer writes screenshots for one site into one directory.
type Capturer struct {
	fs     afero.Fs
	dir    string
	domain string
	now    func() time.Time
}

// New creates a Capturer writing into dir on fs.
func New(fs afero.Fs, dir string, site types.Site) *Capturer {
	return &Capturer{
		fs:     fs,
		dir:    dir,
		domain: site.Domain,
		now:    time.Now,
	}
}

// WithClock replaces the capture clock.
func (c *Capturer) WithClock(now func() time.Time) *Capturer {
	c.now = now
	return c
}

// Capture screenshots surface and stores it as "{domain}_{prefix}_{timestamp}.png".
// An explicit clip wins over the surface's own bounds.
func (c *Capturer) Capture(surface Surface, clip *Clip, prefix string) (types.ScreenshotArtifact, error) {
	if surface == nil || surface.page() == nil {
		return types.ScreenshotArtifact{}, fmt.Errorf("%w: no surface", ErrCaptureUnavailable)
	}

	opts := browser.ScreenshotOptions{}
	switch s := surface.(type) {
	case FullPage:
		opts.FullPage = s.Scroll
	case BoundedElement:
		if clip != nil {
			break
		}
		if s.Element == nil {
			return types.ScreenshotArtifact{}, fmt.Errorf("%w: element missing", ErrCaptureUnavailable)
		}
		box, err := s.Element.BoundingBox()
		if err != nil {
			return types.ScreenshotArtifact{}, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		clip = &Clip{Region: *box, Padding: DefaultPadding}
	}

	var region *types.Region
	if clip != nil {
		r := clip.resolve()
		if r.Width <= 0 || r.Height <= 0 {
			return types.ScreenshotArtifact{}, fmt.Errorf("%w: empty region", ErrCaptureUnavailable)
		}
		region = &r
		opts.Clip = region
	}

	data, err := surface.page().Screenshot(opts)
	if err != nil {
		return types.ScreenshotArtifact{}, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	artifact, err := c.write(data, prefix)
	if err != nil {
		return types.ScreenshotArtifact{}, err
	}
	artifact.Region = region
	return artifact, nil
}

// SaveImage stores an already rendered PNG, trimmed to maxHeight pixels
// (no trim when maxHeight <= 0).
func (c *Capturer) SaveImage(data []byte, prefix string, maxHeight int) (types.ScreenshotArtifact, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return types.ScreenshotArtifact{}, fmt.Errorf("%w: decode image: %v", ErrCaptureUnavailable, err)
	}

	b := img.Bounds()
	if maxHeight > 0 && b.Dy() > maxHeight {
		trimmed := image.NewNRGBA(image.Rect(0, 0, b.Dx(), maxHeight))
		draw.Copy(trimmed, image.Point{}, img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+maxHeight), draw.Src, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, trimmed); err != nil {
			return types.ScreenshotArtifact{}, fmt.Errorf("failed to encode trimmed image: %w", err)
		}
		data = buf.Bytes()
	}

	return c.write(data, prefix)
}

// Path returns the next free artifact path for prefix.
func (c *Capturer) Path(prefix string) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(c.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	base := fmt.Sprintf("%s_%s_%s", c.domain, prefix, ts)

	path := filepath.Join(c.dir, base+".png")
	for i := 1; ; i++ {
		exists, err := afero.Exists(c.fs, path)
		if err != nil || !exists {
			return path
		}
		path = filepath.Join(c.dir, fmt.Sprintf("%s-%d.png", base, i))
	}
}

func (c *Capturer) write(data []byte, prefix string) (types.ScreenshotArtifact, error) {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return types.ScreenshotArtifact{}, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	capturedAt := c.now()
	path := c.Path(prefix)
	if err := afero.WriteFile(c.fs, path, data, 0o644); err != nil {
		return types.ScreenshotArtifact{}, fmt.Errorf("failed to write screenshot: %w", err)
	}

	return types.ScreenshotArtifact{
		Path:       path,
		CapturedAt: capturedAt,
	}, nil
}

func (c Clip) resolve() types.Region {
	maxHeight := c.MaxHeight
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}

	r := types.Region{
		X:      c.Region.X - c.Padding,
		Y:      c.Region.Y - c.Padding,
		Width:  c.Region.Width + 2*c.Padding,
		Height: c.Region.Height + 2*c.Padding,
	}
	if r.X < 0 {
		r.Width += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.Height += r.Y
		r.Y = 0
	}
	if r.Height > maxHeight {
		r.Height = maxHeight
	}
	return r
}
