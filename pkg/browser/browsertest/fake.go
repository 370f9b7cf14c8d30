// Package browsertest provides a scripted in-memory browser for tests.
//
// Elements registered on a Page are "present" immediately; WaitFor on any
// other selector fails at once with browser.ErrTimeout instead of sleeping.
package browsertest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// Browser records every page it opens.
type Browser struct {
	// Setup scripts each new page before it is returned.
	Setup func(p *Page)

	// Err makes NewPage fail.
	Err error

	Pages []*Page
}

// NewPage implements browser.Browser.
func (b *Browser) NewPage(opts browser.PageOptions) (browser.Page, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	p := NewPage(opts)
	if b.Setup != nil {
		b.Setup(p)
	}
	b.Pages = append(b.Pages, p)
	return p, nil
}

// OpenPages returns the pages that were not closed.
func (b *Browser) OpenPages() []*Page {
	var open []*Page
	for _, p := range b.Pages {
		if !p.Closed {
			open = append(open, p)
		}
	}
	return open
}

// Page is a scripted browser.Page.
type Page struct {
	Opts browser.PageOptions

	CurrentURL string

	// RewriteURL, when set, maps the navigated URL to the URL reported by URL().
	RewriteURL func(string) string

	NavigateErr error
	HTML        string
	State       []byte

	// ShotFunc overrides the default solid white screenshot.
	ShotFunc func(opts browser.ScreenshotOptions) ([]byte, error)

	Elements map[string][]*Element

	Navigations []string
	Waited      []string
	Shots       []browser.ScreenshotOptions
	Closed      bool
}

// NewPage returns an empty page.
func NewPage(opts browser.PageOptions) *Page {
	return &Page{
		Opts:       opts,
		CurrentURL: "about:blank",
		Elements:   make(map[string][]*Element),
	}
}

// Add registers elements under selector and returns the first one.
func (p *Page) Add(selector string, elements ...*Element) *Element {
	if len(elements) == 0 {
		elements = []*Element{{}}
	}
	for _, el := range elements {
		el.page = p
	}
	p.Elements[selector] = append(p.Elements[selector], elements...)
	return elements[0]
}

// Navigate implements browser.Page.
func (p *Page) Navigate(url string, _ browser.NavigateOptions) error {
	p.Navigations = append(p.Navigations, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.CurrentURL = url
	if p.RewriteURL != nil {
		p.CurrentURL = p.RewriteURL(url)
	}
	return nil
}

// URL implements browser.Page.
func (p *Page) URL() string {
	return p.CurrentURL
}

// WaitFor implements browser.Page.
func (p *Page) WaitFor(selector string, opts browser.WaitOptions) (browser.Element, error) {
	p.Waited = append(p.Waited, selector)
	els := p.Elements[selector]
	if len(els) == 0 {
		return nil, fmt.Errorf("wait for %q (%s): %w", selector, opts.Timeout, browser.ErrTimeout)
	}
	return els[0], nil
}

// QueryAll implements browser.Page.
func (p *Page) QueryAll(selector string) ([]browser.Element, error) {
	els := p.Elements[selector]
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

// Screenshot implements browser.Page.
func (p *Page) Screenshot(opts browser.ScreenshotOptions) ([]byte, error) {
	p.Shots = append(p.Shots, opts)
	if p.ShotFunc != nil {
		return p.ShotFunc(opts)
	}

	w, h := p.Opts.Device.Viewport.Width, p.Opts.Device.Viewport.Height
	if opts.Clip != nil {
		w, h = int(opts.Clip.Width), int(opts.Clip.Height)
	}
	if w <= 0 || h <= 0 {
		w, h = 10, 10
	}
	return SolidPNG(w, h, color.White), nil
}

// Content implements browser.Page.
func (p *Page) Content() (string, error) {
	return p.HTML, nil
}

// StorageState implements browser.Page.
func (p *Page) StorageState() ([]byte, error) {
	if p.State == nil {
		return []byte(`{"cookies":[],"origins":[]}`), nil
	}
	return p.State, nil
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.Closed = true
	return nil
}

// Element is a scripted browser.Element.
type Element struct {
	Box *types.Region

	// Text labels the element in tests.
	Text string

	// OnClick runs after a click is recorded, e.g. to reveal new elements.
	OnClick func(p *Page)

	ClickErr error
	Clicks   int
	Typed    []string

	page *Page
}

// Click implements browser.Element.
func (e *Element) Click() error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.Clicks++
	if e.OnClick != nil {
		e.OnClick(e.page)
	}
	return nil
}

// Type implements browser.Element.
func (e *Element) Type(text string) error {
	e.Typed = append(e.Typed, text)
	return nil
}

// BoundingBox implements browser.Element.
func (e *Element) BoundingBox() (*types.Region, error) {
	if e.Box == nil {
		return nil, browser.ErrNotFound
	}
	box := *e.Box
	return &box, nil
}

// SolidPNG encodes a w x h PNG filled with c.
func SolidPNG(w, h int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return EncodePNG(img)
}

// EncodePNG encodes img, panicking on failure since inputs are test fixtures.
func EncodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
