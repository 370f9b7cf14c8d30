package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// Surface is a Page backed by its own Playwright browser context.
type Surface struct {
	context playwright.BrowserContext
	page    playwright.Page
}

// Navigate navigates the surface to the specified URL.
func (s *Surface) Navigate(url string, opts NavigateOptions) error {
	gotoOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = millis(opts.Timeout)
	}

	if _, err := s.page.Goto(url, gotoOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", translate(err))
	}
	return nil
}

// URL returns the current page URL.
func (s *Surface) URL() string {
	return s.page.URL()
}

// WaitFor waits for an element matching selector.
func (s *Surface) WaitFor(selector string, opts WaitOptions) (Element, error) {
	if opts.State == "" {
		opts.State = StateVisible
	}

	state := playwright.WaitForSelectorState(opts.State)
	waitOpts := playwright.PageWaitForSelectorOptions{State: &state}
	if opts.Timeout > 0 {
		waitOpts.Timeout = millis(opts.Timeout)
	}

	handle, err := s.page.WaitForSelector(selector, waitOpts)
	if err != nil {
		return nil, fmt.Errorf("wait for %q: %w", selector, translate(err))
	}
	if handle == nil {
		// hidden/detached waits resolve without an element
		return nil, nil
	}
	return &element{page: s.page, handle: handle}, nil
}

// QueryAll returns all elements matching selector.
func (s *Surface) QueryAll(selector string) ([]Element, error) {
	handles, err := s.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, translate(err))
	}

	elements := make([]Element, 0, len(handles))
	for _, h := range handles {
		elements = append(elements, &element{page: s.page, handle: h})
	}
	return elements, nil
}

// Screenshot captures the page as PNG.
func (s *Surface) Screenshot(opts ScreenshotOptions) ([]byte, error) {
	data, err := s.page.Screenshot(screenshotOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", translate(err))
	}
	return data, nil
}

// Content returns the serialized DOM of the page.
func (s *Surface) Content() (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("content extraction failed: %w", translate(err))
	}
	return html, nil
}

// StorageState returns the context's cookies and origins as JSON.
func (s *Surface) StorageState() ([]byte, error) {
	state, err := s.context.StorageState()
	if err != nil {
		return nil, fmt.Errorf("storage state: %w", err)
	}
	return json.MarshalIndent(state, "", "  ")
}

// Close closes the page and its context. Errors from the page are ignored
// when the context closes cleanly.
func (s *Surface) Close() error {
	_ = s.page.Close()
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("close context: %w", err)
	}
	return nil
}

type element struct {
	page   playwright.Page
	handle playwright.ElementHandle
}

func (e *element) Click() error {
	if err := e.handle.Click(); err != nil {
		return fmt.Errorf("click failed: %w", translate(err))
	}
	return nil
}

func (e *element) Type(text string) error {
	if err := e.handle.Type(text); err != nil {
		return fmt.Errorf("type failed: %w", translate(err))
	}
	return nil
}

func (e *element) BoundingBox() (*types.Region, error) {
	box, err := e.handle.BoundingBox()
	if err != nil {
		return nil, fmt.Errorf("bounding box: %w", translate(err))
	}
	if box == nil {
		// detached or display:none
		return nil, ErrNotFound
	}

	// Playwright reports the box in viewport coordinates.
	offset, err := e.page.Evaluate(`() => [window.scrollX, window.scrollY]`)
	if err != nil {
		return nil, fmt.Errorf("scroll offset: %w", translate(err))
	}
	dx, dy := scrollOffset(offset)
	return &types.Region{X: box.X + dx, Y: box.Y + dy, Width: box.Width, Height: box.Height}, nil
}

// scrollOffset reads the [x, y] pair returned by the page. Anything else is
// treated as an unscrolled page.
func scrollOffset(v interface{}) (x, y float64) {
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return 0, 0
	}
	return number(pair[0]), number(pair[1])
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func screenshotOptions(opts ScreenshotOptions) playwright.PageScreenshotOptions {
	shotOpts := playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	}
	if opts.Clip != nil {
		// A clip is document-relative and may reach below the fold.
		shotOpts.Clip = &playwright.Rect{
			X:      opts.Clip.X,
			Y:      opts.Clip.Y,
			Width:  opts.Clip.Width,
			Height: opts.Clip.Height,
		}
		shotOpts.FullPage = playwright.Bool(true)
		return shotOpts
	}
	if opts.FullPage {
		shotOpts.FullPage = playwright.Bool(true)
	}
	return shotOpts
}

// translate maps Playwright timeouts onto ErrTimeout so callers need not
// import playwright.
func translate(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
