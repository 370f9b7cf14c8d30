package browser

import (
	"errors"
	"time"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

var (
	// ErrTimeout is returned when a wait exceeds its timeout.
	ErrTimeout = errors.New("browser: timeout")

	// ErrNotFound is returned when an element cannot be resolved or has no box.
	ErrNotFound = errors.New("browser: element not found")

	// ErrNotStarted is returned when a page is requested before Start.
	ErrNotStarted = errors.New("browser: session manager not started")
)

// Browser opens isolated page surfaces on one shared browser session.
type Browser interface {
	NewPage(opts PageOptions) (Page, error)
}

// Page is a single tab inside its own browser context.
type Page interface {
	// Navigate loads url and waits according to opts.
	Navigate(url string, opts NavigateOptions) error

	// URL returns the current page URL, which tools may rewrite after load.
	URL() string

	// WaitFor blocks until an element matching selector reaches opts.State.
	WaitFor(selector string, opts WaitOptions) (Element, error)

	// QueryAll returns every element currently matching selector.
	QueryAll(selector string) ([]Element, error)

	// Screenshot captures the viewport, the full page or a clip as PNG.
	Screenshot(opts ScreenshotOptions) ([]byte, error)

	// Content returns the serialized DOM.
	Content() (string, error)

	// StorageState returns cookies and local storage as Playwright JSON.
	StorageState() ([]byte, error)

	// Close releases the page and its browser context.
	Close() error
}

// Element is a handle to a DOM element on a Page.
type Element interface {
	Click() error
	Type(text string) error

	// BoundingBox is relative to the document, not the viewport, so it can
	// be used as a full-page screenshot clip.
	BoundingBox() (*types.Region, error)
}

// LaunchOptions configures the browser process.
type LaunchOptions struct {
	// Headless runs Chromium without a window. The interactive steps need a
	// visible browser, so the default is headed.
	Headless bool

	// SlowMo delays every Playwright operation.
	SlowMo time.Duration

	// DefaultTimeout applies to operations without their own timeout.
	DefaultTimeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Device describes the emulated client of a surface.
type Device struct {
	Name              string
	UserAgent         string
	Viewport          Viewport
	DeviceScaleFactor float64
	IsMobile          bool
	HasTouch          bool
}

// PageOptions configures a new surface.
type PageOptions struct {
	Device Device

	// DisableJavaScript turns script execution off for the whole context.
	DisableJavaScript bool

	// StorageStatePath seeds cookies from a Playwright storage-state file.
	StorageStatePath string
}

// WaitUntil specifies when navigation is considered complete.
type WaitUntil string

const (
	WaitLoad        WaitUntil = "load"
	WaitNetworkIdle WaitUntil = "networkidle"
)

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	WaitUntil WaitUntil

	// Timeout of zero means the session default.
	Timeout time.Duration
}

// ElementState is the state WaitFor waits for.
type ElementState string

const (
	StateAttached ElementState = "attached"
	StateVisible  ElementState = "visible"
)

// WaitOptions configures waiting behavior.
type WaitOptions struct {
	// State defaults to StateVisible.
	State   ElementState
	Timeout time.Duration
}

// ScreenshotOptions configures a page screenshot. Clip wins over FullPage.
type ScreenshotOptions struct {
	FullPage bool
	Clip     *types.Region
}

// Default values for various operations
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1400
	DefaultViewportHeight = 900
)
