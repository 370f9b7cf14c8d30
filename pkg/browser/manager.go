package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// SessionManager owns the Playwright driver and the single browser process
// shared by every surface of a run.
type SessionManager struct {
	mu         sync.Mutex
	opts       LaunchOptions
	playwright *playwright.Playwright
	browser    playwright.Browser
	started    bool
}

// NewSessionManager creates a new session manager.
func NewSessionManager(opts LaunchOptions) *SessionManager {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	return &SessionManager{opts: opts}
}

// Start installs the driver if needed and launches Chromium.
// It must be called before NewPage.
func (m *SessionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	// Driver output would interleave with the console progress.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
	}
	if m.opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(float64(m.opts.SlowMo.Milliseconds()))
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	m.playwright = pw
	m.browser = b
	m.started = true
	return nil
}

// NewPage opens a new isolated context with a single page.
func (m *SessionManager) NewPage(opts PageOptions) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil, ErrNotStarted
	}

	bctx, err := m.browser.NewContext(contextOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(m.opts.DefaultTimeout.Milliseconds()))

	return &Surface{
		context: bctx,
		page:    page,
	}, nil
}

// Shutdown closes the browser and stops Playwright.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	var errs []error
	if err := m.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.playwright.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// contextOptions maps a PageOptions onto Playwright's context options.
func contextOptions(opts PageOptions) playwright.BrowserNewContextOptions {
	viewport := opts.Device.Viewport
	if viewport.Width == 0 || viewport.Height == 0 {
		viewport = Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}

	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  viewport.Width,
			Height: viewport.Height,
		},
		JavaScriptEnabled: playwright.Bool(!opts.DisableJavaScript),
	}

	if opts.Device.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.Device.UserAgent)
	}
	if opts.Device.DeviceScaleFactor > 0 {
		ctxOpts.DeviceScaleFactor = playwright.Float(opts.Device.DeviceScaleFactor)
	}
	if opts.Device.IsMobile {
		ctxOpts.IsMobile = playwright.Bool(true)
	}
	if opts.Device.HasTouch {
		ctxOpts.HasTouch = playwright.Bool(true)
	}
	if opts.StorageStatePath != "" {
		ctxOpts.StorageStatePath = playwright.String(opts.StorageStatePath)
	}

	return ctxOpts
}
