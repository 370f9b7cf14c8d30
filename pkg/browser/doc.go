// Package browser is the browser control surface used by the page checks.
//
// A single SessionManager launches Chromium through Playwright once per run.
// Every check opens its own Surface (an isolated browser context with one
// page) with the device profile it needs, and closes it before returning:
//
//	manager := browser.NewSessionManager(browser.LaunchOptions{Headless: false})
//	if err := manager.Start(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	page, err := manager.NewPage(browser.PageOptions{Device: browser.IPhone13})
//	if err != nil {
//	    return err
//	}
//	defer page.Close()
//
//	err = page.Navigate("https://example.com", browser.NavigateOptions{WaitUntil: browser.WaitNetworkIdle})
//
// Surfaces share cookies through a Playwright storage-state file so an
// authenticated Google session survives across contexts.
//
// Selectors are passed to Playwright verbatim, so both CSS selectors and
// "xpath=//..." selectors are accepted.
//
// The package is not safe for concurrent use of a single Page.
package browser
