package checks

import (
	"context"
	"net/url"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/capture"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// SearchConsoleURL opens Search Console for a property.
const SearchConsoleURL = "https://search.google.com/search-console?resource_id="

// Search Console selectors. The inspection panels are rendered twice; the
// second copy is the live test.
const (
	inspectInput    = "//input[@aria-label='Inspect any URL in the current resource']"
	searchButton    = "//button[@aria-label='Search' and @role='button']"
	testLiveButton  = "//div[@role='button' and contains(., 'Test live URL')]"
	liveTestTab     = "//div[@role='button' and contains(., 'Live test')]"
	viewTestedPage  = "//*[@role='button' and contains(., 'View tested page')]"
	screenshotTab   = "//*[@role='tab' and contains(., 'Screenshot')]"
	moreInfoTab     = "//*[@role='tab' and contains(., 'More info')]"
	resourcesButton = "//*[@role='button' and contains(., 'Page resources')]"
	resourcesPanel  = "//div[@data-leave-open-on-resize]"
)

// URLInspection runs a Search Console live URL test and compares the
// rendered screenshot with a live render.
func URLInspection() Definition {
	return Definition{
		Kind:   types.KindURLInspection,
		Device: browser.Desktop,
		Tag:    "gsc",
		ToolURL: func(env Env) string {
			return SearchConsoleURL + url.QueryEscape(env.Site.Origin)
		},
		NeedsSession:   true,
		OperatorPrompt: "Make sure Search Console is open and signed in (solve any CAPTCHA), then continue.",
		Prepare: func(env Env) []steps.Step {
			return []steps.Step{
				{Name: "inspect url", Selector: inspectInput, Essential: true, Action: steps.Sequence(steps.Click(), steps.Type(env.Target.URL))},
				{Name: "search", Selector: searchButton, Essential: true, Action: steps.Click()},
				{Name: "test live url", Selector: testLiveButton, Essential: true, Timeout: steps.ReportTimeout, Action: steps.Click()},
			}
		},
		Ready: steps.Step{
			Name:     "live test ready",
			Selector: liveTestTab,
			Timeout:  steps.ReportTimeout,
		},
		After: []steps.Step{
			{Name: "view tested page", Selector: viewTestedPage, Nth: 1, Action: steps.Click()},
			{Name: "screenshot tab", Selector: screenshotTab, Nth: 1, Action: steps.Click()},
		},
		Collect: collectInspection,
		Compare: func(ctx context.Context, r *Run) error {
			return r.CompareLiveRender(ctx, browser.GoogleInspectionTool, "gsc")
		},
		Defaults: Settings{
			ReadyTimeout:  steps.ReportTimeout,
			StepTimeout:   steps.TransientTimeout,
			DiffThreshold: DefaultRenderThreshold,
			OperatorPause: true,
		},
	}
}

func collectInspection(ctx context.Context, r *Run) error {
	r.Capture(capture.FullPage{Page: r.Page, Scroll: true}, nil, "gsc", "Live test")

	doc, err := r.Snapshot()
	if err != nil {
		return err
	}
	r.saveRender(doc, "gsc-render")

	r.Steps.BestEffort(ctx, steps.Step{Name: "more info tab", Selector: moreInfoTab, Nth: 1, Action: steps.Click()})
	r.Steps.BestEffort(ctx, steps.Step{Name: "page resources", Selector: resourcesButton, Nth: 1, Action: steps.Click()})

	panel, _ := r.Steps.BestEffort(ctx, steps.Step{Name: "resources panel", Selector: resourcesPanel, State: browser.StateAttached, Nth: -1})
	r.Capture(capture.BoundedElement{Page: r.Page, Element: panel}, nil, "gsc-resources", "Page resources")

	if doc, err = r.Snapshot(); err != nil {
		return err
	}
	r.Findings().ResourcesStatus = doc.ResourcesStatus()
	return nil
}
