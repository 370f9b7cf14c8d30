package checks

import (
	"context"
	"fmt"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/capture"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// DefaultJsOnOffThreshold tolerates small layout noise between the renders.
const DefaultJsOnOffThreshold = 250

var pageLoaded = steps.Step{
	Name:     "page loaded",
	Selector: "body",
	State:    browser.StateAttached,
}

// JsOnOff renders the page on a phone with JavaScript enabled and disabled
// and compares the two screenshots.
func JsOnOff() Definition {
	return Definition{
		Kind:   types.KindJsOnOff,
		Device: browser.IPhone13,
		Tag:    "js-on",
		ToolURL: func(env Env) string {
			return env.Target.URL
		},
		NavigateWait: browser.WaitNetworkIdle,
		Ready:        pageLoaded,
		Collect:      collectJsOn,
		Compare:      compareJsOff,
		Defaults: Settings{
			ReadyTimeout:  steps.TransientTimeout * 3,
			StepTimeout:   steps.TransientTimeout,
			DiffThreshold: DefaultJsOnOffThreshold,
		},
	}
}

func collectJsOn(_ context.Context, r *Run) error {
	// Both renders are compared at viewport size; full-page heights differ
	// whenever the script-less page lays out shorter.
	on, ok := r.Capture(capture.FullPage{Page: r.Page}, nil, "js-on", "JavaScript on")
	if !ok {
		return fmt.Errorf("no JavaScript-on screenshot to compare")
	}
	r.Baseline = &on
	return nil
}

func compareJsOff(ctx context.Context, r *Run) error {
	var off types.ScreenshotArtifact
	var ok bool
	opts := browser.PageOptions{Device: browser.IPhone13, DisableJavaScript: true}
	err := r.Variant(opts, func(page browser.Page, exec *steps.Executor) error {
		if err := page.Navigate(r.Env.Target.URL, browser.NavigateOptions{WaitUntil: browser.WaitNetworkIdle, Timeout: r.Settings.ReadyTimeout}); err != nil {
			return fmt.Errorf("failed to load page without JavaScript: %w", err)
		}
		gate := pageLoaded
		gate.Essential = true
		gate.Timeout = r.Settings.ReadyTimeout
		if _, err := exec.Wait(ctx, gate); err != nil {
			return err
		}
		off, ok = r.Capture(capture.FullPage{Page: page}, nil, "js-off", "JavaScript off")
		return nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no JavaScript-off screenshot to compare")
	}

	diff, err := r.Compare(*r.Baseline, off, "js-diff")
	if err != nil {
		return err
	}
	f := r.Findings()
	f.Diff = &diff
	f.VisualDifference.SetValid(diff.Significant)
	return nil
}
