package checks

import (
	"context"
	"net/url"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/capture"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/extract"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// MobileFriendlyURL is the Mobile-Friendly Test endpoint.
const MobileFriendlyURL = "https://search.google.com/test/mobile-friendly?url="

// DefaultRenderThreshold tolerates the scroll bar in the tool's render.
const DefaultRenderThreshold = 50

// RenderMaxHeight bounds the tool renders kept as artifacts.
const RenderMaxHeight = 1200

// MobileFriendly runs Google's Mobile-Friendly Test, records its verdict
// and compares the tool's render with a live render.
func MobileFriendly() Definition {
	return Definition{
		Kind:   types.KindMobileFriendly,
		Device: browser.Desktop,
		Tag:    "mft",
		ToolURL: func(env Env) string {
			return MobileFriendlyURL + url.QueryEscape(env.Target.URL)
		},
		OperatorPrompt: "Solve the reCAPTCHA in the browser window if one is shown, then continue.",
		Ready: steps.Step{
			Name:     "test results ready",
			Selector: "//*[contains(text(), 'usable on mobile')]",
			Timeout:  steps.ReportTimeout,
		},
		After: []steps.Step{
			{Name: "view tested page", Selector: "//*[@role='button' and contains(., 'View tested page')]", Action: steps.Click()},
			{Name: "screenshot tab", Selector: "//*[@role='tab' and contains(., 'Screenshot')]", Action: steps.Click()},
		},
		Collect: collectMobile,
		Compare: func(ctx context.Context, r *Run) error {
			return r.CompareLiveRender(ctx, browser.GoogleInspectionTool, "mft")
		},
		Defaults: Settings{
			ReadyTimeout:  steps.ReportTimeout,
			StepTimeout:   steps.TransientTimeout,
			DiffThreshold: DefaultRenderThreshold,
			OperatorPause: true,
		},
	}
}

func collectMobile(_ context.Context, r *Run) error {
	r.Capture(capture.FullPage{Page: r.Page, Scroll: true}, nil, "mft", "Mobile-Friendly Test")

	doc, err := r.Snapshot()
	if err != nil {
		return err
	}
	f := r.Findings()
	f.MobileFriendly = doc.MobileVerdict()
	f.ResourcesStatus = doc.ResourcesStatus()

	r.saveRender(doc, "mft-render")
	return nil
}

// saveRender stores the tool's base64 render of the page as r.Render.
func (r *Run) saveRender(doc *extract.Document, tag string) {
	src := doc.RenderImage()
	if !src.Valid {
		return
	}
	data, err := extract.DecodeDataURL(src.String)
	if err != nil {
		r.gap("Tool render", err)
		return
	}
	if artifact, ok := r.SaveImage(data, tag, "Tool render", RenderMaxHeight); ok {
		r.Render = &artifact
	}
}
