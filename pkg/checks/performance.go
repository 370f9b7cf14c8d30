package checks

import (
	"context"
	"net/url"
	"time"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/capture"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/validate"
)

// PageSpeedURL is the PageSpeed Insights analysis endpoint.
const PageSpeedURL = "https://pagespeed.web.dev/analysis?url="

// Performance runs PageSpeed Insights and captures the performance section
// of the report down to the "Opportunities" heading.
func Performance() Definition {
	return Definition{
		Kind:   types.KindPerformance,
		Device: browser.PageSpeedDesktop,
		Tag:    "psi",
		ToolURL: func(env Env) string {
			return PageSpeedURL + url.QueryEscape(env.Target.URL)
		},
		Ready: steps.Step{
			Name:     "report ready",
			Selector: ".lh-report",
			Timeout:  steps.ReportTimeout,
		},
		Dismiss: &steps.Step{
			Name:     "dismiss cookie banner",
			Selector: "//button[contains(., 'Ok, Got it.')]",
			Action:   steps.Click(),
		},
		DismissFirstPageOnly: true,
		Collect:              collectPerformance,
		Defaults: Settings{
			ReadyTimeout: steps.ReportTimeout,
			StepTimeout:  steps.TransientTimeout,
			Settle:       1500 * time.Millisecond,
			PassScore:    validate.DefaultPassScore,
		},
	}
}

func collectPerformance(ctx context.Context, r *Run) error {
	doc, err := r.Snapshot()
	if err != nil {
		return err
	}
	r.Findings().Score = doc.PerformanceScore()

	category, ok := r.Steps.BestEffort(ctx, steps.Step{Name: "performance category", Selector: "#performance"})
	if !ok {
		r.Capture(capture.BoundedElement{Page: r.Page}, nil, "psi", "Performance report")
		return nil
	}

	title, ok := r.Steps.BestEffort(ctx, steps.Step{
		Name:     "opportunities heading",
		Selector: "//div[contains(@class, 'lh-audit-group__title') and contains(., 'Opportunities')]",
		State:    browser.StateAttached,
	})
	if !ok {
		r.Capture(capture.BoundedElement{Page: r.Page, Element: category}, nil, "psi", "Performance report")
		return nil
	}

	top, err := category.BoundingBox()
	if err != nil {
		r.Capture(capture.BoundedElement{Page: r.Page, Element: category}, nil, "psi", "Performance report")
		return nil
	}
	bottom, err := title.BoundingBox()
	if err != nil || bottom.Y+bottom.Height <= top.Y {
		r.Capture(capture.BoundedElement{Page: r.Page, Element: category}, nil, "psi", "Performance report")
		return nil
	}

	clip := &capture.Clip{
		Region: types.Region{
			X:      top.X,
			Y:      top.Y,
			Width:  top.Width,
			Height: bottom.Y + bottom.Height - top.Y,
		},
		Padding: capture.DefaultPadding,
	}
	r.Capture(capture.FullPage{Page: r.Page, Scroll: true}, clip, "psi", "Performance report")
	return nil
}
