package checks

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser/browsertest"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

var home = Env{
	Site:      types.Site{Origin: "https://example.com/", Domain: "example.com"},
	Target:    types.PageTarget{Label: "Home", URL: "https://example.com/"},
	FirstPage: true,
}

func newDeps(b *browsertest.Browser, fs afero.Fs) Deps {
	logger, _ := logtest.NewNullLogger()
	return Deps{
		Browser:       b,
		Fs:            fs,
		Log:           logger,
		ScreenshotDir: "/out",
		Now:           func() time.Time { return fixedNow },
	}
}

func newModule(t *testing.T, def Definition, deps Deps) *Module {
	t.Helper()
	settings := def.Defaults
	settings.Settle = time.Millisecond
	m, err := New(def, settings, deps)
	require.NoError(t, err)
	return m
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

func TestJsOnOff_IdenticalRendersPass(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := &browsertest.Browser{Setup: func(p *browsertest.Page) { p.Add("body") }}

	res := newModule(t, JsOnOff(), newDeps(b, fs)).Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	assert.Equal(t, types.VerdictPassed, res.Verdict)
	require.NotNil(t, res.Findings.Diff)
	assert.False(t, res.Findings.Diff.Significant)
	assert.Zero(t, res.Findings.Diff.PixelDelta)
	assert.Empty(t, res.Findings.Diff.DiffArtifactPath)
	assert.Equal(t, "No visual differences in page rendering", res.Notes[types.NoteVisual])

	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "JavaScript on", res.Artifacts[0].Label)
	assert.Equal(t, "JavaScript off", res.Artifacts[1].Label)
	assert.NotEqual(t, res.Artifacts[0].Path, res.Artifacts[1].Path)

	require.Len(t, b.Pages, 2)
	assert.False(t, b.Pages[0].Opts.DisableJavaScript)
	assert.True(t, b.Pages[1].Opts.DisableJavaScript)
	assert.Equal(t, browser.IPhone13, b.Pages[0].Opts.Device)
	assert.Empty(t, b.OpenPages())

	diffs, err := afero.Glob(fs, "/out/*js-diff*")
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestJsOnOff_BlankWithoutJavaScriptFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	hero := image.NewNRGBA(image.Rect(0, 0, 390, 844))
	for y := 0; y < 844; y++ {
		for x := 0; x < 390; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 20 && x < 270 && y >= 20 && y < 220 {
				c = color.NRGBA{A: 255}
			}
			hero.SetNRGBA(x, y, c)
		}
	}
	withHero := browsertest.EncodePNG(hero)
	blank := browsertest.SolidPNG(390, 844, color.White)
	tall := browsertest.SolidPNG(390, 2400, color.White)

	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		p.Add("body")
		p.ShotFunc = func(opts browser.ScreenshotOptions) ([]byte, error) {
			if opts.FullPage {
				return tall, nil
			}
			if p.Opts.DisableJavaScript {
				return blank, nil
			}
			return withHero, nil
		}
	}}

	res := newModule(t, JsOnOff(), newDeps(b, fs)).Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	assert.Equal(t, types.VerdictFailed, res.Verdict)
	require.NotNil(t, res.Findings.Diff)
	assert.Equal(t, 50000, res.Findings.Diff.PixelDelta)
	assert.Equal(t, DefaultJsOnOffThreshold, res.Findings.Diff.Threshold)
	assert.True(t, res.Findings.Diff.Significant)

	want := filepath.Join("/out", "example.com_js-diff_home_2024-03-05T14-07-09-000Z.png")
	assert.Equal(t, want, res.Findings.Diff.DiffArtifactPath)
	assert.True(t, exists(t, fs, want))
	assert.Equal(t, "Visual differences in page rendering", res.Notes[types.NoteVisual])
	assert.Empty(t, b.OpenPages())
}

func TestJsOnOff_ComparesViewportWhenPageHeightsDiffer(t *testing.T) {
	fs := afero.NewMemMapFs()
	onPage := browsertest.SolidPNG(390, 844, color.Black)
	offPage := browsertest.SolidPNG(390, 844, color.White)

	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		p.Add("body")
		p.ShotFunc = func(opts browser.ScreenshotOptions) ([]byte, error) {
			switch {
			case opts.FullPage && p.Opts.DisableJavaScript:
				return browsertest.SolidPNG(390, 900, color.White), nil
			case opts.FullPage:
				return browsertest.SolidPNG(390, 3200, color.Black), nil
			case p.Opts.DisableJavaScript:
				return offPage, nil
			}
			return onPage, nil
		}
	}}

	res := newModule(t, JsOnOff(), newDeps(b, fs)).Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	require.NotNil(t, res.Findings.Diff)
	assert.False(t, res.Findings.Diff.DimensionMismatch)
	assert.Equal(t, 390*844, res.Findings.Diff.PixelDelta)
	assert.True(t, res.Findings.Diff.Significant)
	assert.NotEmpty(t, res.Findings.Diff.DiffArtifactPath)
	assert.Equal(t, types.VerdictFailed, res.Verdict)

	require.Len(t, b.Pages, 2)
	for _, p := range b.Pages {
		require.NotEmpty(t, p.Shots)
		assert.False(t, p.Shots[0].FullPage)
	}
}

func TestVariant_SkippedStepsReachResult(t *testing.T) {
	def := JsOnOff()
	def.Compare = func(ctx context.Context, r *Run) error {
		return r.Variant(browser.PageOptions{Device: browser.IPhone13}, func(_ browser.Page, exec *steps.Executor) error {
			exec.BestEffort(ctx, steps.Step{Name: "close interstitial", Selector: "#interstitial"})
			return nil
		})
	}

	b := &browsertest.Browser{Setup: func(p *browsertest.Page) { p.Add("body") }}
	res := newModule(t, def, newDeps(b, afero.NewMemMapFs())).Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	assert.Contains(t, res.Notes[types.NoteSkippedSteps], "close interstitial")
	assert.Empty(t, b.OpenPages())
}

func TestPerformance_ReportNeverReady(t *testing.T) {
	b := &browsertest.Browser{}

	res := newModule(t, Performance(), newDeps(b, afero.NewMemMapFs())).Execute(context.Background(), home)

	assert.True(t, res.Errored)
	assert.Equal(t, types.VerdictFailed, res.Verdict)
	assert.Equal(t, StageReady, res.Notes[types.NoteStage])
	assert.Contains(t, res.Notes[types.NoteError], "report ready")
	assert.Empty(t, res.Artifacts)
	assert.Equal(t, fixedNow, res.FinishedAt)

	require.Len(t, b.Pages, 1)
	assert.True(t, b.Pages[0].Closed)
}

const psiMarkup = `<div class="lh-report">
	<div class="lh-category" id="performance"><div class="lh-gauge__percentage">85</div></div>
	<div class="lh-audit-group__title">Opportunities</div>
</div>`

func performancePage(p *browsertest.Page) {
	p.HTML = psiMarkup
	p.RewriteURL = func(u string) string { return u + "&form_factor=desktop" }
	p.Add(".lh-report")
	p.Add("#performance", &browsertest.Element{Box: &types.Region{X: 100, Y: 300, Width: 800, Height: 200}})
	p.Add("//div[contains(@class, 'lh-audit-group__title') and contains(., 'Opportunities')]",
		&browsertest.Element{Box: &types.Region{X: 100, Y: 900, Width: 400, Height: 30}})
}

func TestPerformance(t *testing.T) {
	tests := []struct {
		name        string
		firstPage   bool
		wantClicked int
	}{
		{name: "first page dismisses the banner", firstPage: true, wantClicked: 1},
		{name: "later pages leave it alone", firstPage: false, wantClicked: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			var banner *browsertest.Element
			b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
				performancePage(p)
				banner = p.Add(Performance().Dismiss.Selector)
			}}

			env := home
			env.FirstPage = tt.firstPage
			res := newModule(t, Performance(), newDeps(b, fs)).Execute(context.Background(), env)

			assert.False(t, res.Errored, res.Notes)
			assert.Equal(t, types.VerdictPassed, res.Verdict)
			assert.Equal(t, 85.0, res.Findings.Score.Float64)
			assert.Equal(t, "85", res.Notes[types.NoteScore])
			assert.Equal(t, tt.wantClicked, banner.Clicks)
			assert.Equal(t, PageSpeedURL+"https%3A%2F%2Fexample.com%2F&form_factor=desktop", res.TestURL)

			require.Len(t, res.Artifacts, 1)
			assert.Equal(t, &types.Region{X: 95, Y: 295, Width: 810, Height: 640}, res.Artifacts[0].Region)
			assert.True(t, exists(t, fs, res.Artifacts[0].Path))
			assert.Equal(t, browser.PageSpeedDesktop, b.Pages[0].Opts.Device)
			assert.True(t, b.Pages[0].Closed)
		})
	}
}

func TestPerformance_MissingHeadingFallsBackToCategory(t *testing.T) {
	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		p.HTML = `<div id="performance"><div class="lh-gauge__percentage">45</div></div>`
		p.Add(".lh-report")
		p.Add("#performance", &browsertest.Element{Box: &types.Region{X: 10, Y: 10, Width: 100, Height: 50}})
	}}

	res := newModule(t, Performance(), newDeps(b, afero.NewMemMapFs())).Execute(context.Background(), home)

	assert.Equal(t, types.VerdictFailed, res.Verdict)
	assert.False(t, res.Errored)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, &types.Region{X: 5, Y: 5, Width: 110, Height: 60}, res.Artifacts[0].Region)
	assert.Contains(t, res.Notes[types.NoteSkippedSteps], "opportunities heading")
	assert.Contains(t, res.Notes[types.NoteSkippedSteps], "dismiss cookie banner")
}

func renderDataURL(w, h int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(browsertest.SolidPNG(w, h, color.White))
}

func TestMobileFriendly(t *testing.T) {
	fs := afero.NewMemMapFs()
	def := MobileFriendly()
	markup := `<h2>Page is usable on mobile</h2>
		<div><div>Page resources</div><div>All page resources loaded</div></div>
		<span role="tabpanel" id="p1"><img src="` + renderDataURL(412, 1200) + `"></span>`

	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		if p.Opts.Device.Name != browser.Desktop.Name {
			return
		}
		p.HTML = markup
		p.Add(def.Ready.Selector)
		for _, step := range def.After {
			p.Add(step.Selector)
		}
	}}

	var prompts []string
	deps := newDeps(b, fs)
	deps.Operator = steps.OperatorFunc(func(_ context.Context, prompt string) error {
		prompts = append(prompts, prompt)
		return nil
	})

	res := newModule(t, def, deps).Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	assert.Equal(t, types.VerdictPassed, res.Verdict)
	assert.Equal(t, []string{def.OperatorPrompt}, prompts)
	assert.Equal(t, "Page is usable on mobile", res.Findings.MobileFriendly.String)
	assert.Equal(t, "Page Resources: All page resources loaded", res.Notes[types.NoteResources])
	assert.True(t, res.Findings.VisualDifference.Valid)
	assert.False(t, res.Findings.VisualDifference.Bool)

	labels := make([]string, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		labels = append(labels, a.Label)
	}
	assert.Equal(t, []string{"Mobile-Friendly Test", "Tool render", "Live render"}, labels)

	require.Len(t, b.Pages, 2)
	assert.Equal(t, browser.GoogleInspectionTool, b.Pages[1].Opts.Device)
	assert.Equal(t, []string{home.Target.URL}, b.Pages[1].Navigations)
	assert.Empty(t, b.OpenPages())
}

func TestMobileFriendly_NoRenderWarns(t *testing.T) {
	def := MobileFriendly()
	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		p.HTML = `<h2>Page is usable on mobile</h2>`
		p.Add(def.Ready.Selector)
	}}

	res := newModule(t, def, newDeps(b, afero.NewMemMapFs())).Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	assert.Equal(t, types.VerdictWarning, res.Verdict)
	assert.False(t, res.Findings.VisualDifference.Valid)
	assert.Contains(t, res.Notes[types.NoteCaptureGap], "no tool render")
	assert.Contains(t, res.Notes[types.NoteSkippedSteps], "view tested page")
	assert.Len(t, b.Pages, 1)
}

func TestMobileFriendly_OperatorGivesUp(t *testing.T) {
	b := &browsertest.Browser{}
	deps := newDeps(b, afero.NewMemMapFs())
	deps.Operator = steps.OperatorFunc(func(context.Context, string) error { return context.Canceled })

	res := newModule(t, MobileFriendly(), deps).Execute(context.Background(), home)

	assert.True(t, res.Errored)
	assert.Equal(t, StageOperator, res.Notes[types.NoteStage])
	assert.Empty(t, b.OpenPages())
}

func TestMobileFriendly_ClosedOperatorInput(t *testing.T) {
	b := &browsertest.Browser{}
	deps := newDeps(b, afero.NewMemMapFs())
	deps.Operator = steps.NewConsoleOperator(strings.NewReader(""), io.Discard)

	res := newModule(t, MobileFriendly(), deps).Execute(context.Background(), home)

	assert.True(t, res.Errored)
	assert.Equal(t, types.VerdictFailed, res.Verdict)
	assert.Equal(t, StageOperator, res.Notes[types.NoteStage])
	assert.Contains(t, res.Notes[types.NoteError], steps.ErrOperatorInputClosed.Error())
	assert.Empty(t, b.OpenPages())
}

func TestURLInspection(t *testing.T) {
	fs := afero.NewMemMapFs()
	def := URLInspection()
	markup := `<div><div>Page resources</div><div>1/9 resources couldn't be loaded</div></div>
		<span role="tabpanel" id="p2"><img src="` + renderDataURL(412, 1500) + `"></span>`

	var input, search *browsertest.Element
	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		if p.Opts.Device.Name != browser.Desktop.Name {
			return
		}
		p.HTML = markup
		input = p.Add(inspectInput)
		search = p.Add(searchButton)
		p.Add(testLiveButton)
		p.Add(liveTestTab)
		for _, sel := range []string{viewTestedPage, screenshotTab, moreInfoTab, resourcesButton} {
			p.Add(sel, &browsertest.Element{}, &browsertest.Element{})
		}
		p.Add(resourcesPanel, &browsertest.Element{}, &browsertest.Element{Box: &types.Region{X: 700, Y: 100, Width: 400, Height: 300}})
	}}

	deps := newDeps(b, fs)
	deps.StorageStatePath = "/state/google.json"

	res := newModule(t, def, deps).Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	assert.Equal(t, types.VerdictFailed, res.Verdict)
	assert.Equal(t, []string{home.Target.URL}, input.Typed)
	assert.Equal(t, 1, input.Clicks)
	assert.Equal(t, 1, search.Clicks)
	assert.Equal(t, "Page Resources: 1/9 resources couldn't be loaded", res.Notes[types.NoteResources])
	assert.Empty(t, res.Notes[types.NoteSkippedSteps])

	// the tool render was trimmed to 1200 px, the live render is 412x1200
	assert.False(t, res.Findings.VisualDifference.Bool)
	require.NotNil(t, res.Findings.Diff)
	assert.False(t, res.Findings.Diff.DimensionMismatch)

	labels := make([]string, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		labels = append(labels, a.Label)
	}
	assert.Equal(t, []string{"Live test", "Tool render", "Page resources", "Live render"}, labels)
	assert.Equal(t, &types.Region{X: 695, Y: 95, Width: 410, Height: 310}, res.Artifacts[2].Region)

	require.Len(t, b.Pages, 2)
	assert.Equal(t, "/state/google.json", b.Pages[0].Opts.StorageStatePath)
	assert.Empty(t, b.Pages[1].Opts.StorageStatePath)
	assert.Equal(t, []string{SearchConsoleURL + "https%3A%2F%2Fexample.com%2F"}, b.Pages[0].Navigations)
	assert.Empty(t, b.OpenPages())
}

func TestURLInspection_SearchNeverAppears(t *testing.T) {
	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		p.Add(inspectInput)
	}}

	res := newModule(t, URLInspection(), newDeps(b, afero.NewMemMapFs())).Execute(context.Background(), home)

	assert.True(t, res.Errored)
	assert.Equal(t, StagePrepare, res.Notes[types.NoteStage])
	assert.Contains(t, res.Notes[types.NoteError], "search")
	assert.Empty(t, b.OpenPages())
}

func TestExecute_BrowserCannotOpenPage(t *testing.T) {
	b := &browsertest.Browser{Err: errors.New("context closed")}

	res := newModule(t, JsOnOff(), newDeps(b, afero.NewMemMapFs())).Execute(context.Background(), home)

	assert.True(t, res.Errored)
	assert.Equal(t, types.VerdictFailed, res.Verdict)
	assert.Equal(t, StageOpen, res.Notes[types.NoteStage])
	assert.Equal(t, "context closed", res.Notes[types.NoteError])
}

func TestNew(t *testing.T) {
	b := &browsertest.Browser{}

	_, err := New(Definition{Kind: types.KindJsOnOff}, Settings{}, Deps{Browser: b})
	assert.Error(t, err)

	_, err = New(JsOnOff(), Settings{}, Deps{})
	assert.Error(t, err)

	m, err := New(JsOnOff(), Settings{DiffThreshold: 10}, Deps{Browser: b})
	require.NoError(t, err)
	assert.Equal(t, 10, m.Settings().DiffThreshold)
	assert.Equal(t, JsOnOff().Defaults.ReadyTimeout, m.Settings().ReadyTimeout)
	assert.Equal(t, types.KindJsOnOff, m.Kind())

	m, err = New(JsOnOff(), Settings{DiffThreshold: 0}, Deps{Browser: b})
	require.NoError(t, err)
	assert.Zero(t, m.Settings().DiffThreshold, "zero is an exact-match threshold")
}

func TestJsOnOff_ZeroThresholdFlagsSinglePixel(t *testing.T) {
	fs := afero.NewMemMapFs()
	dot := image.NewNRGBA(image.Rect(0, 0, 390, 844))
	for y := 0; y < 844; y++ {
		for x := 0; x < 390; x++ {
			dot.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	dot.SetNRGBA(200, 400, color.NRGBA{A: 255})
	withDot := browsertest.EncodePNG(dot)

	b := &browsertest.Browser{Setup: func(p *browsertest.Page) {
		p.Add("body")
		p.ShotFunc = func(browser.ScreenshotOptions) ([]byte, error) {
			if p.Opts.DisableJavaScript {
				return withDot, nil
			}
			return browsertest.SolidPNG(390, 844, color.White), nil
		}
	}}

	settings := JsOnOff().Defaults
	settings.Settle = time.Millisecond
	settings.DiffThreshold = 0
	m, err := New(JsOnOff(), settings, newDeps(b, fs))
	require.NoError(t, err)

	res := m.Execute(context.Background(), home)

	assert.False(t, res.Errored, res.Notes)
	require.NotNil(t, res.Findings.Diff)
	assert.Equal(t, 1, res.Findings.Diff.PixelDelta)
	assert.Zero(t, res.Findings.Diff.Threshold)
	assert.True(t, res.Findings.Diff.Significant)
	assert.Equal(t, types.VerdictFailed, res.Verdict)
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, len(types.AllKinds))
	for i, kind := range types.AllKinds {
		assert.Equal(t, kind, defs[i].Kind)
	}

	def, err := Lookup(types.KindURLInspection)
	require.NoError(t, err)
	assert.True(t, def.NeedsSession)

	_, err = Lookup("nope")
	assert.Error(t, err)
}
