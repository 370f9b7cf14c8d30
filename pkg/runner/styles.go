package runner

import "github.com/charmbracelet/lipgloss"

// Color palette shared by the console reporter.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // headers
	mintGreen   = lipgloss.Color("#A8E6CF") // passed
	amber       = lipgloss.Color("#FFD59E") // warning
	errorRed    = lipgloss.Color("#FF6B6B") // failed
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // primary text
)

type styles struct {
	header  lipgloss.Style
	section lipgloss.Style
	rule    lipgloss.Style
	muted   lipgloss.Style
	text    lipgloss.Style
	passed  lipgloss.Style
	warning lipgloss.Style
	failed  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Foreground(salmonPink).
			Bold(true),
		section: r.NewStyle().
			Foreground(salmonPink),
		rule: r.NewStyle().
			Foreground(mutedGray),
		muted: r.NewStyle().
			Foreground(mutedGray),
		text: r.NewStyle().
			Foreground(brightWhite),
		passed: r.NewStyle().
			Foreground(mintGreen).
			Bold(true),
		warning: r.NewStyle().
			Foreground(amber),
		failed: r.NewStyle().
			Foreground(errorRed).
			Bold(true),
	}
}
