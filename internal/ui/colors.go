package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/moodsort/internal/shared"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262", "#1DB954")

// Confidence bands used to color probabilities in the review view.
const (
	highConfidence = 0.7
	lowConfidence  = 0.4
)

// Palette holds the styles of the review view.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
}

// NewPalette builds a palette from foreground colors for titles, success, errors, warnings, help text and labels.
func NewPalette(title, ok, errColor, warn, help, label string) *Palette {
	return &Palette{
		title: bold(title).MarginBottom(1),
		ok:    bold(ok),
		err:   bold(errColor),
		warn:  fg(warn),
		help:  fg(help).Italic(true),
		label: bold(label).Padding(0, 1).Reverse(true),
	}
}

// confidence renders c as a percentage colored by band: green at or above the default
// threshold, orange for a plausible argmax, red below that.
func (p *Palette) confidence(c float64) string {
	text := shared.FormatConfidence(c)
	switch {
	case c >= highConfidence:
		return p.ok.Render(text)
	case c >= lowConfidence:
		return p.warn.Render(text)
	default:
		return p.err.Render(text)
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
