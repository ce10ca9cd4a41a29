package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailtask/internal/pipeline"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite).
	Background(colorBlue).
	Padding(0, 1)

var summaryStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	Italic(true)

var detailStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	PaddingLeft(4)

// stateStyle returns a color-coded style for the terminal state of a
// message.
func stateStyle(state pipeline.State) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Width(stateWidth)

	switch state {
	case pipeline.Uploaded, pipeline.Created:
		return base.Foreground(colorGreen)
	case pipeline.NoProject:
		return base.Foreground(colorGray)
	case pipeline.UploadFailed:
		return base.Foreground(colorYellow)
	case pipeline.FetchFailed, pipeline.CreateFailed:
		return base.Foreground(colorRed)
	default:
		return base.Foreground(colorGray)
	}
}
