// Package ui holds the terminal front-end pieces of rosectl: the live
// status watcher and the rendering of status summaries.
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette shared by every rosectl view.
var (
	ColorPrimary = lipgloss.Color("168") // rose
	ColorSuccess = lipgloss.Color("82")
	ColorWarning = lipgloss.Color("214")
	ColorError   = lipgloss.Color("196")
	ColorSubtle  = lipgloss.Color("241")
	ColorText    = lipgloss.Color("252")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Width(22)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	OnStyle = lipgloss.NewStyle().
		Foreground(ColorWarning).
		Bold(true)

	OffStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Italic(true)
)

// onOff renders a boolean state flag.
func onOff(on bool) string {
	if on {
		return OnStyle.Render("yes")
	}
	return OffStyle.Render("no")
}
