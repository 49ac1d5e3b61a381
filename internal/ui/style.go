package ui

import "github.com/charmbracelet/lipgloss"

// Icons used throughout icpcctl's human-readable output.
const (
	IconPass = "✓"
	IconWarn = "!"
	IconFail = "✗"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
)

// RenderPass, RenderWarn, RenderFail, RenderMuted and RenderAccent apply
// semantic coloring to s, or return s unstyled when color is disabled
// (NO_COLOR, a non-TTY, or CLICOLOR=0).
func RenderPass(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return passStyle.Render(s)
}

func RenderWarn(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return warnStyle.Render(s)
}

func RenderFail(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return failStyle.Render(s)
}

func RenderMuted(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return mutedStyle.Render(s)
}

func RenderAccent(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return accentStyle.Render(s)
}
