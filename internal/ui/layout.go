package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/nhle/taskpilot/internal/theme"
)

// SidebarMinWidth is the narrowest the conversation sidebar is drawn.
const SidebarMinWidth = 24

// Layout tracks the terminal size and the rows taken by the header,
// the error banner and the status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	BannerHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions and no
// banner.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// WithBanner returns a copy of l that reserves one row for an error banner
// when shown is true.
func (l Layout) WithBanner(shown bool) Layout {
	l.BannerHeight = 0
	if shown {
		l.BannerHeight = 1
	}
	return l
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for the active view.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.BannerHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// SplitWidths divides the content width into a sidebar and a main pane.
// The sidebar takes a quarter of the width, never less than
// SidebarMinWidth, and is dropped entirely on very narrow terminals.
func (l Layout) SplitWidths() (sidebar, main int) {
	if l.Width < SidebarMinWidth*2 {
		return 0, l.Width
	}
	sidebar = max(l.Width/4, SidebarMinWidth)
	return sidebar, l.Width - sidebar
}

// RenderHeader renders the top bar with a title on the left and a status
// on the right.
func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := max(l.Width-
		lipgloss.Width(titleRendered)-
		lipgloss.Width(statusRendered), 0)

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderBanner renders a one-line error banner, truncated to the width.
func (l Layout) RenderBanner(message string) string {
	if message == "" {
		return ""
	}
	line := truncate.StringWithTail(message, uint(max(l.Width-2, 1)), "…")
	return theme.ErrorStyle.Width(l.Width).Render(" " + line)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := max(l.Width-lipgloss.Width(rendered), 0)

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame stacks the header, optional banner, content and status
// bar.
func (l Layout) RenderWithFrame(
	header string,
	banner string,
	content string,
	statusBar string,
) string {
	parts := []string{header}
	if banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, content, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
