package output

import (
	"github.com/charmbracelet/lipgloss"

	"grimm.is/policyctl/internal/manager"
	"grimm.is/policyctl/internal/rules"
)

// Palette
var (
	colorAccent = lipgloss.Color("#A8D8EA")
	colorBorder = lipgloss.Color("#596E79")
	colorAlert  = lipgloss.Color("#FF6B6B")
	colorGood   = lipgloss.Color("#4ECDC4")
	colorWarn   = lipgloss.Color("#FFE66D")
	colorMuted  = lipgloss.Color("#6c757d")
)

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	border  lipgloss.Style
	muted   lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	warn    lipgloss.Style
	info    lipgloss.Style
	permit  lipgloss.Style
	deny    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Foreground(colorAccent).Bold(true),
		header:  r.NewStyle().Foreground(colorBorder).Bold(true).Padding(0, 1),
		cell:    r.NewStyle().Padding(0, 1),
		border:  r.NewStyle().Foreground(colorBorder),
		muted:   r.NewStyle().Foreground(colorMuted).Italic(true),
		added:   r.NewStyle().Foreground(colorGood),
		removed: r.NewStyle().Foreground(colorAlert),
		warn:    r.NewStyle().Foreground(colorWarn).Bold(true),
		info:    r.NewStyle().Foreground(colorAccent),
		permit:  r.NewStyle().Foreground(colorGood),
		deny:    r.NewStyle().Foreground(colorAlert),
	}
}

func (s styles) message(level string) lipgloss.Style {
	switch level {
	case manager.LevelSuccess:
		return s.added.Bold(true)
	case manager.LevelWarning:
		return s.warn
	}
	return s.info
}

func (s styles) action(a rules.Action) string {
	if a == rules.ActionDeny {
		return s.deny.Render(string(a))
	}
	return s.permit.Render(string(a))
}
