// Package tui holds the interactive console and shared terminal styling.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/aoproc/internal/protocol"
)

// Theme keeps every color used by the console and the demo in one place.
type Theme struct {
	OK        lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
	Title     lipgloss.Style
	Border    lipgloss.Style
	Prompt    lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		OK:        lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(purple).
			Padding(0, 1),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Prompt: lipgloss.NewStyle().Bold(true).Foreground(purple),
	}
}

// RenderResponse formats one encoded response for display. Undecodable
// output is shown as-is in the error style.
func (t Theme) RenderResponse(raw string) string {
	resp, err := protocol.DecodeResponse([]byte(raw))
	if err != nil {
		return t.Error.Render(raw)
	}

	label := t.OK.Render(resp.Action)
	if resp.IsError() {
		label = t.Error.Render(resp.Action)
	}
	out := label + t.Dim.Render(" -> "+resp.Target) + "  " + resp.Data
	if k, ok := resp.Extra["Key"]; ok {
		out += t.Dim.Render("  [Key=" + k + "]")
	}
	return out
}
