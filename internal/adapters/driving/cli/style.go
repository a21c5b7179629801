package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// Palette for command output.
var (
	colourPrimary = lipgloss.Color("#7C3AED") // Purple
	colourMuted   = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess = lipgloss.Color("#A6E3A1") // Green
	colourWarning = lipgloss.Color("#F9E2AF") // Yellow
	colourError   = lipgloss.Color("#F38BA8") // Red
	colourBorder  = lipgloss.Color("#45475A") // Border gray
)

// outputStyles holds the styles shared by every command.
type outputStyles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

var styles = newOutputStyles()

func newOutputStyles() outputStyles {
	return outputStyles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colourPrimary),
		Label: lipgloss.NewStyle().
			Width(16),
		Muted: lipgloss.NewStyle().
			Foreground(colourMuted),
		Success: lipgloss.NewStyle().
			Foreground(colourSuccess),
		Warning: lipgloss.NewStyle().
			Foreground(colourWarning),
		Error: lipgloss.NewStyle().
			Foreground(colourError),
		Box: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colourBorder).
			Padding(0, 1),
	}
}

// statusStyle colours a run status.
func statusStyle(status domain.RunStatus) lipgloss.Style {
	switch status {
	case domain.RunStatusDone:
		return styles.Success
	case domain.RunStatusPartial:
		return styles.Warning
	case domain.RunStatusFailed:
		return styles.Error
	default:
		return styles.Muted
	}
}

// row renders one "label value" line.
func row(label string, value any) string {
	return styles.Label.Render(label) + fmt.Sprint(value)
}
