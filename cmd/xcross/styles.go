// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminals.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warnings and stale state.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for names of volumes, containers and images.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)

// stateStyle colors a container state the way "ps" users read it.
func stateStyle(stopped bool) lipgloss.Style {
	if stopped {
		return SubtitleStyle
	}
	return SuccessStyle
}
