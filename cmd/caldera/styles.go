// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette for all CLI output. Picked for dark terminals; warm primary to
// match the launcher branding.
const (
	// ColorPrimary is ember orange, used for headers and role titles.
	ColorPrimary = lipgloss.Color("#F97316")

	// ColorMuted is slate gray, used for secondary and de-emphasized text.
	ColorMuted = lipgloss.Color("#94A3B8")

	// ColorSuccess is green, used for healthy runtimes and completed steps.
	ColorSuccess = lipgloss.Color("#22C55E")

	// ColorError is red, used for failed probes and install errors.
	ColorError = lipgloss.Color("#DC2626")

	// ColorWarning is amber, used for degraded-but-working states.
	ColorWarning = lipgloss.Color("#EAB308")

	// ColorHighlight is teal, used for paths and runtime identifiers.
	ColorHighlight = lipgloss.Color("#14B8A6")
)

// Shared lipgloss styles built from the palette.
var (
	// TitleStyle renders role names and section headers.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle renders identifiers and explanatory detail.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle renders checkmarks and positive outcomes.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle renders failure markers.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle renders caution notices.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// PathStyle renders filesystem paths and executable locations.
	PathStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)
