// Package theme defines the color roles used by the chat view.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme maps color roles to concrete terminal colors.
type Theme struct {
	Name        string
	Background  lipgloss.Color // app background
	Surface     lipgloss.Color // input and status bar backgrounds
	Border      lipgloss.Color // subtle borders
	TextDim     lipgloss.Color // hints, metadata
	TextMuted   lipgloss.Color // secondary text (labels)
	TextPrimary lipgloss.Color // message content
	Accent      lipgloss.Color // the user's turns, active states
	Green       lipgloss.Color
	Red         lipgloss.Color
	Yellow      lipgloss.Color
}

// Active is the currently selected theme.
var Active = FlexokiDark

// FlexokiDark is the default theme - warm, paper-inspired dark theme.
var FlexokiDark = Theme{
	Name:        "flexoki-dark",
	Background:  lipgloss.Color("#100F0F"),
	Surface:     lipgloss.Color("#1C1B1A"),
	Border:      lipgloss.Color("#403E3C"),
	TextDim:     lipgloss.Color("#575653"),
	TextMuted:   lipgloss.Color("#878580"),
	TextPrimary: lipgloss.Color("#FFFCF0"),
	Accent:      lipgloss.Color("#3AA99F"),
	Green:       lipgloss.Color("#879A39"),
	Red:         lipgloss.Color("#D14D41"),
	Yellow:      lipgloss.Color("#D0A215"),
}

// Terminal uses ANSI 16 colors only - maximum compatibility.
var Terminal = Theme{
	Name:        "terminal",
	Background:  lipgloss.Color("0"),
	Surface:     lipgloss.Color("0"),
	Border:      lipgloss.Color("8"),
	TextDim:     lipgloss.Color("8"),
	TextMuted:   lipgloss.Color("7"),
	TextPrimary: lipgloss.Color("15"),
	Accent:      lipgloss.Color("6"),
	Green:       lipgloss.Color("2"),
	Red:         lipgloss.Color("1"),
	Yellow:      lipgloss.Color("3"),
}
