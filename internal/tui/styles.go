package tui

import "github.com/charmbracelet/lipgloss"

// One Dark palette
var (
	ColorFgPrimary = lipgloss.Color("#ABB2BF")
	ColorFgMuted   = lipgloss.Color("#636B78")

	ColorRed     = lipgloss.Color("#E06C75")
	ColorGreen   = lipgloss.Color("#98C379")
	ColorYellow  = lipgloss.Color("#E5C07B")
	ColorBlue    = lipgloss.Color("#61AFEF")
	ColorMagenta = lipgloss.Color("#C678DD")

	ColorBorder = lipgloss.Color("#3F4451")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true).
			PaddingLeft(1)

	ColumnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	ActiveColumnStyle = ColumnStyle.
				BorderForeground(ColorBlue)

	ColumnTitleStyle = lipgloss.NewStyle().
				Foreground(ColorMagenta).
				Bold(true)

	CardStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary)

	SelectedCardStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted)

	FormStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMagenta).
			Padding(1, 2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Width(12)

	ConfirmStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	StatusConnectedStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	StatusWarnStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)
