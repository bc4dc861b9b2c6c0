package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/palpamed/palpbridge/internal/version"
)

// Application branding constants
const (
	AppName = "PALPBRIDGE MONITOR"
)

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Version
}

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF0000") // Red

	TextColor   = lipgloss.Color("#FFFFFF") // White
	SubtleColor = lipgloss.Color("#626262") // Gray
	BorderColor = lipgloss.Color("#7D56F4") // Purple (same as primary)
)

// Common styles
var (
	// Title style for the header line
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	// Status line style shown under the title
	StatusStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	// Connected indicator
	ConnectedStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	// Disconnected indicator
	DisconnectedStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)

	// Style for device lines in the tail view
	LineStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// Style for structured replies (JSON acks, token replies)
	ReplyStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// Help text style
	HelpStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// Bordered container for the tail view
	TailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	// Spinner style
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)
)

// BuildHeaderContent creates the header line with app name and version
func BuildHeaderContent(url string) string {
	left := TitleStyle.Render(AppName + " v" + AppVersion())
	right := lipgloss.NewStyle().Foreground(SubtleColor).Render(url)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}
