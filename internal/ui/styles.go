// Package ui provides consistent styling and components for the waycomp CLI
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across the application
var (
	ColorPrimary   = lipgloss.Color("39")  // Bright blue
	ColorSecondary = lipgloss.Color("205") // Pink/magenta
	ColorSuccess   = lipgloss.Color("82")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorInfo      = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
	ColorMuted  = lipgloss.Color("238") // Dark gray
)

// Base styles - building blocks for other styles
var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorMuted).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtle).
			Padding(0, 1)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	ControlKeyStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	ControlDescStyle = lipgloss.NewStyle().
				Foreground(ColorSubtle)
)

// Indicators
var (
	ActiveIndicator   = lipgloss.NewStyle().Foreground(ColorSuccess).Render("●")
	InactiveIndicator = lipgloss.NewStyle().Foreground(ColorSubtle).Render("○")
)

// FormatAppHeader renders the title bar used at the top of command output.
func FormatAppHeader(title, subtitle string) string {
	header := TitleStyle.Render("WAYCOMP") + " " + HeaderStyle.Render(title)
	if subtitle != "" {
		header += "\n" + SubtleStyle.Render(subtitle)
	}
	return header
}

// FormatControl renders a key binding hint.
func FormatControl(key, desc string) string {
	return ControlKeyStyle.Render(key) + " - " + ControlDescStyle.Render(desc)
}

// FormatControls joins several key hints on one line.
func FormatControls(pairs ...[2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, FormatControl(p[0], p[1]))
	}
	return strings.Join(parts, SubtleStyle.Render("  •  "))
}

// FormatFlag renders a boolean as an indicator followed by label.
func FormatFlag(on bool, label string) string {
	if on {
		return ActiveIndicator + " " + SuccessStyle.Render(label)
	}
	return InactiveIndicator + " " + SubtleStyle.Render(label)
}
