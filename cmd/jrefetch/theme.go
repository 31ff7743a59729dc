package main

import "github.com/charmbracelet/lipgloss"

// Palette shared by every command's output.
var (
	colorPrimary   = lipgloss.Color("#f89820")
	colorSecondary = lipgloss.Color("#5382a1")
	colorSuccess   = lipgloss.Color("#00d26a")
	colorError     = lipgloss.Color("#ff3b30")
	colorWarning   = lipgloss.Color("#ffcc00")
	colorFaint     = lipgloss.Color("#8e8e93")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	faintStyle = lipgloss.NewStyle().
			Foreground(colorFaint)

	// errorBox frames fatal errors printed by main.
	errorBox = lipgloss.NewStyle().
			Foreground(colorError).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(0, 1)
)
