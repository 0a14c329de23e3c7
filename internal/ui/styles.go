// Package ui provides terminal styling for treeline CLI output.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic status colors, adaptive for light/dark terminals.
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Status icons.
const (
	IconPass = "✓"
	IconFail = "✗"
)

var colorEnabled = detectColor()

// SetColorMode overrides color detection: "always", "never", or "auto".
func SetColorMode(mode string) {
	switch mode {
	case "always":
		colorEnabled = true
	case "never":
		colorEnabled = false
	default:
		colorEnabled = detectColor()
	}
}

// ShouldUseColor reports whether styled output is appropriate.
func ShouldUseColor() bool {
	return colorEnabled
}

func detectColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// Pass styles text as a success when color is on.
func Pass(s string) string {
	if !colorEnabled {
		return s
	}
	return PassStyle.Render(s)
}

// Fail styles text as a failure when color is on.
func Fail(s string) string {
	if !colorEnabled {
		return s
	}
	return FailStyle.Render(s)
}

// Muted styles secondary text when color is on.
func Muted(s string) string {
	if !colorEnabled {
		return s
	}
	return MutedStyle.Render(s)
}

// Header styles a section header when color is on.
func Header(s string) string {
	if !colorEnabled {
		return s
	}
	return HeaderStyle.Render(s)
}
