package ui

import (
	"fmt"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorGray   = 250
	colorBlue   = 33
	colorGreen  = 34
	colorYellow = 220
	colorRed    = 160
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	return paint(colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return paint(colorMuted, s)
}

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string {
	return paint(colorCmd, s)
}

// RenderStatus returns s in the color of the gate status.
func RenderStatus(status model.Status, s string) string {
	switch status {
	case model.StatusBlue:
		return paint(colorBlue, s)
	case model.StatusGreen:
		return paint(colorGreen, s)
	case model.StatusYellow:
		return paint(colorYellow, s)
	case model.StatusRed:
		return paint(colorRed, s)
	default:
		return paint(colorGray, s)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
