// Package output renders test-run progress and summaries for the terminal.
package output

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme defines the colors used for different elements in the output.
type ColorScheme struct {
	SuiteName *color.Color
	StepName  *color.Color
	Pass      *color.Color
	Fail      *color.Color
	ErrorText *color.Color
	Timing    *color.Color
	Summary   *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		SuiteName: color.New(color.FgCyan, color.Bold),
		StepName:  color.New(color.FgWhite),
		Pass:      color.New(color.FgGreen),
		Fail:      color.New(color.FgRed, color.Bold),
		ErrorText: color.New(color.FgRed),
		Timing:    color.New(color.FgHiBlack),
		Summary:   color.New(color.Bold),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.SuiteName.DisableColor()
	scheme.StepName.DisableColor()
	scheme.Pass.DisableColor()
	scheme.Fail.DisableColor()
	scheme.ErrorText.DisableColor()
	scheme.Timing.DisableColor()
	scheme.Summary.DisableColor()
	scheme.Highlight.DisableColor()
	return scheme
}

// PassIcon returns a checkmark symbol with appropriate color.
func PassIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// FailIcon returns an X symbol with appropriate color.
func FailIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}

// IsTerminal reports whether stdout is an interactive terminal. Piped or
// redirected output disables color automatically.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
