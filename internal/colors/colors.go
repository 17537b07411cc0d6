// Package colors provides the TTY-aware palette used for patch progress output.
//
// Colors are automatically disabled when stdout is not a terminal (piped or
// redirected to a file). Use Init() to override based on CLI flags.
package colors

import "github.com/fatih/color"

// Init allows overriding the auto-detected color setting.
//   - forceColor == nil: keep auto-detected value
//   - forceColor == true: force colors on (e.g., --color flag)
//   - forceColor == false: force colors off
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

func Bold() *color.Color        { return color.New(color.Bold) }
func Faint() *color.Color       { return color.New(color.Faint) }
func Green() *color.Color       { return color.New(color.FgGreen) }
func Yellow() *color.Color      { return color.New(color.FgYellow) }
func BoldCyan() *color.Color    { return color.New(color.Bold, color.FgCyan) }
func BoldMagenta() *color.Color { return color.New(color.Bold, color.FgMagenta) }
