// Package ui provides terminal styling for stl output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	// Muted is used for raw command output and separators.
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	StageStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
)

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderStage renders a stage heading in uppercase.
func RenderStage(s string) string {
	return StageStyle.Render(strings.ToUpper(s))
}

// ColorizeLines styles each line of check output by its leading icon.
// Lines under a "==> target" header are raw command output and rendered muted.
func ColorizeLines(out string) string {
	lines := strings.Split(out, "\n")
	raw := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "==> "):
			raw = true
			lines[i] = RenderAccent(line)
		case strings.HasPrefix(trimmed, IconPass):
			lines[i] = RenderPass(line)
		case strings.HasPrefix(trimmed, IconFail):
			lines[i] = RenderFail(line)
		case strings.HasPrefix(trimmed, IconWarn):
			lines[i] = RenderWarn(line)
		case raw && line != "":
			lines[i] = RenderMuted(line)
		}
	}
	return strings.Join(lines, "\n")
}
