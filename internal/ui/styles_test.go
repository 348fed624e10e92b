package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestColorizeLinesKeepsText(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	in := "check login [frontend]\n✓ frontend: PASS\n✗ backend: FAIL\n⚠ reconsider"
	assert.Equal(t, in, ColorizeLines(in))
}

func TestColorizeLinesStylesIcons(t *testing.T) {
	lipgloss.SetHasDarkBackground(true)
	lipgloss.SetColorProfile(termenv.TrueColor)
	defer lipgloss.SetColorProfile(termenv.Ascii)
	out := ColorizeLines("✗ backend: FAIL\nplain")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "backend: FAIL")
	assert.Contains(t, out, "\nplain")
}
