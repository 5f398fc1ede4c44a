package main

import (
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"repoknow/internal/checkpoint"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff5fd2"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff005f")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff5f")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffaf00")).
			Bold(true)
)

func statusStyle(status checkpoint.Status) lipgloss.Style {
	switch status {
	case checkpoint.StatusCompleted:
		return successStyle
	case checkpoint.StatusFailed:
		return errorStyle
	case checkpoint.StatusPaused:
		return warningStyle
	default:
		return subtleStyle
	}
}

// detectGlamourStyle respects GLAMOUR_STYLE when set to a concrete style and
// otherwise asks the terminal for its background, giving up after timeout.
func detectGlamourStyle(timeout time.Duration) string {
	style := os.Getenv("GLAMOUR_STYLE")
	if style != "" && style != "auto" {
		return style
	}
	if lipgloss.ColorProfile() == termenv.Ascii {
		return "notty"
	}

	ch := make(chan string, 1)
	go func() {
		if termenv.NewOutput(os.Stdout).HasDarkBackground() {
			ch <- "dark"
			return
		}
		ch <- "light"
	}()

	select {
	case s := <-ch:
		return s
	case <-time.After(timeout):
		return "dark"
	}
}

func renderMarkdown(markdown string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(detectGlamourStyle(50*time.Millisecond)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(markdown)
}
