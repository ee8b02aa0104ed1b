package main

import (
	"fmt"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/chat"
	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

const outputPreviewLines = 3

// describeCall summarizes a call by its most telling argument.
func describeCall(display string, input map[string]any) string {
	_, name, _ := strings.Cut(display, ":")
	switch name {
	case "shell":
		if cmd, ok := input["command"].(string); ok {
			return fmt.Sprintf("%s '%s'", display, cmd)
		}
	case "read_file", "write_file", "list_directory":
		if path, ok := input["path"].(string); ok {
			return fmt.Sprintf("%s %s", display, path)
		}
	}
	return display
}

// renderAuditTrail lists every executed tool call with a short output preview.
func renderAuditTrail(records []chat.ToolCallRecord) string {
	if len(records) == 0 {
		return ""
	}
	var lines []string
	for _, r := range records {
		mark := okStyle.Render("✔")
		if r.Failed() {
			mark = failStyle.Render("✘")
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", mark,
			headerStyle.Render(describeCall(r.DisplayName, r.Input)),
			mutedStyle.Render(fmt.Sprintf("(%dms)", r.DurationMs))))

		for _, line := range previewLines(r.Output, outputPreviewLines) {
			lines = append(lines, mutedStyle.Render("  │ "+line))
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func previewLines(output string, n int) []string {
	all := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(all) <= n {
		return all
	}
	return append(all[:n:n], fmt.Sprintf("… %d more lines", len(all)-n))
}

// renderMarkdown renders text for the terminal, falling back to plain text.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// renderToolTable renders the registry listing grouped by server.
func renderToolTable(tools []tool.Summary) string {
	if len(tools) == 0 {
		return mutedStyle.Render("no tools available")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("SERVER", "TOOL", "QUALIFIED NAME", "DESCRIPTION")
	for _, s := range tools {
		t.Row(s.Server, s.Name, s.QualifiedName, truncateDescription(s.Description, 60))
	}
	return t.String()
}

func truncateDescription(s string, n int) string {
	if first, _, ok := strings.Cut(s, "\n"); ok {
		s = first
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
