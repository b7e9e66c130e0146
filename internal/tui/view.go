package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// header, spinner/status, diagnostic, input, help
const chromeHeight = 8

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#764BA2")).
		Padding(0, 1)
	settingsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0C0"))
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#667EEA"))
	botStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9B59B6"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9B59B6"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// View renders the whole screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Gemini Pro Advanced"))
	b.WriteString("  ")
	b.WriteString(settingsStyle.Render(fmt.Sprintf("model %s • creativity %.1f", m.config.Model, m.config.Temperature)))
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " Soch raha hun...")
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")

	if m.diagnostic != "" {
		b.WriteString(errorStyle.Render("Error: " + m.diagnostic))
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(helpLine))
	return b.String()
}

func (m Model) renderTranscript() string {
	width := max(20, m.viewport.Width-2)

	var b strings.Builder
	for i, turn := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(roleLabel(turn.Role))
		b.WriteString("\n")
		b.WriteString(m.opts.Renderer.Render(turn.Content, width))
	}

	if m.pending != "" {
		b.WriteString("\n\n")
		b.WriteString(roleLabel(chat.RoleAssistant))
		b.WriteString("\n")
		b.WriteString(m.pending)
	}
	return b.String()
}

func roleLabel(role chat.Role) string {
	if role == chat.RoleUser {
		return userStyle.Render("You")
	}
	return botStyle.Render("Gemini 🤖")
}
