package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crewdesk/internal/api"
	"crewdesk/internal/reply"
	"crewdesk/internal/state"
)

type uiTheme struct {
	header      lipgloss.Style
	panel       lipgloss.Style
	userLabel   lipgloss.Style
	agentLabel  lipgloss.Style
	holding     lipgloss.Style
	action      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	footer      lipgloss.Style
	listItem    lipgloss.Style
	listPick    lipgloss.Style
	muted       lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#9ca3d8")
	red := lipgloss.Color("#ff5f87")

	return uiTheme{
		header:      lipgloss.NewStyle().Foreground(pink).Bold(true),
		panel:       lipgloss.NewStyle().Padding(0, 1),
		userLabel:   lipgloss.NewStyle().Foreground(blue).Bold(true),
		agentLabel:  lipgloss.NewStyle().Foreground(mint).Bold(true),
		holding:     lipgloss.NewStyle().Foreground(mint).Italic(true),
		action:      lipgloss.NewStyle().Foreground(blue),
		status:      lipgloss.NewStyle().Foreground(muted),
		errorStatus: lipgloss.NewStyle().Foreground(red).Bold(true),
		footer:      lipgloss.NewStyle().Foreground(muted),
		listItem:    lipgloss.NewStyle().Foreground(muted),
		listPick:    lipgloss.NewStyle().Foreground(mint).Bold(true),
		muted:       lipgloss.NewStyle().Foreground(muted),
	}
}

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	switch m.st.View {
	case state.ViewWelcome:
		return m.renderWelcome()
	case state.ViewTeamManagement:
		return m.renderTeamManagement()
	default:
		return m.renderChat()
	}
}

func (m model) renderWelcome() string {
	var b strings.Builder
	b.WriteString(m.theme.header.Render("crewdesk") + "\n\n")
	if m.st.Status == state.StatusLoading {
		b.WriteString(m.spinner.View() + " connecting to backend...\n")
	} else {
		b.WriteString("No teams yet.\n\n")
		b.WriteString(m.theme.muted.Render("ctrl+b build a team with AI · ctrl+c quit") + "\n")
	}
	if m.st.Err != "" {
		b.WriteString("\n" + m.theme.errorStatus.Render(truncate(m.st.Err, 120)) + "\n")
	}
	return m.theme.panel.Render(b.String())
}

func (m model) renderTeamManagement() string {
	var b strings.Builder
	b.WriteString(m.theme.header.Render("teams & chats") + "\n\n")
	entries := m.pickerEntries()
	if len(entries) == 0 {
		b.WriteString(m.theme.muted.Render("nothing here yet") + "\n")
	}
	for i, entry := range entries {
		line := entry.label
		if m.st.ActiveTeam != nil && entry.team != nil && entry.team.ID == m.st.ActiveTeam.ID {
			line += " (active)"
		}
		if i == m.pickerIndex {
			b.WriteString(m.theme.listPick.Render("▸ "+line) + "\n")
		} else {
			b.WriteString(m.theme.listItem.Render("  "+line) + "\n")
		}
	}
	b.WriteString("\n" + m.theme.footer.Render("enter select · esc back · ctrl+c quit"))
	return m.theme.panel.Render(b.String())
}

func (m model) renderChat() string {
	header := m.renderHeader()
	body := m.timeline.View()
	status := m.renderStatus()
	input := m.input.View()
	footer := m.theme.footer.Render("enter send · esc teams · ctrl+n new chat · ctrl+b team builder · ctrl+c quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status, input, footer)
}

func (m model) renderHeader() string {
	title := "crewdesk"
	if m.st.View == state.ViewTeamBuilder {
		title += " · team builder"
	} else if m.st.ActiveTeam != nil {
		title += " · " + m.st.ActiveTeam.Name
		if len(m.st.Agents) > 0 {
			title += fmt.Sprintf(" (%d agents)", len(m.st.Agents))
		}
	}
	return m.theme.header.Render(truncate(title, maxInt(10, m.width-2)))
}

func (m model) renderStatus() string {
	if m.st.Err != "" {
		return m.theme.errorStatus.Render(truncate("error: "+m.st.Err, maxInt(10, m.width-2)))
	}
	line := m.statusLine
	if m.st.Status == state.StatusLoading || m.st.Status == state.StatusPolling {
		line = m.spinner.View() + " " + line
	}
	return m.theme.status.Render(line)
}

func (m model) renderTimeline() string {
	var b strings.Builder
	for _, msg := range m.st.Render.DisplayMessages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	if m.st.Render.IsPolling {
		holding := m.st.Render.HoldingMessage
		if holding == "" {
			holding = "The team is working on it..."
		}
		b.WriteString(m.theme.holding.Render("⏳ "+holding) + "\n")
	}
	return b.String()
}

func (m model) renderMessage(msg api.Message) string {
	if msg.Role == api.RoleUser {
		return m.theme.userLabel.Render("you") + "\n" + msg.Content + "\n"
	}

	label := "team"
	if msg.AgentUsed != "" {
		label = msg.AgentUsed
	}
	classified := reply.Classify(msg.Content)
	switch classified.Kind {
	case reply.ActionOffer:
		var b strings.Builder
		b.WriteString(m.theme.agentLabel.Render(label) + "\n")
		b.WriteString(classified.Text + "\n")
		for _, action := range classified.Actions {
			marker := "•"
			if action.IsPrimary {
				marker = "▸"
			}
			b.WriteString(m.theme.action.Render(fmt.Sprintf("  %s %s", marker, action.Text)) + "\n")
		}
		return b.String()
	default:
		return m.theme.agentLabel.Render(label) + "\n" + m.renderMarkdown(msg.Content) + "\n"
	}
}

func (m model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
