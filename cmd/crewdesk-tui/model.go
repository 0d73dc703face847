package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"crewdesk/internal/api"
	"crewdesk/internal/config"
	"crewdesk/internal/orchestrate"
	"crewdesk/internal/state"
)

type model struct {
	cfg   config.Config
	store *state.Store
	orch  *orchestrate.Orchestrator

	st      state.AppState
	updates chan state.AppState
	subID   string

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	theme    uiTheme

	width  int
	height int

	statusLine  string
	pickerIndex int
}

// stateMsg carries a store snapshot into the update loop.
type stateMsg state.AppState

// opDoneMsg marks the end of a fire-and-forget orchestration call; all state
// effects arrive separately through stateMsg.
type opDoneMsg struct{}

func newModel(cfg config.Config, store *state.Store, orch *orchestrate.Orchestrator) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Message your team..."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	updates := make(chan state.AppState, 16)
	subID := store.Subscribe(pushState(updates))

	return model{
		cfg:        cfg,
		store:      store,
		orch:       orch,
		st:         store.State(),
		updates:    updates,
		subID:      subID,
		input:      input,
		timeline:   timeline,
		spinner:    sp,
		theme:      newTheme(),
		statusLine: "connecting...",
	}
}

// pushState forwards store snapshots into a bounded channel, dropping the
// oldest pending snapshot under pressure. Only the newest state matters to
// the view.
func pushState(ch chan state.AppState) func(state.AppState) {
	return func(st state.AppState) {
		for {
			select {
			case ch <- st:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

func waitState(ch <-chan state.AppState) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ch)
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		waitState(m.updates),
		m.bootstrapCmd(),
	)
}

func (m model) bootstrapCmd() tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		orch.Bootstrap(context.Background())
		return opDoneMsg{}
	}
}

func (m model) sendCmd(text string) tea.Cmd {
	orch := m.orch
	builder := m.st.View == state.ViewTeamBuilder
	return func() tea.Msg {
		if builder {
			orch.SendBuilderMessage(context.Background(), text)
		} else {
			orch.SendTeamMessage(context.Background(), text)
		}
		return opDoneMsg{}
	}
}

func (m model) switchTeamCmd(team api.Team) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		orch.SwitchTeam(context.Background(), team)
		return opDoneMsg{}
	}
}

func (m model) loadChatCmd(chatID string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		orch.LoadChat(context.Background(), chatID)
		return opDoneMsg{}
	}
}

func (m model) startBuildCmd() tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		orch.StartTeamBuild(context.Background())
		return opDoneMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case stateMsg:
		m.st = state.AppState(msg)
		m.statusLine = statusText(m.st)
		m.syncTimeline()
		cmds = append(cmds, waitState(m.updates))
	case opDoneMsg:
		// state effects arrive via stateMsg
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.syncTimeline()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		return m.handleKey(msg, cmds)
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.store.Unsubscribe(m.subID)
		return m, tea.Quit
	}

	switch m.st.View {
	case state.ViewWelcome:
		if msg.String() == "ctrl+b" {
			cmds = append(cmds, m.startBuildCmd())
		}
	case state.ViewTeamManagement:
		switch msg.String() {
		case "esc":
			m.store.SetView(state.ViewChat)
		case "up", "k":
			if m.pickerIndex > 0 {
				m.pickerIndex--
			}
		case "down", "j":
			if m.pickerIndex < len(m.pickerEntries())-1 {
				m.pickerIndex++
			}
		case "enter":
			entries := m.pickerEntries()
			if m.pickerIndex < len(entries) {
				entry := entries[m.pickerIndex]
				m.store.SetView(state.ViewChat)
				if entry.team != nil {
					cmds = append(cmds, m.switchTeamCmd(*entry.team))
				} else {
					cmds = append(cmds, m.loadChatCmd(entry.chatID))
				}
			}
		}
	case state.ViewChat, state.ViewTeamBuilder:
		switch msg.String() {
		case "esc":
			if m.st.View == state.ViewChat {
				m.pickerIndex = 0
				m.store.SetView(state.ViewTeamManagement)
			} else {
				m.store.SetView(state.ViewChat)
			}
			return m, tea.Batch(cmds...)
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" || m.st.Status == state.StatusLoading {
				return m, tea.Batch(cmds...)
			}
			m.input.SetValue("")
			cmds = append(cmds, m.sendCmd(raw))
			return m, tea.Batch(cmds...)
		case "ctrl+n":
			m.orch.NewChat()
			return m, tea.Batch(cmds...)
		case "ctrl+b":
			cmds = append(cmds, m.startBuildCmd())
			return m, tea.Batch(cmds...)
		case "pgup", "ctrl+u":
			m.timeline.LineUp(8)
			return m, tea.Batch(cmds...)
		case "pgdown", "ctrl+d":
			m.timeline.LineDown(8)
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// pickerEntry is one selectable row on the team-management screen: either a
// team or a chat from the active team's history.
type pickerEntry struct {
	label  string
	team   *api.Team
	chatID string
}

func (m model) pickerEntries() []pickerEntry {
	entries := make([]pickerEntry, 0, len(m.st.Teams)+len(m.st.ChatHistory))
	for i := range m.st.Teams {
		team := m.st.Teams[i]
		entries = append(entries, pickerEntry{label: "team: " + team.Name, team: &team})
	}
	for _, chat := range m.st.ChatHistory {
		title := chat.Title
		if title == "" {
			title = chat.ID
		}
		entries = append(entries, pickerEntry{label: "chat: " + title, chatID: chat.ID})
	}
	return entries
}

func (m *model) resize() {
	m.timeline.Width = maxInt(0, m.width-2)
	m.timeline.Height = maxInt(0, m.height-6)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(maxInt(20, m.timeline.Width-2)),
	)
	if err == nil {
		m.renderer = renderer
	}
	m.input.Width = maxInt(10, m.width-6)
}

func (m *model) syncTimeline() {
	atBottom := m.timeline.AtBottom()
	m.timeline.SetContent(m.renderTimeline())
	if atBottom {
		m.timeline.GotoBottom()
	}
}

func statusText(st state.AppState) string {
	switch st.Status {
	case state.StatusLoading:
		return "waiting for the team..."
	case state.StatusPolling:
		return "task running..."
	case state.StatusError:
		return "error"
	default:
		if st.ActiveTeam != nil {
			return "ready · " + st.ActiveTeam.Name
		}
		return "ready"
	}
}

// truncate caps text at limit runes; byte slicing would split multibyte
// characters in server-provided strings.
func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
