// Package state holds the authoritative client-side application state and
// the store that mutates it. There is one AppState per Store instance; every
// mutation applies atomically and then notifies subscribers.
package state

import "crewdesk/internal/api"

type View string

const (
	ViewWelcome        View = "welcome"
	ViewChat           View = "chat"
	ViewTeamManagement View = "team_management"
	ViewTeamBuilder    View = "team_builder"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusPolling Status = "polling"
)

// RenderState is the derived projection of Messages for display. It is
// always recomputed from Messages, never mutated independently.
type RenderState struct {
	DisplayMessages []api.Message
	IsPolling       bool
	HoldingMessage  string
}

// AppState is the sole mutable aggregate. CurrentChatID == "" means an
// unsaved new chat. Caches keep server order; the client never re-sorts.
type AppState struct {
	View View

	Teams          []api.Team
	DesignSessions []api.DesignSession
	ChatHistory    []api.ChatSummary
	Agents         []api.Agent

	ActiveTeam          *api.Team
	ActiveDesignSession *api.DesignSession
	CurrentChatID       string

	Messages []api.Message
	Render   RenderState

	Status Status
	Err    string
}

func (s AppState) clone() AppState {
	out := s
	out.Teams = append([]api.Team(nil), s.Teams...)
	out.DesignSessions = append([]api.DesignSession(nil), s.DesignSessions...)
	out.ChatHistory = append([]api.ChatSummary(nil), s.ChatHistory...)
	out.Agents = append([]api.Agent(nil), s.Agents...)
	out.Messages = append([]api.Message(nil), s.Messages...)
	out.Render.DisplayMessages = append([]api.Message(nil), s.Render.DisplayMessages...)
	if s.ActiveTeam != nil {
		team := *s.ActiveTeam
		out.ActiveTeam = &team
	}
	if s.ActiveDesignSession != nil {
		sess := *s.ActiveDesignSession
		out.ActiveDesignSession = &sess
	}
	return out
}
